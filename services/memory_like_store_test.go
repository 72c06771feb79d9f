package services

import (
	"context"
	"testing"
	"time"

	"vibin_notifier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLikeStoreCreateIsIdempotent(t *testing.T) {
	store := NewMemoryLikeStore()
	ctx := context.Background()
	like := models.NewLikeRecord("e1", "alice", "bob", time.Now())

	created, err := store.Create(ctx, like)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Create(ctx, like)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Get(ctx, like.ID)
	require.NoError(t, err)
	assert.Equal(t, like.ID, got.ID)
	assert.False(t, got.IsMutual)
}

func TestMemoryLikeStoreRejectsSelfLike(t *testing.T) {
	store := NewMemoryLikeStore()
	_, err := store.Create(context.Background(), models.NewLikeRecord("e1", "alice", "alice", time.Now()))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestMemoryLikeStoreConditionalUpdate(t *testing.T) {
	store := NewMemoryLikeStore()
	ctx := context.Background()
	like := models.NewLikeRecord("e1", "alice", "bob", time.Now())
	_, err := store.Create(ctx, like)
	require.NoError(t, err)

	res, err := store.Update(ctx, like.ID, LikePatch{models.FieldIsMutual: true}, OnlyIfFalse(models.FieldIsMutual))
	require.NoError(t, err)
	assert.Equal(t, UpdateApplied, res)

	res, err = store.Update(ctx, like.ID, LikePatch{models.FieldIsMutual: true}, OnlyIfFalse(models.FieldIsMutual))
	require.NoError(t, err)
	assert.Equal(t, UpdateNoop, res)

	_, err = store.Update(ctx, "e1#nobody#bob", LikePatch{models.FieldIsMutual: true}, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Update(ctx, like.ID, LikePatch{models.FieldIsMutual: false}, nil)
	assert.ErrorIs(t, err, ErrInvariant)

	got, err := store.Get(ctx, like.ID)
	require.NoError(t, err)
	assert.True(t, got.IsMutual)
}

func TestMemoryLikeStoreSubscribeFiltersAndUnsubscribes(t *testing.T) {
	store := NewMemoryLikeStore()
	ctx := context.Background()

	changes := make(chan models.LikeRecord, 8)
	dispose, err := store.Subscribe(ctx, LikeFilter{LikedID: "bob"}, func(l models.LikeRecord) { changes <- l })
	require.NoError(t, err)
	assert.Equal(t, 1, store.Subscribers())

	_, err = store.Create(ctx, models.NewLikeRecord("e1", "carol", "dave", time.Now()))
	require.NoError(t, err)
	toBob := models.NewLikeRecord("e1", "alice", "bob", time.Now())
	_, err = store.Create(ctx, toBob)
	require.NoError(t, err)

	select {
	case got := <-changes:
		assert.Equal(t, toBob.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a change for bob")
	}

	dispose()
	dispose()
	assert.Equal(t, 0, store.Subscribers())

	_, err = store.Update(ctx, toBob.ID, LikePatch{models.FieldIsMutual: true}, nil)
	require.NoError(t, err)
	select {
	case got := <-changes:
		t.Fatalf("no change expected after unsubscribe, got %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryLikeStoreFilter(t *testing.T) {
	store := NewMemoryLikeStore()
	ctx := context.Background()
	for _, like := range []models.LikeRecord{
		models.NewLikeRecord("e1", "alice", "bob", time.Now()),
		models.NewLikeRecord("e1", "bob", "alice", time.Now()),
		models.NewLikeRecord("e2", "alice", "carol", time.Now()),
	} {
		_, err := store.Create(ctx, like)
		require.NoError(t, err)
	}

	given, err := store.Filter(ctx, LikeFilter{LikerID: "alice"})
	require.NoError(t, err)
	assert.Len(t, given, 2)

	inEvent, err := store.Filter(ctx, LikeFilter{EventID: "e1", LikedID: "alice"})
	require.NoError(t, err)
	require.Len(t, inEvent, 1)
	assert.Equal(t, "bob", inEvent[0].LikerID)
}
