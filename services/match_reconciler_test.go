package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"vibin_notifier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmitter struct {
	mu      sync.Mutex
	matches []MatchFound
}

func (e *countingEmitter) EmitMatch(ctx context.Context, match MatchFound) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matches = append(e.matches, match)
}

func (e *countingEmitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.matches)
}

func seedLikes(t *testing.T, store *MemoryLikeStore, likes ...models.LikeRecord) {
	t.Helper()
	for _, like := range likes {
		created, err := store.Create(context.Background(), like)
		require.NoError(t, err)
		require.True(t, created)
	}
}

func opposingLikes() (models.LikeRecord, models.LikeRecord) {
	now := time.Now()
	return models.NewLikeRecord("e1", "alice", "bob", now), models.NewLikeRecord("e1", "bob", "alice", now)
}

func TestReconcilerWithoutReciprocal(t *testing.T) {
	store := NewMemoryLikeStore()
	emitter := &countingEmitter{}
	reconciler := NewMatchReconciler(store, emitter, fastRetry())
	aliceToBob, _ := opposingLikes()
	seedLikes(t, store, aliceToBob)

	result, err := reconciler.OnLikeWritten(context.Background(), aliceToBob)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoReciprocal, result.Outcome)
	assert.Equal(t, "alice_bob", result.PairKey)
	assert.Zero(t, emitter.Count())

	stored, err := store.Get(context.Background(), aliceToBob.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsMutual)
}

func TestReconcilerEmitsOnceForEitherOrder(t *testing.T) {
	for _, name := range []string{"alice-first", "bob-first"} {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryLikeStore()
			emitter := &countingEmitter{}
			reconciler := NewMatchReconciler(store, emitter, fastRetry())
			aliceToBob, bobToAlice := opposingLikes()
			seedLikes(t, store, aliceToBob, bobToAlice)

			first, second := aliceToBob, bobToAlice
			if name == "bob-first" {
				first, second = bobToAlice, aliceToBob
			}

			result, err := reconciler.OnLikeWritten(context.Background(), first)
			require.NoError(t, err)
			assert.Equal(t, OutcomeEmitted, result.Outcome)

			result, err = reconciler.OnLikeWritten(context.Background(), second)
			require.NoError(t, err)
			assert.Contains(t, []ReconcileOutcome{OutcomeAlreadyMutual, OutcomeLostRace}, result.Outcome)
			assert.Equal(t, 1, emitter.Count())

			for _, id := range []string{aliceToBob.ID, bobToAlice.ID} {
				stored, err := store.Get(context.Background(), id)
				require.NoError(t, err)
				assert.True(t, stored.IsMutual, id)
			}
		})
	}
}

func TestReconcilerExactlyOnceUnderConcurrency(t *testing.T) {
	store := NewMemoryLikeStore()
	emitter := &countingEmitter{}
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, aliceToBob, bobToAlice)

	// separate reconcilers stand in for the two users' sessions
	reconcilers := []*MatchReconciler{
		NewMatchReconciler(store, emitter, fastRetry()),
		NewMatchReconciler(store, emitter, fastRetry()),
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, r := range reconcilers {
			for _, like := range []models.LikeRecord{aliceToBob, bobToAlice} {
				wg.Add(1)
				go func(r *MatchReconciler, like models.LikeRecord) {
					defer wg.Done()
					_, err := r.OnLikeWritten(context.Background(), like)
					assert.NoError(t, err)
				}(r, like)
			}
		}
	}
	wg.Wait()

	assert.Equal(t, 1, emitter.Count())
}

func TestReconcilerReplayAfterMatchIsQuiet(t *testing.T) {
	store := NewMemoryLikeStore()
	emitter := &countingEmitter{}
	reconciler := NewMatchReconciler(store, emitter, fastRetry())
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, aliceToBob, bobToAlice)

	_, err := reconciler.OnLikeWritten(context.Background(), bobToAlice)
	require.NoError(t, err)

	for _, id := range []string{aliceToBob.ID, bobToAlice.ID} {
		stored, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		_, err = reconciler.OnLikeWritten(context.Background(), *stored)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, emitter.Count())
}

func TestReconcilerResumesHalfCompletedPair(t *testing.T) {
	store := NewMemoryLikeStore()
	emitter := &countingEmitter{}
	reconciler := NewMatchReconciler(store, emitter, fastRetry())
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, aliceToBob, bobToAlice)

	// the canonical first record was flipped, then the writer went away
	first, _ := models.CanonicalPair(aliceToBob, bobToAlice)
	_, err := store.Update(context.Background(), first.ID, LikePatch{models.FieldIsMutual: true}, OnlyIfFalse(models.FieldIsMutual))
	require.NoError(t, err)
	flipped, err := store.Get(context.Background(), first.ID)
	require.NoError(t, err)

	result, err := reconciler.OnLikeWritten(context.Background(), *flipped)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmitted, result.Outcome)
	assert.Equal(t, 1, emitter.Count())
}

func TestReconcilerRejectsMalformedLike(t *testing.T) {
	reconciler := NewMatchReconciler(NewMemoryLikeStore(), &countingEmitter{}, fastRetry())

	result, err := reconciler.OnLikeWritten(context.Background(), models.LikeRecord{ID: "x", EventID: "e1", LikerID: "alice"})
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, OutcomeInvalid, result.Outcome)
}

func TestReconcilerRetriesTransientLookups(t *testing.T) {
	store := NewMemoryLikeStore()
	emitter := &countingEmitter{}
	reconciler := NewMatchReconciler(store, emitter, fastRetry())
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, aliceToBob, bobToAlice)

	var mu sync.Mutex
	failures := 2
	store.Fail = func(op, id string) error {
		mu.Lock()
		defer mu.Unlock()
		if op == "get" && failures > 0 {
			failures--
			return &StoreError{Kind: KindTransient, Op: op, Err: assert.AnError}
		}
		return nil
	}

	result, err := reconciler.OnLikeWritten(context.Background(), aliceToBob)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmitted, result.Outcome)
}

func TestReconcilerGivesUpOnPermissionErrors(t *testing.T) {
	store := NewMemoryLikeStore()
	emitter := &countingEmitter{}
	reconciler := NewMatchReconciler(store, emitter, fastRetry())
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, aliceToBob, bobToAlice)

	store.Fail = func(op, id string) error {
		if op == "update" {
			return &StoreError{Kind: KindPermission, Op: op, Err: assert.AnError}
		}
		return nil
	}

	result, err := reconciler.OnLikeWritten(context.Background(), aliceToBob)
	assert.ErrorIs(t, err, ErrPermission)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Zero(t, emitter.Count())
}

func TestMarkNotifiedSetsBothRecordsOnce(t *testing.T) {
	store := NewMemoryLikeStore()
	reconciler := NewMatchReconciler(store, &countingEmitter{}, fastRetry())
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, aliceToBob, bobToAlice)
	first, second := models.CanonicalPair(aliceToBob, bobToAlice)

	res, err := reconciler.MarkNotified(context.Background(), first, second, "alice")
	require.NoError(t, err)
	assert.Equal(t, UpdateApplied, res)

	res, err = reconciler.MarkNotified(context.Background(), first, second, "alice")
	require.NoError(t, err)
	assert.Equal(t, UpdateNoop, res)

	storedA, err := store.Get(context.Background(), aliceToBob.ID)
	require.NoError(t, err)
	storedB, err := store.Get(context.Background(), bobToAlice.ID)
	require.NoError(t, err)
	assert.True(t, storedA.LikerNotified)
	assert.True(t, storedB.LikedNotified)
	assert.False(t, storedA.LikedNotified)
	assert.False(t, storedB.LikerNotified)

	_, err = reconciler.MarkNotified(context.Background(), first, second, "carol")
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestPairOf(t *testing.T) {
	store := NewMemoryLikeStore()
	reconciler := NewMatchReconciler(store, nil, fastRetry())
	aliceToBob, bobToAlice := opposingLikes()
	seedLikes(t, store, bobToAlice)

	_, _, ok, err := reconciler.PairOf(context.Background(), bobToAlice)
	require.NoError(t, err)
	assert.False(t, ok)

	seedLikes(t, store, aliceToBob)
	first, second, ok, err := reconciler.PairOf(context.Background(), bobToAlice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, aliceToBob.ID, first.ID)
	assert.Equal(t, bobToAlice.ID, second.ID)
}
