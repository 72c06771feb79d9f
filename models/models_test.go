package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeIDsAreDeterministic(t *testing.T) {
	like := NewLikeRecord("e1", "alice", "bob", time.Now())
	assert.Equal(t, "e1#alice#bob", like.ID)
	assert.Equal(t, "EVENT#e1", like.PK)
	assert.Equal(t, "LIKE#alice#bob", like.SK)
	assert.Equal(t, "e1#bob#alice", like.ReciprocalID())
	assert.NoError(t, like.Validate())

	eventID, likerID, likedID, err := ParseLikeID(like.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "alice", "bob"}, []string{eventID, likerID, likedID})

	_, _, _, err = ParseLikeID("e1#alice")
	assert.Error(t, err)
}

func TestLikeValidate(t *testing.T) {
	assert.Error(t, NewLikeRecord("e1", "alice", "alice", time.Now()).Validate())
	assert.Error(t, NewLikeRecord("e1", "al#ice", "bob", time.Now()).Validate())
	assert.Error(t, LikeRecord{ID: "x", EventID: "e1", LikerID: "alice", LikedID: "bob"}.Validate())
	assert.Error(t, LikeRecord{}.Validate())
}

func TestPairKeyIsSymmetric(t *testing.T) {
	assert.Equal(t, "alice_bob", PairKey("alice", "bob"))
	assert.Equal(t, "alice_bob", PairKey("bob", "alice"))

	a := NewLikeRecord("e1", "alice", "bob", time.Now())
	b := NewLikeRecord("e1", "bob", "alice", time.Now())
	assert.Equal(t, a.PairKey(), b.PairKey())

	first, second := CanonicalPair(b, a)
	assert.Equal(t, a.ID, first.ID)
	assert.Equal(t, b.ID, second.ID)
}

func TestNotifiedFlagsFollowTheRecipient(t *testing.T) {
	like := NewLikeRecord("e1", "alice", "bob", time.Now())
	assert.Equal(t, FieldLikerNotified, like.NotifiedFieldFor("alice"))
	assert.Equal(t, FieldLikedNotified, like.NotifiedFieldFor("bob"))
	assert.Equal(t, "bob", like.PartnerOf("alice"))
	assert.Equal(t, "alice", like.PartnerOf("bob"))
	assert.False(t, like.Involves("carol"))

	like.LikedNotified = true
	assert.True(t, like.NotifiedFor("bob"))
	assert.False(t, like.NotifiedFor("alice"))
}

func TestRouteFor(t *testing.T) {
	route := RouteFor(NotificationPayload{Type: NotificationTypeMatch, PartnerID: "bob", PartnerName: "Bob"})
	assert.Equal(t, ScreenChat, route.Screen)
	assert.Equal(t, map[string]string{"partnerId": "bob", "partnerName": "Bob"}, route.Params)

	route = RouteFor(NotificationPayload{Type: NotificationTypeMessage, PartnerID: "bob"})
	assert.Equal(t, ScreenChat, route.Screen)

	assert.Equal(t, DeepLinkRoute{Screen: ScreenEvents}, RouteFor(NotificationPayload{Type: NotificationTypeGeneral, PartnerID: "bob"}))
	assert.Equal(t, DeepLinkRoute{Screen: ScreenEvents}, RouteFor(NotificationPayload{Type: NotificationTypeMatch}))
}

func TestEnvelopeDedupKey(t *testing.T) {
	envelope := NotificationEnvelope{ID: "delivery-1", Payload: NotificationPayload{NotificationID: "e1:match:bob"}}
	assert.Equal(t, "e1:match:bob", envelope.DedupKey())

	envelope.Payload.NotificationID = ""
	assert.Equal(t, "delivery-1", envelope.DedupKey())
}

func TestSynthesizedIDsAndFallbackKeys(t *testing.T) {
	assert.Equal(t, "e1:match:bob", SynthesizeNotificationID("e1", NotificationTypeMatch, "bob"))
	assert.Equal(t, "match:bob", FallbackKey(NotificationTypeMatch, "bob"))
}

func TestDecodeOperation(t *testing.T) {
	op, err := NewCreateLikeOperation("e1", "alice", "bob")
	require.NoError(t, err)
	serialized, err := op.Encode()
	require.NoError(t, err)

	decoded, err := DecodeOperation(serialized)
	require.NoError(t, err)
	assert.Equal(t, OperationCreateLike, decoded.Kind)
	assert.JSONEq(t, `{"eventId":"e1","likerId":"alice","likedId":"bob"}`, string(decoded.Payload))

	_, err = DecodeOperation(`{"payload":{}}`)
	assert.Error(t, err)
	_, err = DecodeOperation(`nope`)
	assert.Error(t, err)
}

func TestMatchEventFor(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	envelope := NotificationEnvelope{
		ReceivedAt: at,
		Payload:    NotificationPayload{Type: NotificationTypeMatch, PartnerID: "alice", PartnerName: "Alice", EventID: "e1"},
	}
	assert.Equal(t, MatchEvent{
		PairKey:     "alice_bob",
		EventID:     "e1",
		PartnerID:   "alice",
		PartnerName: "Alice",
		DetectedAt:  at,
	}, MatchEventFor("bob", envelope))
}
