package models

import (
	"fmt"
	"strings"
	"time"
)

// LikeRecord is one directional like inside an event.
type LikeRecord struct {
	PK            string    `dynamodbav:"PK" json:"-"`                        // ✅ Partition Key: "EVENT#eventId"
	SK            string    `dynamodbav:"SK" json:"-"`                        // ✅ Sort Key: "LIKE#liker#liked"
	ID            string    `dynamodbav:"id" json:"id"`                       // eventId#likerId#likedId
	EventID       string    `dynamodbav:"eventId" json:"eventId"`             // Event the like belongs to
	LikerID       string    `dynamodbav:"likerId" json:"likerId"`             // Who liked
	LikedID       string    `dynamodbav:"likedId" json:"likedId"`             // Who was liked
	IsMutual      bool      `dynamodbav:"isMutual" json:"isMutual"`           // Flipped once by the reconciler
	LikerNotified bool      `dynamodbav:"likerNotified" json:"likerNotified"` // Liker has been told about the match
	LikedNotified bool      `dynamodbav:"likedNotified" json:"likedNotified"` // Liked user has been told about the match
	CreatedAt     time.Time `dynamodbav:"createdAt" json:"createdAt"`         // Timestamp of creation
}

// ✅ Define table and index names
const (
	LikesTable   = "Likes"
	LikerIDIndex = "likerId-index" // PK: likerId
	LikedIDIndex = "likedId-index" // PK: likedId
)

// ✅ Mutable flag attributes
const (
	FieldIsMutual      = "isMutual"
	FieldLikerNotified = "likerNotified"
	FieldLikedNotified = "likedNotified"
)

// NewLikeRecord builds a fresh, non-mutual like with its deterministic keys.
func NewLikeRecord(eventID, likerID, likedID string, now time.Time) LikeRecord {
	return LikeRecord{
		PK:        EventPartitionKey(eventID),
		SK:        LikeSortKey(likerID, likedID),
		ID:        LikeID(eventID, likerID, likedID),
		EventID:   eventID,
		LikerID:   likerID,
		LikedID:   likedID,
		CreatedAt: now.UTC(),
	}
}

// LikeID is deterministic so a replayed create can detect an earlier partial success.
func LikeID(eventID, likerID, likedID string) string {
	return eventID + "#" + likerID + "#" + likedID
}

// ParseLikeID splits an id produced by LikeID.
func ParseLikeID(id string) (eventID, likerID, likedID string, err error) {
	parts := strings.Split(id, "#")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed like id %q", id)
	}
	return parts[0], parts[1], parts[2], nil
}

func EventPartitionKey(eventID string) string {
	return "EVENT#" + eventID
}

func LikeSortKey(likerID, likedID string) string {
	return "LIKE#" + likerID + "#" + likedID
}

// ReciprocalID is the id of the opposing like in the same event.
func (l LikeRecord) ReciprocalID() string {
	return LikeID(l.EventID, l.LikedID, l.LikerID)
}

// PairKey is the canonical key for the two participants.
func (l LikeRecord) PairKey() string {
	return PairKey(l.LikerID, l.LikedID)
}

// Involves reports whether userID is the liker or the liked user.
func (l LikeRecord) Involves(userID string) bool {
	return l.LikerID == userID || l.LikedID == userID
}

// PartnerOf returns the other participant.
func (l LikeRecord) PartnerOf(userID string) string {
	if l.LikerID == userID {
		return l.LikedID
	}
	return l.LikerID
}

// NotifiedFieldFor names the flag recording that userID was notified.
func (l LikeRecord) NotifiedFieldFor(userID string) string {
	if l.LikerID == userID {
		return FieldLikerNotified
	}
	return FieldLikedNotified
}

// NotifiedFor reads the flag named by NotifiedFieldFor.
func (l LikeRecord) NotifiedFor(userID string) bool {
	if l.LikerID == userID {
		return l.LikerNotified
	}
	return l.LikedNotified
}

// Validate checks the fields every stored like must carry.
func (l LikeRecord) Validate() error {
	switch {
	case l.ID == "" || l.EventID == "" || l.LikerID == "" || l.LikedID == "":
		return fmt.Errorf("like record %q is missing required fields", l.ID)
	case strings.Contains(l.EventID+l.LikerID+l.LikedID, "#"):
		return fmt.Errorf("like record %q has '#' in an id", l.ID)
	case l.LikerID == l.LikedID:
		return fmt.Errorf("like record %q is a self-like", l.ID)
	case l.ID != LikeID(l.EventID, l.LikerID, l.LikedID):
		return fmt.Errorf("like record %q does not match its participants", l.ID)
	}
	return nil
}

// PairKey sorts the two ids so both sides derive the same key.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// CanonicalPair orders two records by id; mutual flips always go first then second.
func CanonicalPair(a, b LikeRecord) (first, second LikeRecord) {
	if a.ID <= b.ID {
		return a, b
	}
	return b, a
}
