package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueuedAction is a write captured while offline.
type QueuedAction struct {
	ID         string            `json:"id"`
	Operation  string            `json:"operation"` // Serialized Operation
	Metadata   map[string]string `json:"metadata,omitempty"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// Operation is the replayable part of a queued action.
type Operation struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// CreateLikeOp is the payload of a create_like operation.
type CreateLikeOp struct {
	EventID string `json:"eventId"`
	LikerID string `json:"likerId"`
	LikedID string `json:"likedId"`
}

func NewCreateLikeOperation(eventID, likerID, likedID string) (Operation, error) {
	payload, err := json.Marshal(CreateLikeOp{EventID: eventID, LikerID: likerID, LikedID: likedID})
	if err != nil {
		return Operation{}, fmt.Errorf("failed to encode create_like: %w", err)
	}
	return Operation{Kind: OperationCreateLike, Payload: payload}, nil
}

// Encode serializes the operation for storage.
func (o Operation) Encode() (string, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("failed to encode operation: %w", err)
	}
	return string(raw), nil
}

// DecodeOperation reverses Encode.
func DecodeOperation(serialized string) (Operation, error) {
	var op Operation
	if err := json.Unmarshal([]byte(serialized), &op); err != nil {
		return Operation{}, fmt.Errorf("failed to decode operation: %w", err)
	}
	if op.Kind == "" {
		return Operation{}, fmt.Errorf("operation has no kind")
	}
	return op, nil
}
