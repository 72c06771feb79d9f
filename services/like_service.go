package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vibin_notifier/models"

	"github.com/sirupsen/logrus"
)

// LikeService writes likes and replays queued like creations.
type LikeService struct {
	Store LikeStore
	Retry RetryPolicy
}

var _ ActionExecutor = (*LikeService)(nil)

// CreateLike writes a non-mutual like. created is false when the like already existed,
// which is how a replay detects that an earlier attempt got through.
func (s *LikeService) CreateLike(ctx context.Context, eventID, likerID, likedID string) (models.LikeRecord, bool, error) {
	like := models.NewLikeRecord(eventID, likerID, likedID, time.Now())
	if err := like.Validate(); err != nil {
		return like, false, fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	created, err := s.Store.Create(ctx, like)
	if err != nil {
		return like, false, fmt.Errorf("failed to create like %s: %w", like.ID, err)
	}
	if !created {
		logrus.WithField("likeId", like.ID).Info("ℹ️ Like already exists, nothing to write")
	}
	return like, created, nil
}

// Execute replays a queued action with retries for transient store errors.
func (s *LikeService) Execute(ctx context.Context, action models.QueuedAction) error {
	op, err := models.DecodeOperation(action.Operation)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	switch op.Kind {
	case models.OperationCreateLike:
		var payload models.CreateLikeOp
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return fmt.Errorf("%w: bad create_like payload: %w", ErrInvariant, err)
		}
		return retryTransient(ctx, s.Retry, "replay create_like", func() error {
			_, _, err := s.CreateLike(ctx, payload.EventID, payload.LikerID, payload.LikedID)
			return err
		})
	}
	return fmt.Errorf("%w: unknown operation %q", ErrInvariant, op.Kind)
}

// LikesFor returns likes given and received by userID.
func (s *LikeService) LikesFor(ctx context.Context, userID string) ([]models.LikeRecord, error) {
	given, err := s.Store.Filter(ctx, LikeFilter{LikerID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch likes given: %w", err)
	}
	received, err := s.Store.Filter(ctx, LikeFilter{LikedID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch likes received: %w", err)
	}
	return append(given, received...), nil
}
