package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vibin_notifier/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ActionExecutor replays one queued action. It must be idempotent: the queue cannot
// tell "never sent" from "sent, acknowledgement lost".
type ActionExecutor interface {
	Execute(ctx context.Context, action models.QueuedAction) error
}

// FlushResult summarizes one flush.
type FlushResult struct {
	Applied   int `json:"applied"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// OfflineActionQueue is a durable FIFO of writes made while disconnected.
type OfflineActionQueue struct {
	store    ActionStore
	executor ActionExecutor

	// flushMu keeps flushes from interleaving; replay is strictly one at a time.
	flushMu sync.Mutex
}

func NewOfflineActionQueue(store ActionStore, executor ActionExecutor) *OfflineActionQueue {
	return &OfflineActionQueue{store: store, executor: executor}
}

// Enqueue stores op and returns the new action id.
func (q *OfflineActionQueue) Enqueue(ctx context.Context, op models.Operation, metadata map[string]string) (string, error) {
	serialized, err := op.Encode()
	if err != nil {
		return "", err
	}
	action := models.QueuedAction{
		ID:         uuid.New().String(),
		Operation:  serialized,
		Metadata:   metadata,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.store.Append(ctx, action); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", op.Kind, err)
	}
	logrus.WithFields(logrus.Fields{"actionId": action.ID, "kind": op.Kind}).Info("📥 Action queued for replay")
	return action.ID, nil
}

// Flush replays queued actions oldest first. Each success is removed before the next
// attempt. A retryable failure stops the flush and leaves it and everything after it queued.
// Actions that can never succeed (malformed, rejected by permissions) are dropped and counted.
func (q *OfflineActionQueue) Flush(ctx context.Context) (FlushResult, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	var result FlushResult
	for {
		if err := ctx.Err(); err != nil {
			return q.withRemaining(ctx, result), err
		}

		action, ok, err := q.store.Peek(ctx)
		if err != nil {
			return q.withRemaining(ctx, result), fmt.Errorf("failed to read offline queue: %w", err)
		}
		if !ok {
			return result, nil
		}

		log := logrus.WithField("actionId", action.ID)
		if err := q.executor.Execute(ctx, action); err != nil {
			switch ClassifyError(err) {
			case KindInvariant, KindPermission:
				log.WithError(err).Error("❌ Dropping queued action that cannot succeed")
				if rmErr := q.store.Remove(ctx, action.ID); rmErr != nil {
					return q.withRemaining(ctx, result), fmt.Errorf("failed to drop queued action: %w", rmErr)
				}
				result.Dropped++
				continue
			default:
				log.WithError(err).Warn("⚠️ Replay failed, keeping remaining actions queued")
				return q.withRemaining(ctx, result), fmt.Errorf("failed to replay action %s: %w", action.ID, err)
			}
		}

		if err := q.store.Remove(ctx, action.ID); err != nil {
			return q.withRemaining(ctx, result), fmt.Errorf("failed to remove replayed action: %w", err)
		}
		result.Applied++
		log.Info("✅ Queued action replayed")
	}
}

func (q *OfflineActionQueue) withRemaining(ctx context.Context, result FlushResult) FlushResult {
	if pending, err := q.store.List(context.WithoutCancel(ctx)); err == nil {
		result.Remaining = len(pending)
	}
	return result
}

func (q *OfflineActionQueue) Pending(ctx context.Context) ([]models.QueuedAction, error) {
	return q.store.List(ctx)
}

func (q *OfflineActionQueue) Close() error {
	return q.store.Close()
}
