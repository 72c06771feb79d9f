package services

import (
	"context"

	"vibin_notifier/models"
)

// UpdateResult is the outcome of a conditional update that did not error.
type UpdateResult int

const (
	UpdateApplied UpdateResult = iota
	UpdateNoop
)

func (r UpdateResult) String() string {
	if r == UpdateApplied {
		return "applied"
	}
	return "noop"
}

// LikePatch sets boolean flag attributes on a like record.
type LikePatch map[string]bool

// Condition is a precondition on a single flag attribute.
type Condition struct {
	Field  string
	Equals bool
}

// OnlyIfFalse is the compare-and-set guard used for every flag flip.
func OnlyIfFalse(field string) *Condition {
	return &Condition{Field: field, Equals: false}
}

// LikeFilter selects like records; empty fields match anything.
type LikeFilter struct {
	EventID string
	LikerID string
	LikedID string
}

// Matches evaluates the filter against a record.
func (f LikeFilter) Matches(l models.LikeRecord) bool {
	if f.EventID != "" && f.EventID != l.EventID {
		return false
	}
	if f.LikerID != "" && f.LikerID != l.LikerID {
		return false
	}
	if f.LikedID != "" && f.LikedID != l.LikedID {
		return false
	}
	return true
}

// Unsubscribe closes a subscription. Calling it more than once is harmless.
type Unsubscribe func()

// LikeStore is the shared document store holding like records.
type LikeStore interface {
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id string) (*models.LikeRecord, error)
	// Create writes the record unless one with the same id exists; created is false in that case.
	Create(ctx context.Context, like models.LikeRecord) (created bool, err error)
	Filter(ctx context.Context, filter LikeFilter) ([]models.LikeRecord, error)
	// Update applies patch when cond holds. A failed condition is UpdateNoop, not an error.
	Update(ctx context.Context, id string, patch LikePatch, cond *Condition) (UpdateResult, error)
	// Subscribe delivers every change to a matching record, in store order, until unsubscribed.
	Subscribe(ctx context.Context, filter LikeFilter, onChange func(models.LikeRecord)) (Unsubscribe, error)
}
