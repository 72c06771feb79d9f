package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vibin_notifier/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ReconcileOutcome is what one OnLikeWritten call concluded.
type ReconcileOutcome int

const (
	OutcomeAlreadyMutual ReconcileOutcome = iota
	OutcomeNoReciprocal
	OutcomeLostRace
	OutcomeEmitted
	OutcomeInvalid
	OutcomeFailed
)

func (o ReconcileOutcome) String() string {
	switch o {
	case OutcomeAlreadyMutual:
		return "already_mutual"
	case OutcomeNoReciprocal:
		return "no_reciprocal"
	case OutcomeLostRace:
		return "lost_race"
	case OutcomeEmitted:
		return "emitted"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ReconcileResult is returned next to the error from OnLikeWritten.
type ReconcileResult struct {
	Outcome ReconcileOutcome
	PairKey string
}

// MatchFound is emitted once per pair, by the reconciler that completed it.
type MatchFound struct {
	PairKey    string
	EventID    string
	First      models.LikeRecord
	Second     models.LikeRecord
	DetectedAt time.Time
}

// MatchEmitter receives MatchFound. It is called at most once per pair across all reconcilers.
type MatchEmitter interface {
	EmitMatch(ctx context.Context, match MatchFound)
}

// MatchReconciler turns two opposing likes into one mutual match.
//
// The store has no cross-record transactions, so each record's isMutual flag is flipped
// with its own compare-and-set, always in canonical record order. Whoever flips the
// second record completed the pair and is the only one to emit MatchFound.
type MatchReconciler struct {
	store   LikeStore
	emitter MatchEmitter
	retry   RetryPolicy
	flights singleflight.Group
}

func NewMatchReconciler(store LikeStore, emitter MatchEmitter, retry RetryPolicy) *MatchReconciler {
	return &MatchReconciler{store: store, emitter: emitter, retry: retry}
}

// OnLikeWritten is called for every observed change to a like, from any number of
// subscriptions. Concurrent calls for the same record in this process share one run.
func (r *MatchReconciler) OnLikeWritten(ctx context.Context, like models.LikeRecord) (ReconcileResult, error) {
	result := ReconcileResult{PairKey: like.PairKey()}

	if err := like.Validate(); err != nil {
		result.Outcome = OutcomeInvalid
		return result, fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	// The completing record being mutual means the pair is done. A mutual first record
	// may belong to a pair whose completion was interrupted, so it is checked again.
	if like.IsMutual && like.ID > like.ReciprocalID() {
		result.Outcome = OutcomeAlreadyMutual
		return result, nil
	}

	v, err, _ := r.flights.Do(like.ID, func() (interface{}, error) {
		return r.reconcile(ctx, like)
	})
	outcome, _ := v.(ReconcileOutcome)
	result.Outcome = outcome
	return result, err
}

func (r *MatchReconciler) reconcile(ctx context.Context, like models.LikeRecord) (ReconcileOutcome, error) {
	reciprocal, err := r.lookupReciprocal(ctx, like)
	if err != nil {
		return OutcomeFailed, err
	}
	if reciprocal == nil {
		return OutcomeNoReciprocal, nil
	}
	if err := reciprocal.Validate(); err != nil {
		return OutcomeInvalid, fmt.Errorf("%w: reciprocal of %s: %w", ErrInvariant, like.ID, err)
	}
	if reciprocal.EventID != like.EventID || reciprocal.LikerID != like.LikedID || reciprocal.LikedID != like.LikerID {
		return OutcomeInvalid, fmt.Errorf("%w: reciprocal %s does not mirror %s", ErrInvariant, reciprocal.ID, like.ID)
	}

	first, second := models.CanonicalPair(like, *reciprocal)
	if like.IsMutual && second.IsMutual {
		return OutcomeAlreadyMutual, nil
	}

	if _, err := r.flipMutual(ctx, first.ID); err != nil {
		return OutcomeFailed, err
	}
	applied, err := r.flipMutual(ctx, second.ID)
	if err != nil {
		return OutcomeFailed, err
	}
	if applied != UpdateApplied {
		return OutcomeLostRace, nil
	}

	first.IsMutual = true
	second.IsMutual = true
	match := MatchFound{
		PairKey:    like.PairKey(),
		EventID:    like.EventID,
		First:      first,
		Second:     second,
		DetectedAt: time.Now().UTC(),
	}
	logrus.WithFields(logrus.Fields{"pairKey": match.PairKey, "eventId": match.EventID}).Info("💘 Match found")
	if r.emitter != nil {
		r.emitter.EmitMatch(ctx, match)
	}
	return OutcomeEmitted, nil
}

// lookupReciprocal returns nil, nil when the opposing like does not exist yet.
func (r *MatchReconciler) lookupReciprocal(ctx context.Context, like models.LikeRecord) (*models.LikeRecord, error) {
	var reciprocal *models.LikeRecord
	err := retryTransient(ctx, r.retry, "reciprocal lookup", func() error {
		found, err := r.store.Get(ctx, like.ReciprocalID())
		if errors.Is(err, ErrNotFound) {
			reciprocal = nil
			return nil
		}
		if err != nil {
			return err
		}
		reciprocal = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up reciprocal of %s: %w", like.ID, err)
	}
	return reciprocal, nil
}

func (r *MatchReconciler) flipMutual(ctx context.Context, id string) (UpdateResult, error) {
	return r.casFlag(ctx, id, models.FieldIsMutual)
}

func (r *MatchReconciler) casFlag(ctx context.Context, id, field string) (UpdateResult, error) {
	var result UpdateResult
	err := retryTransient(ctx, r.retry, "set "+field, func() error {
		res, err := r.store.Update(ctx, id, LikePatch{field: true}, OnlyIfFalse(field))
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return UpdateNoop, fmt.Errorf("failed to set %s on %s: %w", field, id, err)
	}
	return result, nil
}

// MarkNotified records that recipientID has been told about the match. The flag on the
// completing record is the guard; the other record's flag is set after it as a mirror.
// UpdateNoop means someone else already recorded it.
func (r *MatchReconciler) MarkNotified(ctx context.Context, first, second models.LikeRecord, recipientID string) (UpdateResult, error) {
	if !second.Involves(recipientID) {
		return UpdateNoop, fmt.Errorf("%w: %s is not part of %s", ErrInvariant, recipientID, second.ID)
	}

	result, err := r.casFlag(ctx, second.ID, second.NotifiedFieldFor(recipientID))
	if err != nil {
		return UpdateNoop, err
	}

	if _, err := r.casFlag(ctx, first.ID, first.NotifiedFieldFor(recipientID)); err != nil {
		logrus.WithError(err).WithField("likeId", first.ID).Warn("⚠️ Failed to mirror notified flag")
	}
	return result, nil
}

// PairOf loads both records of like's pair in canonical order.
// ok is false while the reciprocal does not exist.
func (r *MatchReconciler) PairOf(ctx context.Context, like models.LikeRecord) (first, second models.LikeRecord, ok bool, err error) {
	current, err := r.store.Get(ctx, like.ID)
	if err != nil {
		return first, second, false, err
	}
	reciprocal, err := r.lookupReciprocal(ctx, like)
	if err != nil || reciprocal == nil {
		return first, second, false, err
	}
	first, second = models.CanonicalPair(*current, *reciprocal)
	return first, second, true, nil
}
