package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vibin_notifier/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFallbackDelay = 8 * time.Second
	DefaultFlushInterval = 30 * time.Second
	sessionOpTimeout     = 10 * time.Second
	surfacedMemory       = 24 * time.Hour
	surfacedMaxEntries   = 1024
)

// SessionConfig tunes timers and retries for a session.
type SessionConfig struct {
	FallbackDelay time.Duration
	FlushInterval time.Duration
	Retry         RetryPolicy
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.FallbackDelay <= 0 {
		c.FallbackDelay = DefaultFallbackDelay
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Retry.MaxRetries == 0 && c.Retry.InitialInterval == 0 {
		c.Retry = DefaultRetryPolicy()
	}
	return c
}

// SessionDeps are the collaborators a session is built from.
type SessionDeps struct {
	Store     LikeStore
	Push      *PushDispatcher
	Names     ProfileDirectory
	Presenter Presenter
	Dedup     DedupCache
	Actions   ActionStore
}

// SubmitResult tells the caller whether a like was written or deferred.
type SubmitResult struct {
	LikeID   string `json:"likeId"`
	Created  bool   `json:"created"`
	Queued   bool   `json:"queued"`
	ActionID string `json:"actionId,omitempty"`
}

// Session is the notification pipeline of one signed-in user.
type Session struct {
	UserID string

	tracker    *ForegroundTracker
	router     *NotificationRouter
	fallbacks  *LocalFallbackScheduler
	queue      *OfflineActionQueue
	reconciler *MatchReconciler
	likes      *LikeService
	push       *PushDispatcher
	names      ProfileDirectory
	store      LikeStore
	cfg        SessionConfig

	// surfaced holds match notification ids already shown to this user, outliving the dedup window.
	surfaced *MemoryDedupCache

	online atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	disposers []Unsubscribe
	started   bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ MatchEmitter = (*Session)(nil)

func NewSession(userID string, deps SessionDeps, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		UserID:    userID,
		tracker:   NewForegroundTracker(models.LifecycleBackground),
		fallbacks: NewLocalFallbackScheduler(nil),
		likes:     &LikeService{Store: deps.Store, Retry: cfg.Retry},
		push:      deps.Push,
		names:     deps.Names,
		store:     deps.Store,
		cfg:       cfg,
		surfaced:  NewMemoryDedupCache(surfacedMaxEntries, surfacedMemory),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.router = NewNotificationRouter(userID, s.tracker, deps.Dedup, s.fallbacks, deps.Presenter)
	s.fallbacks.SetSink(s.router)
	s.queue = NewOfflineActionQueue(deps.Actions, s.likes)
	s.reconciler = NewMatchReconciler(deps.Store, s, cfg.Retry)
	s.online.Store(true)
	return s
}

func (s *Session) Tracker() *ForegroundTracker        { return s.tracker }
func (s *Session) Router() *NotificationRouter        { return s.router }
func (s *Session) Fallbacks() *LocalFallbackScheduler { return s.fallbacks }
func (s *Session) Queue() *OfflineActionQueue         { return s.queue }
func (s *Session) Online() bool                       { return s.online.Load() }

// Start opens the like subscriptions (outgoing and incoming, as two screens would)
// and the background flush loop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	for _, filter := range []LikeFilter{{LikerID: s.UserID}, {LikedID: s.UserID}} {
		dispose, err := s.store.Subscribe(s.ctx, filter, s.handleChange)
		if err != nil {
			s.disposeLocked()
			return fmt.Errorf("failed to subscribe to likes for %s: %w", s.UserID, err)
		}
		s.disposers = append(s.disposers, dispose)
	}

	s.disposers = append(s.disposers, s.tracker.Subscribe(func(foreground bool) {
		if foreground {
			s.flushInBackground("foreground")
		}
	}))

	s.wg.Add(1)
	go s.flushLoop()

	s.started = true
	logrus.WithField("userId", s.UserID).Info("✅ Session started")
	return nil
}

// Close releases every subscription exactly once and stops all timers.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.disposeLocked()
		s.mu.Unlock()
		s.fallbacks.Close()
		s.wg.Wait()
		err = s.queue.Close()
		logrus.WithField("userId", s.UserID).Info("👋 Session closed")
	})
	return err
}

func (s *Session) disposeLocked() {
	for _, dispose := range s.disposers {
		dispose()
	}
	s.disposers = nil
}

// SubmitLike writes a like, or queues it while offline or when the store is briefly unreachable.
func (s *Session) SubmitLike(ctx context.Context, eventID, likedID string) (SubmitResult, error) {
	likeID := models.LikeID(eventID, s.UserID, likedID)
	if !s.online.Load() {
		return s.enqueueLike(ctx, eventID, likedID, "offline")
	}

	_, created, err := s.likes.CreateLike(ctx, eventID, s.UserID, likedID)
	if err != nil {
		if ClassifyError(err) == KindTransient {
			logrus.WithError(err).WithField("likeId", likeID).Warn("⚠️ Store unreachable, deferring like")
			return s.enqueueLike(ctx, eventID, likedID, "transient")
		}
		return SubmitResult{LikeID: likeID}, err
	}
	return SubmitResult{LikeID: likeID, Created: created}, nil
}

func (s *Session) enqueueLike(ctx context.Context, eventID, likedID, reason string) (SubmitResult, error) {
	likeID := models.LikeID(eventID, s.UserID, likedID)
	op, err := models.NewCreateLikeOperation(eventID, s.UserID, likedID)
	if err != nil {
		return SubmitResult{LikeID: likeID}, err
	}
	actionID, err := s.queue.Enqueue(ctx, op, map[string]string{"userId": s.UserID, "reason": reason})
	if err != nil {
		return SubmitResult{LikeID: likeID}, err
	}
	return SubmitResult{LikeID: likeID, Queued: true, ActionID: actionID}, nil
}

// SetOnline records connectivity; coming back online triggers a replay.
func (s *Session) SetOnline(online bool) {
	was := s.online.Swap(online)
	logrus.WithFields(logrus.Fields{"userId": s.UserID, "online": online}).Info("📶 Connectivity changed")
	if online && !was {
		s.flushInBackground("reconnect")
	}
}

// Flush replays the offline queue now.
func (s *Session) Flush(ctx context.Context) (FlushResult, error) {
	if !s.online.Load() {
		return FlushResult{}, fmt.Errorf("%w: session %s is offline", ErrTransient, s.UserID)
	}
	return s.queue.Flush(ctx)
}

func (s *Session) flushInBackground(reason string) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.flushAndLog(reason)
	}()
}

func (s *Session) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.online.Load() {
				s.flushAndLog("interval")
			}
		}
	}
}

func (s *Session) flushAndLog(reason string) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, sessionOpTimeout)
	defer cancel()

	result, err := s.Flush(ctx)
	log := logrus.WithFields(logrus.Fields{"userId": s.UserID, "reason": reason, "applied": result.Applied, "remaining": result.Remaining})
	switch {
	case err != nil && s.ctx.Err() == nil:
		log.WithError(err).Warn("⚠️ Offline queue flush stopped")
	case result.Applied > 0 || result.Dropped > 0:
		log.Info("🔄 Offline queue flushed")
	}
}

// ReceivePush routes a push delivered to this user's device.
func (s *Session) ReceivePush(ctx context.Context, messageID string, msg PushMessage) RouteDecision {
	payload := models.PayloadFromData(msg.Data, msg.Title, msg.Body)
	envelope := models.NotificationEnvelope{
		ID:         messageID,
		Type:       payload.Type,
		Source:     models.SourcePush,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	return s.Deliver(ctx, envelope)
}

// Deliver routes an inbound envelope and remembers surfaced ids so a later fallback for
// the same notification stays quiet.
func (s *Session) Deliver(ctx context.Context, envelope models.NotificationEnvelope) RouteDecision {
	decision := s.router.Route(ctx, envelope)
	switch decision {
	case DecisionInApp, DecisionSystem, DecisionLocal:
		s.surfaced.Remember(ctx, envelope.DedupKey())
	}
	return decision
}

// handleChange is the single boundary where reconciliation outcomes are logged.
func (s *Session) handleChange(like models.LikeRecord) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, sessionOpTimeout)
	defer cancel()

	result, err := s.reconciler.OnLikeWritten(ctx, like)
	log := logrus.WithFields(logrus.Fields{
		"userId":  s.UserID,
		"likeId":  like.ID,
		"pairKey": result.PairKey,
		"outcome": result.Outcome.String(),
	})
	if err != nil {
		switch ClassifyError(err) {
		case KindInvariant:
			log.WithError(err).Error("❌ Dropping malformed like event")
		default:
			log.WithError(err).Warn("⚠️ Reconciliation failed, waiting for the next change")
		}
		return
	}
	log.Debug("🔎 Like reconciled")

	switch result.Outcome {
	case OutcomeAlreadyMutual, OutcomeLostRace:
		s.expectMatchNotification(ctx, like)
	}
}

// EmitMatch runs on the session that completed the pair: its own user is told locally,
// the partner by push. Both sides go out concurrently.
func (s *Session) EmitMatch(ctx context.Context, match MatchFound) {
	if !match.Second.Involves(s.UserID) {
		logrus.WithField("pairKey", match.PairKey).Error("❌ Match emitted on a session outside the pair")
		return
	}
	partnerID := match.Second.PartnerOf(s.UserID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.notifySelf(gctx, match, partnerID)
	})
	g.Go(func() error {
		return s.notifyPartner(gctx, match, partnerID)
	})
	if err := g.Wait(); err != nil {
		logrus.WithError(err).WithField("pairKey", match.PairKey).Warn("⚠️ Match notification incomplete")
	}
}

func (s *Session) notifySelf(ctx context.Context, match MatchFound, partnerID string) error {
	claimed, err := s.reconciler.MarkNotified(ctx, match.First, match.Second, s.UserID)
	if err != nil {
		return fmt.Errorf("failed to claim local notification: %w", err)
	}
	s.fallbacks.Cancel(models.FallbackKey(models.NotificationTypeMatch, partnerID))
	if claimed != UpdateApplied {
		return nil
	}
	envelope := s.matchEnvelope(ctx, match.EventID, partnerID)
	s.surfaced.Remember(ctx, envelope.DedupKey())
	s.router.Route(ctx, envelope)
	return nil
}

// notifyPartner does not fail the group on transport errors; the partner's own
// fallback covers a lost push.
func (s *Session) notifyPartner(ctx context.Context, match MatchFound, partnerID string) error {
	myName, _ := s.names.DisplayName(ctx, s.UserID)
	title, body := DefaultCopy(models.NotificationTypeMatch, myName)
	payload := models.NotificationPayload{
		Type:           models.NotificationTypeMatch,
		Source:         models.SourcePush,
		PartnerID:      s.UserID,
		PartnerName:    myName,
		NotificationID: models.SynthesizeNotificationID(match.EventID, models.NotificationTypeMatch, s.UserID),
		EventID:        match.EventID,
		Title:          title,
		Body:           body,
	}

	log := logrus.WithFields(logrus.Fields{"pairKey": match.PairKey, "recipient": partnerID})
	if s.push == nil {
		log.Warn("⚠️ No push dispatcher, partner relies on fallback")
		return nil
	}
	messageID, err := s.push.SendNotification(ctx, partnerID, payload)
	if err != nil {
		log.WithError(err).Warn("📭 Match push not sent, partner relies on fallback")
		return nil
	}
	log.WithField("messageId", messageID).Info("📤 Match push sent")

	if _, err := s.reconciler.MarkNotified(ctx, match.First, match.Second, partnerID); err != nil {
		return fmt.Errorf("failed to record partner notification: %w", err)
	}
	return nil
}

// expectMatchNotification arms a fallback when this user is in a completed pair and has
// not been shown the match yet. The notified flag is not consulted: the partner's session
// sets it once the provider accepts the push, which says nothing about delivery. A push
// that does arrive cancels the fallback, and anything already surfaced is skipped at render.
func (s *Session) expectMatchNotification(ctx context.Context, like models.LikeRecord) {
	partnerID := like.PartnerOf(s.UserID)
	key := models.FallbackKey(models.NotificationTypeMatch, partnerID)
	id := models.SynthesizeNotificationID(like.EventID, models.NotificationTypeMatch, partnerID)
	if s.fallbacks.Pending(key) || s.surfaced.Seen(ctx, id) || s.router.Seen(ctx, id) {
		return
	}

	first, second, ok, err := s.reconciler.PairOf(ctx, like)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logrus.WithError(err).WithField("likeId", like.ID).Warn("⚠️ Could not load pair for fallback")
		}
		return
	}
	if !ok || !second.IsMutual {
		return
	}

	eventID := like.EventID
	s.fallbacks.Schedule(key, s.cfg.FallbackDelay, func() (models.NotificationEnvelope, bool) {
		ctx, cancel := context.WithTimeout(s.ctx, sessionOpTimeout)
		defer cancel()
		if !s.surfaced.Claim(ctx, id) {
			return models.NotificationEnvelope{}, false
		}
		if _, err := s.reconciler.MarkNotified(ctx, first, second, s.UserID); err != nil {
			logrus.WithError(err).WithField("pairKey", like.PairKey()).Warn("⚠️ Could not record fallback, surfacing anyway")
		}
		return s.matchEnvelope(ctx, eventID, partnerID), true
	})
}

func (s *Session) matchEnvelope(ctx context.Context, eventID, partnerID string) models.NotificationEnvelope {
	partnerName, _ := s.names.DisplayName(ctx, partnerID)
	title, body := DefaultCopy(models.NotificationTypeMatch, partnerName)
	id := models.SynthesizeNotificationID(eventID, models.NotificationTypeMatch, partnerID)
	return models.NotificationEnvelope{
		ID:     id,
		Type:   models.NotificationTypeMatch,
		Source: models.SourceLocalFallback,
		Payload: models.NotificationPayload{
			Type:           models.NotificationTypeMatch,
			Source:         models.SourceLocalFallback,
			PartnerID:      partnerID,
			PartnerName:    partnerName,
			NotificationID: id,
			EventID:        eventID,
			Title:          title,
			Body:           body,
		},
		ReceivedAt: time.Now().UTC(),
	}
}
