package services

import (
	"context"
	"sync"
	"time"

	"vibin_notifier/models"

	"github.com/sirupsen/logrus"
)

// EnvelopeSink receives fallback envelopes when they fire.
type EnvelopeSink interface {
	Route(ctx context.Context, envelope models.NotificationEnvelope) RouteDecision
}

// RenderFunc builds the fallback at fire time. Returning false skips it.
type RenderFunc func() (models.NotificationEnvelope, bool)

type pendingFallback struct {
	timer  *time.Timer
	render RenderFunc
}

// LocalFallbackScheduler holds at most one pending one-shot fallback per key.
type LocalFallbackScheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingFallback
	sink    EnvelopeSink
	closed  bool
}

func NewLocalFallbackScheduler(sink EnvelopeSink) *LocalFallbackScheduler {
	return &LocalFallbackScheduler{pending: make(map[string]*pendingFallback), sink: sink}
}

// SetSink swaps the sink; the router and the scheduler reference each other.
func (s *LocalFallbackScheduler) SetSink(sink EnvelopeSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Schedule arms a fallback for key. It reports false when one is already pending
// or the scheduler is closed; the earlier fallback keeps its deadline.
func (s *LocalFallbackScheduler) Schedule(key string, delay time.Duration, render RenderFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, exists := s.pending[key]; exists {
		return false
	}

	entry := &pendingFallback{render: render}
	entry.timer = time.AfterFunc(delay, func() { s.fire(key, entry) })
	s.pending[key] = entry
	logrus.WithFields(logrus.Fields{"key": key, "delay": delay}).Debug("⏲️ Fallback scheduled")
	return true
}

// Cancel removes a pending fallback. It reports whether one was pending.
func (s *LocalFallbackScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(s.pending, key)
	logrus.WithField("key", key).Debug("🛑 Fallback cancelled")
	return true
}

func (s *LocalFallbackScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Close stops every pending timer; later Schedule calls are refused.
func (s *LocalFallbackScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, key)
	}
}

// fire runs on the timer goroutine. The pointer check drops a timer that was
// cancelled, or replaced, after it had already started.
func (s *LocalFallbackScheduler) fire(key string, entry *pendingFallback) {
	s.mu.Lock()
	current, ok := s.pending[key]
	if !ok || current != entry || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	sink := s.sink
	s.mu.Unlock()

	envelope, ok := entry.render()
	if !ok {
		logrus.WithField("key", key).Debug("ℹ️ Fallback no longer needed")
		return
	}
	if sink == nil {
		logrus.WithField("key", key).Warn("⚠️ Fallback fired with no sink")
		return
	}
	sink.Route(context.Background(), envelope)
}
