package services

import (
	"sync"

	"vibin_notifier/models"
)

// ForegroundState is the read side handed to consumers.
type ForegroundState interface {
	IsForeground() bool
}

// ForegroundTracker follows lifecycle transitions reported by the UI.
// Only "active" counts as foreground.
type ForegroundTracker struct {
	mu        sync.RWMutex
	state     string
	listeners map[int]func(bool)
	nextID    int
}

var _ ForegroundState = (*ForegroundTracker)(nil)

func NewForegroundTracker(initial string) *ForegroundTracker {
	if initial == "" {
		initial = models.LifecycleBackground
	}
	return &ForegroundTracker{state: initial, listeners: make(map[int]func(bool))}
}

func (t *ForegroundTracker) IsForeground() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == models.LifecycleActive
}

func (t *ForegroundTracker) State() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Transition records a lifecycle state. Listeners hear only changes of the foreground boolean.
func (t *ForegroundTracker) Transition(state string) {
	t.mu.Lock()
	was := t.state == models.LifecycleActive
	t.state = state
	now := state == models.LifecycleActive
	var notify []func(bool)
	if was != now {
		notify = make([]func(bool), 0, len(t.listeners))
		for _, fn := range t.listeners {
			notify = append(notify, fn)
		}
	}
	t.mu.Unlock()

	for _, fn := range notify {
		fn(now)
	}
}

// Subscribe registers fn and returns its disposer.
func (t *ForegroundTracker) Subscribe(fn func(foreground bool)) Unsubscribe {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// ValidLifecycleState reports whether s is a state the UI may report.
func ValidLifecycleState(s string) bool {
	switch s {
	case models.LifecycleActive, models.LifecycleInactive, models.LifecycleBackground:
		return true
	}
	return false
}
