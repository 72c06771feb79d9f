package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"vibin_notifier/models"
)

// ActionStore is the durable, ordered storage behind an OfflineActionQueue.
type ActionStore interface {
	Append(ctx context.Context, action models.QueuedAction) error
	// Peek returns the oldest action; ok is false when the store is empty.
	Peek(ctx context.Context) (action models.QueuedAction, ok bool, err error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.QueuedAction, error)
	Close() error
}

// OpenActionStore picks a backend from the DSN scheme: memory://, file://<path> or sqlite://<path>.
// Every owner gets its own queue.
func OpenActionStore(dsn, owner string) (ActionStore, error) {
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "memory://"):
		return NewMemoryActionStore(), nil
	case strings.HasPrefix(dsn, "file://"):
		path := strings.TrimPrefix(dsn, "file://")
		if path == "" {
			return nil, fmt.Errorf("file queue DSN %q has no path", dsn)
		}
		return OpenFileActionStore(ownerPath(path, owner))
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite queue DSN %q has no path", dsn)
		}
		return OpenSQLiteActionStore(path, owner)
	}
	return nil, fmt.Errorf("unsupported queue DSN %q", dsn)
}

// ownerPath gives each owner its own file next to path. Bytes outside [A-Za-z0-9-] are
// written as _xx hex, so distinct owners never share a file.
func ownerPath(path, owner string) string {
	if owner == "" {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "-" + escapeOwner(owner) + ext
}

func escapeOwner(owner string) string {
	var b strings.Builder
	for i := 0; i < len(owner); i++ {
		c := owner[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

// MemoryActionStore loses its contents with the process.
type MemoryActionStore struct {
	mu      sync.Mutex
	actions []models.QueuedAction
}

var _ ActionStore = (*MemoryActionStore)(nil)

func NewMemoryActionStore() *MemoryActionStore {
	return &MemoryActionStore{}
}

func (s *MemoryActionStore) Append(ctx context.Context, action models.QueuedAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *MemoryActionStore) Peek(ctx context.Context) (models.QueuedAction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actions) == 0 {
		return models.QueuedAction{}, false, nil
	}
	return s.actions[0], true, nil
}

func (s *MemoryActionStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, action := range s.actions {
		if action.ID == id {
			s.actions = append(s.actions[:i], s.actions[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryActionStore) List(ctx context.Context) ([]models.QueuedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.QueuedAction(nil), s.actions...), nil
}

func (s *MemoryActionStore) Close() error {
	return nil
}
