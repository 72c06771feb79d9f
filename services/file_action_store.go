package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vibin_notifier/models"
)

type fileQueueSnapshot struct {
	Actions []models.QueuedAction `json:"actions"`
}

// FileActionStore persists the queue as a JSON snapshot, rewritten atomically on every change.
type FileActionStore struct {
	mu      sync.Mutex
	path    string
	actions []models.QueuedAction
	closed  bool
}

var _ ActionStore = (*FileActionStore)(nil)

// OpenFileActionStore loads an existing snapshot, if any.
func OpenFileActionStore(path string) (*FileActionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}
	s := &FileActionStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileActionStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var snapshot fileQueueSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to decode queue file %s: %w", s.path, err)
	}
	s.actions = snapshot.Actions
	return nil
}

func (s *FileActionStore) saveLocked() error {
	data, err := json.MarshalIndent(fileQueueSnapshot{Actions: s.actions}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	return nil
}

func (s *FileActionStore) Append(ctx context.Context, action models.QueuedAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrQueueClosed
	}
	s.actions = append(s.actions, action)
	if err := s.saveLocked(); err != nil {
		s.actions = s.actions[:len(s.actions)-1]
		return err
	}
	return nil
}

func (s *FileActionStore) Peek(ctx context.Context) (models.QueuedAction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.QueuedAction{}, false, ErrQueueClosed
	}
	if len(s.actions) == 0 {
		return models.QueuedAction{}, false, nil
	}
	return s.actions[0], true, nil
}

func (s *FileActionStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrQueueClosed
	}
	for i, action := range s.actions {
		if action.ID != id {
			continue
		}
		previous := s.actions
		s.actions = append(append([]models.QueuedAction(nil), s.actions[:i]...), s.actions[i+1:]...)
		if err := s.saveLocked(); err != nil {
			s.actions = previous
			return err
		}
		return nil
	}
	return ErrNotFound
}

func (s *FileActionStore) List(ctx context.Context) ([]models.QueuedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.QueuedAction(nil), s.actions...), nil
}

func (s *FileActionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
