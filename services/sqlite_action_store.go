package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vibin_notifier/models"

	_ "modernc.org/sqlite"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS queued_actions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    owner TEXT NOT NULL,
    operation TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    enqueued_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queued_actions_owner ON queued_actions(owner, seq);
`

// SQLiteActionStore keeps queued actions in a local SQLite file; seq preserves enqueue order.
type SQLiteActionStore struct {
	db    *sql.DB
	owner string
}

var _ ActionStore = (*SQLiteActionStore)(nil)

func OpenSQLiteActionStore(path, owner string) (*SQLiteActionStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite queue: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(queueSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply queue schema: %w", err)
	}
	return &SQLiteActionStore{db: db, owner: owner}, nil
}

func (s *SQLiteActionStore) Append(ctx context.Context, action models.QueuedAction) error {
	metadata, err := json.Marshal(action.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queued_actions (id, owner, operation, metadata, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		action.ID, s.owner, action.Operation, string(metadata), action.EnqueuedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queued action: %w", err)
	}
	return nil
}

func (s *SQLiteActionStore) Peek(ctx context.Context) (models.QueuedAction, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, metadata, enqueued_at FROM queued_actions WHERE owner = ? ORDER BY seq LIMIT 1`,
		s.owner,
	)
	action, err := scanQueuedAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueuedAction{}, false, nil
	}
	if err != nil {
		return models.QueuedAction{}, false, err
	}
	return action, true, nil
}

func (s *SQLiteActionStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queued_actions WHERE id = ? AND owner = ?`, id, s.owner)
	if err != nil {
		return fmt.Errorf("failed to delete queued action: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteActionStore) List(ctx context.Context) ([]models.QueuedAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, metadata, enqueued_at FROM queued_actions WHERE owner = ? ORDER BY seq`,
		s.owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued actions: %w", err)
	}
	defer rows.Close()

	var actions []models.QueuedAction
	for rows.Next() {
		action, err := scanQueuedAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (s *SQLiteActionStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueuedAction(row rowScanner) (models.QueuedAction, error) {
	var (
		action     models.QueuedAction
		metadata   string
		enqueuedAt string
	)
	if err := row.Scan(&action.ID, &action.Operation, &metadata, &enqueuedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return action, err
		}
		return action, fmt.Errorf("failed to scan queued action: %w", err)
	}
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &action.Metadata); err != nil {
			return action, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, enqueuedAt)
	if err != nil {
		return action, fmt.Errorf("failed to parse enqueued_at: %w", err)
	}
	action.EnqueuedAt = t
	return action, nil
}
