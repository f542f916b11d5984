// Package runstore persists workflow run state across process restarts.
// Exactly one checkpoint exists per conversation thread; each checkpoint
// supersedes the prior one, and a checkpoint must be durable before the
// engine releases control at its suspend point.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flitsinc/schedd/internal/schema"
)

var ErrNotFound = errors.New("checkpoint not found")

type Store struct {
	db    *sql.DB
	nowFn func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Checkpoint upserts the serialized run state for the thread. The write is
// committed before Checkpoint returns, so a process crash after a suspend
// point cannot lose the run.
func (s *Store) Checkpoint(ctx context.Context, thread schema.ThreadID, state any) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (thread, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, thread.Key(), string(payload), s.nowFn().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("checkpoint run: %w", err)
	}
	return nil
}

// Load decodes the thread's checkpoint into dest. Returns ErrNotFound when
// no checkpoint exists, which a resuming caller must treat as fatal for that
// thread only.
func (s *Store) Load(ctx context.Context, thread schema.ThreadID, dest any) error {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM runs WHERE thread = ?`, thread.Key()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return fmt.Errorf("decode run state: %w", err)
	}
	return nil
}

// Drop removes the thread's checkpoint. Idempotent.
func (s *Store) Drop(ctx context.Context, thread schema.ThreadID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE thread = ?`, thread.Key()); err != nil {
		return fmt.Errorf("drop run: %w", err)
	}
	return nil
}

// UpdatedAt reports when the thread's checkpoint was last written.
func (s *Store) UpdatedAt(ctx context.Context, thread schema.ThreadID) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM runs WHERE thread = ?`, thread.Key()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load run timestamp: %w", err)
	}
	ts, _ := time.Parse(time.RFC3339Nano, raw)
	return ts, nil
}
