package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/flitsinc/schedd/internal/schema"
)

type Status string

const (
	StatusRunning       Status = "running"
	StatusAwaitingReply Status = "awaiting_reply"
)

// Classification of an inbound event against the registry.
type Classification string

const (
	ClassNew               Classification = "new"
	ClassResumable         Classification = "resumable"
	ClassDuplicateInFlight Classification = "duplicate_in_flight"
)

type Record struct {
	Thread    schema.ThreadID `json:"thread"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var ErrNotFound = errors.New("session not found")

// Registry tracks at most one session record per conversation thread. It is
// the source of truth for whether a thread is mid-workflow and whether the run
// is currently waiting on a human. All mutations are single guarded statements
// keyed by thread, so operations on different threads never block each other
// and operations on the same thread serialize in the store.
type Registry struct {
	db    *sql.DB
	nowFn func() time.Time
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{
		db:    db,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) now() string {
	return r.nowFn().UTC().Format(time.RFC3339Nano)
}

// Create establishes a RUNNING record for the thread. An existing record is
// overwritten, but that indicates a prior run was abandoned without cleanup
// and is logged as anomalous.
func (r *Registry) Create(ctx context.Context, thread schema.ThreadID) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (thread, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread) DO NOTHING
	`, thread.Key(), StatusRunning, now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert session rows affected: %w", err)
	}
	if affected == 0 {
		log.Printf("session: overwriting existing record for %s (prior run not cleaned up)", thread)
		if _, err := r.db.ExecContext(ctx, `
			UPDATE sessions SET status = ?, created_at = ?, updated_at = ? WHERE thread = ?
		`, StatusRunning, now, now, thread.Key()); err != nil {
			return fmt.Errorf("overwrite session: %w", err)
		}
	}
	return nil
}

// Classify reports how an inbound event for the thread should be handled:
// no record means a new workflow, an AWAITING_REPLY record means the event is
// the reply a suspended run is waiting for, and a RUNNING record means the
// run is still executing and the event is a duplicate.
func (r *Registry) Classify(ctx context.Context, thread schema.ThreadID) (Classification, error) {
	rec, err := r.Get(ctx, thread)
	if errors.Is(err, ErrNotFound) {
		return ClassNew, nil
	}
	if err != nil {
		return "", err
	}
	if rec.Status == StatusAwaitingReply {
		return ClassResumable, nil
	}
	return ClassDuplicateInFlight, nil
}

// BeginRun atomically classifies the thread and claims it for the caller.
// Exactly one of two concurrent callers for the same thread can obtain
// ClassNew (or ClassResumable); the loser sees ClassDuplicateInFlight. Each
// path is a single guarded statement, so there is no window between the check
// and the claim.
func (r *Registry) BeginRun(ctx context.Context, thread schema.ThreadID) (Classification, error) {
	now := r.now()

	// Claim a suspended run first: CAS awaiting_reply -> running.
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, updated_at = ? WHERE thread = ? AND status = ?
	`, StatusRunning, now, thread.Key(), StatusAwaitingReply)
	if err != nil {
		return "", fmt.Errorf("claim suspended session: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("claim suspended session rows affected: %w", err)
	} else if affected == 1 {
		return ClassResumable, nil
	}

	// No suspended run; try to be the one that creates the session.
	res, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (thread, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread) DO NOTHING
	`, thread.Key(), StatusRunning, now, now)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("insert session rows affected: %w", err)
	} else if affected == 1 {
		return ClassNew, nil
	}

	// A record exists and is RUNNING (or was just claimed by someone else).
	return ClassDuplicateInFlight, nil
}

// MarkAwaiting flips the record to AWAITING_REPLY. A missing record should not
// happen under correct dispatch; it is logged, not fatal.
func (r *Registry) MarkAwaiting(ctx context.Context, thread schema.ThreadID) error {
	return r.setStatus(ctx, thread, StatusAwaitingReply)
}

// MarkRunning flips the record back to RUNNING on resume.
func (r *Registry) MarkRunning(ctx context.Context, thread schema.ThreadID) error {
	return r.setStatus(ctx, thread, StatusRunning)
}

func (r *Registry) setStatus(ctx context.Context, thread schema.ThreadID, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, updated_at = ? WHERE thread = ?
	`, status, r.now(), thread.Key())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session status rows affected: %w", err)
	}
	if affected == 0 {
		log.Printf("session: no record for %s while marking %s", thread, status)
	}
	return nil
}

// Close removes the record. Idempotent.
func (r *Registry) Close(ctx context.Context, thread schema.ThreadID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE thread = ?`, thread.Key()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, thread schema.ThreadID) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT thread, status, created_at, updated_at FROM sessions WHERE thread = ?
	`, thread.Key())
	return scanRecord(row)
}

func (r *Registry) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT thread, status, created_at, updated_at FROM sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var key, createdAtStr, updatedAtStr string
	if err := row.Scan(&key, &rec.Status, &createdAtStr, &updatedAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("scan session: %w", err)
	}
	thread, err := schema.ParseThreadKey(key)
	if err != nil {
		return Record{}, err
	}
	rec.Thread = thread
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	return rec, nil
}
