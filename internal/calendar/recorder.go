// Package calendar provides the meeting commit side of the workflow. The
// Recorder writes confirmed meetings to the local store; a real calendar
// integration would implement the same commit contract.
package calendar

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
	"github.com/flitsinc/schedd/internal/idgen"
)

type Recorder struct {
	db    *sql.DB
	nowFn func() time.Time
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{
		db:    db,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Meeting is a committed meeting as stored.
type Meeting struct {
	ID          string    `json:"id"`
	Thread      string    `json:"thread,omitempty"`
	Organizer   string    `json:"organizer"`
	Title       string    `json:"title"`
	Attendees   []string  `json:"attendees"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Commit persists the meeting and returns its reference id. It runs at most
// once per workflow run; a failure here is surfaced, never retried.
func (r *Recorder) Commit(ctx context.Context, req capability.MeetingRequest) (string, error) {
	if req.Title == "" {
		return "", fmt.Errorf("title is required")
	}
	if req.Start.IsZero() || !req.End.After(req.Start) {
		return "", fmt.Errorf("invalid meeting window")
	}

	attendees, err := json.Marshal(req.Attendees)
	if err != nil {
		return "", fmt.Errorf("encode attendees: %w", err)
	}

	organizer := req.Organizer.Email
	if organizer == "" {
		organizer = req.Organizer.ID
	}

	id := idgen.New()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meetings (id, thread, organizer, title, attendees, start_at, end_at, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.Thread, organizer, req.Title, string(attendees),
		req.Start.UTC().Format(time.RFC3339Nano), req.End.UTC().Format(time.RFC3339Nano),
		req.Description, r.nowFn().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert meeting: %w", err)
	}
	return id, nil
}

// List returns committed meetings, newest first, optionally scoped to one
// conversation thread.
func (r *Recorder) List(ctx context.Context, thread string, limit int) ([]Meeting, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, thread, organizer, title, attendees, start_at, end_at, description, created_at
		FROM meetings`
	args := []any{}
	if thread != "" {
		query += ` WHERE thread = ?`
		args = append(args, thread)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []Meeting
	for rows.Next() {
		var m Meeting
		var attendeesStr, startStr, endStr, createdStr string
		if err := rows.Scan(&m.ID, &m.Thread, &m.Organizer, &m.Title, &attendeesStr, &startStr, &endStr, &m.Description, &createdStr); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		_ = json.Unmarshal([]byte(attendeesStr), &m.Attendees)
		m.Start, _ = time.Parse(time.RFC3339Nano, startStr)
		m.End, _ = time.Parse(time.RFC3339Nano, endStr)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return out, nil
}
