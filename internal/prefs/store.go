// Package prefs stores durable per-participant scheduling preferences.
// Preferences outlive any single conversation; the slot proposer folds them
// into its constraint set on every round.
package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/schedd/internal/idgen"
)

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

// Search returns the participant's stored preferences, optionally filtered by
// a substring query. Results are always scoped to the one participant.
func (s *Store) Search(ctx context.Context, participant, query string) ([]string, error) {
	if participant == "" {
		return nil, fmt.Errorf("participant is required")
	}
	sqlQuery := `SELECT content FROM preferences WHERE participant = ?`
	args := []any{participant}
	if q := strings.TrimSpace(query); q != "" {
		sqlQuery += ` AND content LIKE ?`
		args = append(args, "%"+q+"%")
	}
	sqlQuery += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search preferences: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return out, nil
}

// Upsert stores a preference for the participant. An identical entry is
// refreshed rather than duplicated.
func (s *Store) Upsert(ctx context.Context, participant, content string) error {
	if participant == "" {
		return fmt.Errorf("participant is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("content is required")
	}
	now := s.nowFn().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
		UPDATE preferences SET updated_at = ? WHERE participant = ? AND content = ?
	`, now, participant, content)
	if err != nil {
		return fmt.Errorf("refresh preference: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refresh preference rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (id, participant, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, idgen.New(), participant, content, now, now)
	if err != nil {
		return fmt.Errorf("insert preference: %w", err)
	}
	return nil
}

// Delete removes one stored preference. Idempotent.
func (s *Store) Delete(ctx context.Context, participant, content string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM preferences WHERE participant = ? AND content = ?
	`, participant, content); err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}
