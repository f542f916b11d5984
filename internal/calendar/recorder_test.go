package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
	"github.com/flitsinc/schedd/internal/testutil"
)

func TestRecorderCommitAndList(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	rec := NewRecorder(db)
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	ref, err := rec.Commit(ctx, capability.MeetingRequest{
		Thread:    "C1:1.0",
		Organizer: capability.User{ID: "U1", Email: "u1@example.com"},
		Title:     "Sync",
		Attendees: []string{"u1@example.com", "u2@example.com"},
		Start:     start,
		End:       start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ref == "" {
		t.Fatalf("expected a reference id")
	}

	items, err := rec.List(ctx, "C1:1.0", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 meeting, got %d", len(items))
	}
	m := items[0]
	if m.ID != ref || m.Title != "Sync" || m.Organizer != "u1@example.com" {
		t.Fatalf("unexpected meeting: %+v", m)
	}
	if len(m.Attendees) != 2 {
		t.Fatalf("expected 2 attendees, got %v", m.Attendees)
	}
	if !m.Start.Equal(start) {
		t.Fatalf("expected start %v, got %v", start, m.Start)
	}

	other, err := rec.List(ctx, "C9:9.9", 10)
	if err != nil {
		t.Fatalf("list other thread: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no meetings for other thread, got %d", len(other))
	}
}

func TestRecorderRejectsInvalidWindow(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	rec := NewRecorder(db)
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	if _, err := rec.Commit(ctx, capability.MeetingRequest{
		Organizer: capability.User{ID: "U1"},
		Title:     "Sync",
		Start:     start,
		End:       start,
	}); err == nil {
		t.Fatalf("expected error for empty window")
	}
	if _, err := rec.Commit(ctx, capability.MeetingRequest{
		Organizer: capability.User{ID: "U1"},
		Start:     start,
		End:       start.Add(time.Hour),
	}); err == nil {
		t.Fatalf("expected error for missing title")
	}
}
