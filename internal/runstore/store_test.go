package runstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/flitsinc/schedd/internal/schema"
	"github.com/flitsinc/schedd/internal/testutil"
)

type checkpointState struct {
	Stage       string    `json:"stage"`
	Round       int       `json:"round"`
	Constraints []string  `json:"constraints"`
	Anchor      time.Time `json:"anchor"`
}

func TestStoreCheckpointLoadDrop(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()
	thread := schema.ThreadID{ChannelID: "C1", ThreadTS: "1.0"}

	var missing checkpointState
	if err := store.Load(ctx, thread, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	state := checkpointState{
		Stage:       "await_reply",
		Round:       2,
		Constraints: []string{"afternoon only"},
		Anchor:      time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := store.Checkpoint(ctx, thread, state); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	var back checkpointState
	if err := store.Load(ctx, thread, &back); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(state, back) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", state, back)
	}

	if _, err := store.UpdatedAt(ctx, thread); err != nil {
		t.Fatalf("updated at: %v", err)
	}

	if err := store.Drop(ctx, thread); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := store.Load(ctx, thread, &back); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after drop, got %v", err)
	}
	// Drop is idempotent.
	if err := store.Drop(ctx, thread); err != nil {
		t.Fatalf("second drop: %v", err)
	}
}

func TestStoreCheckpointSupersedes(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()
	thread := schema.ThreadID{ChannelID: "C1", ThreadTS: "2.0"}

	if err := store.Checkpoint(ctx, thread, checkpointState{Round: 1}); err != nil {
		t.Fatalf("first checkpoint: %v", err)
	}
	if err := store.Checkpoint(ctx, thread, checkpointState{Round: 2}); err != nil {
		t.Fatalf("second checkpoint: %v", err)
	}

	var back checkpointState
	if err := store.Load(ctx, thread, &back); err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.Round != 2 {
		t.Fatalf("expected latest checkpoint, got round %d", back.Round)
	}
}

func TestStoreIsolatesThreads(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()
	a := schema.ThreadID{ChannelID: "C1", ThreadTS: "1.0"}
	b := schema.ThreadID{ChannelID: "C1", ThreadTS: "2.0"}

	if err := store.Checkpoint(ctx, a, checkpointState{Round: 1}); err != nil {
		t.Fatalf("checkpoint a: %v", err)
	}
	if err := store.Checkpoint(ctx, b, checkpointState{Round: 7}); err != nil {
		t.Fatalf("checkpoint b: %v", err)
	}
	if err := store.Drop(ctx, a); err != nil {
		t.Fatalf("drop a: %v", err)
	}

	var back checkpointState
	if err := store.Load(ctx, b, &back); err != nil {
		t.Fatalf("load b: %v", err)
	}
	if back.Round != 7 {
		t.Fatalf("expected b untouched, got %+v", back)
	}
}
