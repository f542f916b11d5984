package prefs

import (
	"context"
	"testing"

	"github.com/flitsinc/schedd/internal/testutil"
)

func TestStoreUpsertSearchScoped(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()

	if err := store.Upsert(ctx, "U1", "mornings only"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, "U1", "no meetings on Friday"); err != nil {
		t.Fatalf("upsert second: %v", err)
	}
	if err := store.Upsert(ctx, "U2", "afternoons preferred"); err != nil {
		t.Fatalf("upsert other participant: %v", err)
	}

	got, err := store.Search(ctx, "U1", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 preferences for U1, got %v", got)
	}

	// Other participants never leak in.
	for _, p := range got {
		if p == "afternoons preferred" {
			t.Fatalf("U2 preference leaked into U1 results")
		}
	}

	filtered, err := store.Search(ctx, "U1", "Friday")
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	if len(filtered) != 1 || filtered[0] != "no meetings on Friday" {
		t.Fatalf("expected Friday preference, got %v", filtered)
	}
}

func TestStoreUpsertIdempotent(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Upsert(ctx, "U1", "mornings only"); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	got, err := store.Search(ctx, "U1", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 preference, got %v", got)
	}
}

func TestStoreDelete(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()

	if err := store.Upsert(ctx, "U1", "mornings only"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Delete(ctx, "U1", "mornings only"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.Search(ctx, "U1", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no preferences, got %v", got)
	}
}

func TestStoreRejectsEmpty(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()

	store := NewStore(db)
	ctx := context.Background()

	if err := store.Upsert(ctx, "", "mornings"); err == nil {
		t.Fatalf("expected error for empty participant")
	}
	if err := store.Upsert(ctx, "U1", "   "); err == nil {
		t.Fatalf("expected error for empty content")
	}
	if _, err := store.Search(ctx, "", ""); err == nil {
		t.Fatalf("expected error for empty participant search")
	}
}
