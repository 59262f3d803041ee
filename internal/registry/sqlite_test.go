package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func openTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "widgets.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRegistryAddListRemove(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	a, err := r.Add(ctx, 180)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", a.ID)
	}
	b, err := r.Add(ctx, 420)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	list, err := r.ListInstances(ctx)
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(list))
	}

	got, err := r.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MinWidthDp != 420 || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected record %+v", got)
	}

	if err := r.Remove(ctx, a.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := r.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Remove(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestRegistryPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.db")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rec, err := r.Add(context.Background(), 250)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	_ = r.Close()

	r, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer r.Close()
	if _, err := r.Get(context.Background(), rec.ID); err != nil {
		t.Fatalf("expected instance after reopen: %v", err)
	}
}
