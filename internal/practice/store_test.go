package practice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ebarkley/versewise/internal/practice"
)

func TestMemStore_PutGeneratesID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := practice.NewMemStore()

	s, err := practice.NewSession("", "subj", "text", "alpha beta", nil, practice.ModeWord, 0, start)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("Put left session ID empty")
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Errorf("Get returned a different session pointer")
	}
}

func TestMemStore_GetAndDeleteMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := practice.NewMemStore()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, practice.ErrSessionNotFound) {
		t.Errorf("Get(missing): err = %v, want ErrSessionNotFound", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, practice.ErrSessionNotFound) {
		t.Errorf("Delete(missing): err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemStore_PruneIdle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := practice.NewMemStore()

	fresh, err := practice.NewSession("fresh", "subj", "text", "alpha", nil, practice.ModeWord, 0, start)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	stale, err := practice.NewSession("stale", "subj", "text", "alpha", nil, practice.ModeWord, 0, start.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for _, s := range []*practice.Session{fresh, stale} {
		if err := store.Put(ctx, s); err != nil {
			t.Fatalf("Put(%s): %v", s.ID, err)
		}
	}

	removed, err := store.PruneIdle(ctx, start, time.Hour)
	if err != nil {
		t.Fatalf("PruneIdle: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "stale"); !errors.Is(err, practice.ErrSessionNotFound) {
		t.Errorf("stale session still present after prune")
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session pruned: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}
