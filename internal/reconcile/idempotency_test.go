package reconcile

import (
	"context"
	"testing"
	"time"
)

type fakeIdempotencyStore struct {
	keys   map[string]bool
	setErr error
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "pr:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestIdempotencyGuard_CheckAndMark(t *testing.T) {
	guard, err := NewIdempotencyGuard(&fakeIdempotencyStore{}, time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("check and mark: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not be marked seen")
	}

	seen, err = guard.CheckAndMark(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("check and mark: %v", err)
	}
	if !seen {
		t.Fatal("second delivery must be marked seen")
	}
}

func TestIdempotencyGuard_DeleteReleasesKey(t *testing.T) {
	store := &fakeIdempotencyStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt-2"); err != nil {
		t.Fatalf("check and mark: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt-2")
	if err != nil {
		t.Fatalf("check and mark: %v", err)
	}
	if seen {
		t.Fatal("released key must allow reprocessing")
	}
}

func TestIdempotencyGuard_RequiresEventID(t *testing.T) {
	guard, err := NewIdempotencyGuard(&fakeIdempotencyStore{}, time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
	if err := guard.Delete(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
}
