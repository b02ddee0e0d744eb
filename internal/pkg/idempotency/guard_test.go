package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/bountyhub-app/bountyhub/app/models"
)

type fakeKeyRepo struct {
	keys map[string]bool
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{keys: make(map[string]bool)}
}

func (r *fakeKeyRepo) CreateIfNotExists(ctx context.Context, key *models.IdempotencyKey) (bool, error) {
	if r.keys[key.Key] {
		return false, nil
	}
	r.keys[key.Key] = true
	return true, nil
}

func (r *fakeKeyRepo) Delete(ctx context.Context, key string) error {
	delete(r.keys, key)
	return nil
}

func (r *fakeKeyRepo) Exists(ctx context.Context, key string) (bool, error) {
	return r.keys[key], nil
}

func TestGuardBeginRejectsDuplicate(t *testing.T) {
	guard := NewGuard(newFakeKeyRepo())
	ctx := context.Background()

	if err := guard.Begin(ctx, "req-123"); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if err := guard.Begin(ctx, "req-123"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("second Begin: got %v, want ErrDuplicateRequest", err)
	}
}

func TestGuardCommitKeepsKeyAsCompletionMarker(t *testing.T) {
	repo := newFakeKeyRepo()
	guard := NewGuard(repo)
	ctx := context.Background()

	if err := guard.Begin(ctx, "req-456"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := guard.Commit(ctx, "req-456"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// The surviving row is the dedupe signal after success.
	if err := guard.Begin(ctx, "req-456"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("Begin after Commit: got %v, want ErrDuplicateRequest", err)
	}
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	guard := NewGuard(newFakeKeyRepo())
	ctx := context.Background()

	if err := guard.Begin(ctx, "req-789"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := guard.Release(ctx, "req-789"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// A failed attempt released the key, so the retry is accepted.
	if err := guard.Begin(ctx, "req-789"); err != nil {
		t.Fatalf("Begin after Release: %v", err)
	}
}

func TestGuardRequiresKey(t *testing.T) {
	guard := NewGuard(newFakeKeyRepo())
	if err := guard.Begin(context.Background(), "  "); err == nil {
		t.Fatalf("expected blank key to fail")
	}
}
