package idempotency

import (
	"context"
	"errors"
	"strings"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/app/repository"
)

var ErrDuplicateRequest = errors.New("duplicate request for idempotency key")

// Guard enforces at-most-once completion for client-supplied request tokens
// on direct mutating endpoints (webhooks have their own event-store dedupe).
// Begin claims the key; Release frees it after a failed attempt so a
// legitimate retry can go through; a key left in place after success is the
// durable completion marker.
type Guard struct {
	repo repository.IdempotencyKeyRepository
}

// NewGuard creates a guard from an injected repository.
func NewGuard(repo repository.IdempotencyKeyRepository) *Guard {
	return &Guard{repo: repo}
}

// Begin claims the key atomically. A second claim before Release fails with
// ErrDuplicateRequest, whether the first attempt is still running or already
// completed.
func (g *Guard) Begin(ctx context.Context, key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return errors.New("idempotency key is required")
	}
	created, err := g.repo.CreateIfNotExists(ctx, &models.IdempotencyKey{Key: trimmed})
	if err != nil {
		return err
	}
	if !created {
		return ErrDuplicateRequest
	}
	return nil
}

// Commit keeps the key row in place as the completion marker.
func (g *Guard) Commit(ctx context.Context, key string) error {
	_ = ctx
	_ = key
	return nil
}

// Release removes the key after a failed attempt.
func (g *Guard) Release(ctx context.Context, key string) error {
	return g.repo.Delete(ctx, strings.TrimSpace(key))
}
