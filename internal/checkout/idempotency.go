package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/redis"
)

const (
	idempotencyScope = "checkout"
	pendingMarker    = "pending"
)

// IdempotencyGuard claims checkout tokens in Redis with SETNX so a repeated
// submission of the same token never writes a second sale. Keys follow the
// `pos:idempotency:checkout:<token>` pattern.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyGuard builds a guard that remembers tokens for ttl.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// Claim returns true when the token was not seen before and is now held.
func (g *IdempotencyGuard) Claim(ctx context.Context, token string) (bool, error) {
	key, err := g.key(token)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, pendingMarker, g.ttl)
}

// Complete records the sale produced for the token.
func (g *IdempotencyGuard) Complete(ctx context.Context, token, saleID string) error {
	key, err := g.key(token)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, saleID, g.ttl)
}

// Lookup returns the sale recorded for token, or "" while the first attempt
// is still running or ended without a sale.
func (g *IdempotencyGuard) Lookup(ctx context.Context, token string) (string, error) {
	key, err := g.key(token)
	if err != nil {
		return "", err
	}
	value, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.ErrNil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if value == pendingMarker {
		return "", nil
	}
	return value, nil
}

// Release forgets the token. Only safe when nothing was written for it.
func (g *IdempotencyGuard) Release(ctx context.Context, token string) error {
	key, err := g.key(token)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("idempotency token is required")
	}
	return g.store.IdempotencyKey(idempotencyScope, token), nil
}
