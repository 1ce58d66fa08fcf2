package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/pkg/cache"
)

const pendingMarker = "pending"

// idempotencyGuard remembers which order a PlaceOrder request produced, keyed
// by user and client-supplied key. A nil guard disables the check.
type idempotencyGuard struct {
	cache cache.Cache
	ttl   time.Duration
}

type claim struct {
	key string
	// orderID is set when the key already completed and should be replayed.
	orderID string
	owned   bool
}

func (g *idempotencyGuard) claim(ctx context.Context, userID, key string) (claim, error) {
	if g == nil || key == "" {
		return claim{}, nil
	}
	k := g.cache.GenerateKey("place-order", userID+":"+key)

	ok, err := g.cache.SetNX(ctx, k, pendingMarker, g.ttl)
	if err != nil {
		// The cart version check still stops a double order.
		slog.WarnContext(ctx, "idempotency cache unavailable, continuing without it", "error", err)
		return claim{}, nil
	}
	if ok {
		return claim{key: k, owned: true}, nil
	}

	v, err := g.cache.Get(ctx, k)
	if err != nil {
		slog.WarnContext(ctx, "idempotency cache unavailable, continuing without it", "error", err)
		return claim{}, nil
	}
	if v == "" || v == pendingMarker {
		return claim{}, apperr.New(apperr.KindConflict, "A request with this idempotency key is already in progress")
	}
	return claim{key: k, orderID: v}, nil
}

func (g *idempotencyGuard) complete(ctx context.Context, c claim, orderID string) {
	if g == nil || !c.owned {
		return
	}
	if err := g.cache.Set(ctx, c.key, orderID, g.ttl); err != nil {
		slog.WarnContext(ctx, "failed to record idempotency result", "key", c.key, "error", err)
	}
}

func (g *idempotencyGuard) release(ctx context.Context, c claim) {
	if g == nil || !c.owned {
		return
	}
	if err := g.cache.Del(ctx, c.key); err != nil {
		slog.WarnContext(ctx, "failed to release idempotency key", "key", c.key, "error", err)
	}
}
