// Package replay remembers applied webhook bodies so exact redeliveries are
// acknowledged without being processed twice.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "kycflow:webhook:"
	DefaultTTL = 24 * time.Hour
)

type Guard struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewGuard(client redis.Cmdable, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{client: client, ttl: ttl}
}

// Seen reports whether body was already applied within the TTL.
func (g *Guard) Seen(ctx context.Context, body []byte) (bool, error) {
	n, err := g.client.Exists(ctx, Key(body)).Result()
	if err != nil {
		return false, fmt.Errorf("replay lookup: %w", err)
	}
	return n > 0, nil
}

// Remember records body as applied. It reports false when another delivery
// recorded it first.
func (g *Guard) Remember(ctx context.Context, body []byte) (bool, error) {
	ok, err := g.client.SetNX(ctx, Key(body), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay record: %w", err)
	}
	return ok, nil
}

// Key is the Redis key for a delivery body.
func Key(body []byte) string {
	sum := sha256.Sum256(body)
	return keyPrefix + hex.EncodeToString(sum[:])
}
