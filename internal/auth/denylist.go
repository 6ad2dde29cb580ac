package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the token would have expired
// anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// noopDenylist is used when revocation is disabled: logout is then purely a
// client-side token discard.
type noopDenylist struct{}

func (noopDenylist) Revoke(context.Context, string, time.Time) error { return nil }

func (noopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }

const redisDenylistPrefix = "revoked:"

type redisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisDenylist(client *redis.Client) Denylist {
	return &redisDenylist{client: client, now: time.Now}
}

func (d *redisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, redisDenylistPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return nil
}

func (d *redisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, redisDenylistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis unavailable: %w", err)
	}
	return n > 0, nil
}
