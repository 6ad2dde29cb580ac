package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisCodePrefix = "vc:"

	// Records outlive ExpiresAt briefly so a late verify reports expiry
	// rather than absence.
	redisCodeGrace = time.Minute
)

var incrementAttemptsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

type redisCodeRepository struct {
	client *redis.Client
}

func NewRedisCodeRepository(client *redis.Client) CodeRepository {
	return &redisCodeRepository{client: client}
}

func (r *redisCodeRepository) key(email string) string {
	return redisCodePrefix + email
}

func (r *redisCodeRepository) Get(ctx context.Context, email string) (*VerificationCode, error) {
	fields, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis unavailable: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCodeNotFound
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt verification record for %s: %w", email, err)
	}
	lastSentAt, err := strconv.ParseInt(fields["last_sent_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt verification record for %s: %w", email, err)
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("corrupt verification record for %s: %w", email, err)
	}

	return &VerificationCode{
		Email:      email,
		CodeHash:   fields["code_hash"],
		ExpiresAt:  time.UnixMilli(expiresAt),
		LastSentAt: time.UnixMilli(lastSentAt),
		Attempts:   attempts,
	}, nil
}

func (r *redisCodeRepository) Upsert(ctx context.Context, code *VerificationCode) error {
	key := r.key(code.Email)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"code_hash":    code.CodeHash,
			"expires_at":   code.ExpiresAt.UnixMilli(),
			"last_sent_at": code.LastSentAt.UnixMilli(),
			"attempts":     code.Attempts,
		})
		pipe.PExpireAt(ctx, key, code.ExpiresAt.Add(redisCodeGrace))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return nil
}

func (r *redisCodeRepository) Delete(ctx context.Context, email string) error {
	n, err := r.client.Del(ctx, r.key(email)).Result()
	if err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	if n == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *redisCodeRepository) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrementAttemptsScript.Run(ctx, r.client, []string{r.key(email)}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis unavailable: %w", err)
	}
	if n < 0 {
		return 0, ErrCodeNotFound
	}
	return n, nil
}

// DeleteExpired is a no-op: redis expires the keys itself.
func (r *redisCodeRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
