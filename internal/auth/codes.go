package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/supreset/identity/internal/config"
)

type CodeResult int

const (
	CodeVerified CodeResult = iota
	CodeNotFound
	CodeExpired
	CodeMismatch
	// CodeLocked means the attempt cap was reached and the code is gone.
	CodeLocked
)

func (r CodeResult) String() string {
	switch r {
	case CodeVerified:
		return "verified"
	case CodeNotFound:
		return "not_found"
	case CodeExpired:
		return "expired"
	case CodeMismatch:
		return "mismatch"
	case CodeLocked:
		return "locked"
	default:
		return "unknown"
	}
}

var codeRange = big.NewInt(900000)

// CodeStore implements the one-time email code lifecycle on top of a
// CodeRepository. Only code hashes are persisted.
type CodeStore struct {
	repo        CodeRepository
	hasher      Hasher
	log         *zap.Logger
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewCodeStore(cfg *config.AuthConfig, repo CodeRepository, hasher Hasher, log *zap.Logger) *CodeStore {
	return &CodeStore{
		repo:        repo,
		hasher:      hasher,
		log:         log,
		ttl:         cfg.CodeTTL(),
		cooldown:    cfg.CodeCooldown(),
		maxAttempts: cfg.CodeMaxAttempts,
		now:         time.Now,
	}
}

func (s *CodeStore) TTL() time.Duration {
	return s.ttl
}

// Issue creates a fresh code for email, replacing any previous one, and
// returns the plaintext for delivery. A live record sent less than the
// cooldown ago rejects the request with a rate-limit error.
func (s *CodeStore) Issue(ctx context.Context, email string) (string, error) {
	now := s.now()

	existing, err := s.repo.Get(ctx, email)
	switch {
	case err == nil:
		if !existing.Expired(now) {
			if elapsed := now.Sub(existing.LastSentAt); elapsed < s.cooldown {
				return "", rateLimitError(s.cooldown - elapsed)
			}
		}
	case errors.Is(err, ErrCodeNotFound):
	default:
		return "", fmt.Errorf("failed to load verification code: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}

	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash verification code: %w", err)
	}

	record := &VerificationCode{
		Email:      email,
		CodeHash:   codeHash,
		ExpiresAt:  now.Add(s.ttl),
		LastSentAt: now,
		Attempts:   0,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	return code, nil
}

// Verify consumes the code for email when candidate matches.
func (s *CodeStore) Verify(ctx context.Context, email, candidate string) (CodeResult, error) {
	record, err := s.repo.Get(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return CodeNotFound, nil
		}
		return CodeNotFound, fmt.Errorf("failed to load verification code: %w", err)
	}

	if record.Expired(s.now()) {
		if err := s.discard(ctx, email); err != nil {
			return CodeExpired, err
		}
		return CodeExpired, nil
	}

	if !s.hasher.Verify(candidate, record.CodeHash) {
		attempts, err := s.repo.IncrementAttempts(ctx, email)
		if err != nil {
			if errors.Is(err, ErrCodeNotFound) {
				return CodeNotFound, nil
			}
			return CodeMismatch, fmt.Errorf("failed to record verification attempt: %w", err)
		}
		if attempts >= s.maxAttempts {
			s.log.Warn("verification code locked after failed attempts",
				zap.String("email", email),
				zap.Int("attempts", attempts))
			if err := s.discard(ctx, email); err != nil {
				return CodeLocked, err
			}
			return CodeLocked, nil
		}
		return CodeMismatch, nil
	}

	if err := s.repo.Delete(ctx, email); err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			// consumed by a concurrent verify
			return CodeNotFound, nil
		}
		return CodeNotFound, fmt.Errorf("failed to consume verification code: %w", err)
	}

	return CodeVerified, nil
}

// Discard drops the record for email, if any.
func (s *CodeStore) Discard(ctx context.Context, email string) error {
	return s.discard(ctx, email)
}

func (s *CodeStore) discard(ctx context.Context, email string) error {
	if err := s.repo.Delete(ctx, email); err != nil && !errors.Is(err, ErrCodeNotFound) {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
