package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/supreset/identity/internal/config"
)

const (
	testSecret          = "test-signing-secret-with-enough-bytes-0123456789"
	testDefaultPassword = "Welcome-2024"
)

func newTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:           testSecret,
		Issuer:              "supreset-test",
		TokenExpiration:     7 * 24 * time.Hour,
		BcryptCost:          bcrypt.MinCost,
		DefaultPassword:     testDefaultPassword,
		CodeTTLSeconds:      300,
		CodeCooldownSeconds: 60,
		CodeMaxAttempts:     5,
		CodeStore:           "database",
		EnforceRotation:     true,
	}
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentCode struct {
	email string
	code  string
}

// recordingSender keeps delivered codes instead of mailing them.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (s *recordingSender) SendCode(_ context.Context, email, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCode{email: email, code: code})
	return nil
}

func (s *recordingSender) last(t *testing.T) sentCode {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no code was sent")
	return s.sent[len(s.sent)-1]
}

type fixture struct {
	cfg     *config.AuthConfig
	svc     *Service
	users   *memoryRepository
	codes   *memoryCodeRepository
	store   *CodeStore
	tokens  *TokenService
	hasher  Hasher
	sender  *recordingSender
	clock   *fakeClock
	guard   *Guard
	metrics *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := newTestConfig()
	log := newTestLogger(t)
	clock := newFakeClock()
	hasher := NewBcryptHasher(cfg.BcryptCost)

	users := newMemoryRepository()
	codes := newMemoryCodeRepository()

	tokens := NewTokenService(cfg)
	tokens.now = clock.Now

	store := NewCodeStore(cfg, codes, hasher, log)
	store.now = clock.Now

	sender := &recordingSender{}
	metrics := NewNoopMetrics()

	svc := NewService(cfg, log, Dependencies{
		Repository: users,
		Hasher:     hasher,
		Tokens:     tokens,
		Codes:      store,
		Sender:     sender,
		Metrics:    metrics,
	})

	return &fixture{
		cfg:     cfg,
		svc:     svc,
		users:   users,
		codes:   codes,
		store:   store,
		tokens:  tokens,
		hasher:  hasher,
		sender:  sender,
		clock:   clock,
		guard:   NewGuard(cfg, tokens, nil, metrics, log),
		metrics: metrics,
	}
}

// addUser stores a user with the given plaintext password.
func (f *fixture) addUser(t *testing.T, name, email, password string, role Role, mustChange bool) *User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	user := &User{
		Name:               name,
		PasswordHash:       hash,
		Role:               role,
		MustChangePassword: mustChange,
	}
	if email != "" {
		user.Email = &email
	}
	require.NoError(t, f.users.CreateUser(context.Background(), user))
	return user
}

func (f *fixture) token(t *testing.T, user *User, mustChange bool) string {
	t.Helper()
	token, _, err := f.tokens.Issue(user.Identity(), mustChange)
	require.NoError(t, err)
	return token
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	e := AsError(err)
	require.Equal(t, kind, e.Kind, "unexpected kind for %v", err)
	return e
}
