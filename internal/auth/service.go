package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/supreset/identity/internal/config"
)

const (
	minPasswordLength   = 6
	provisionRetryLimit = 3
)

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	accountIDPattern = regexp.MustCompile(`^\d+$`)
)

// CodeSender delivers a plaintext verification code to an email address.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// ActivityCounter reads per-user aggregates owned by other parts of the
// platform.
type ActivityCounter interface {
	Counts(ctx context.Context, userID int64) (ActivityCounts, error)
}

type Dependencies struct {
	Repository Repository
	Hasher     Hasher
	Tokens     *TokenService
	Codes      *CodeStore
	Sender     CodeSender
	Counter    ActivityCounter
	Denylist   Denylist
	Metrics    *Metrics
}

// Service resolves login requests into identities and tokens, and owns the
// password and account provisioning operations around them.
type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	hasher     Hasher
	tokens     *TokenService
	codes      *CodeStore
	sender     CodeSender
	counter    ActivityCounter
	denylist   Denylist
	metrics    *Metrics

	dummyOnce sync.Once
	dummyHash string
}

func NewService(config *config.AuthConfig, log *zap.Logger, deps Dependencies) *Service {
	s := &Service{
		config:     config,
		log:        log,
		repository: deps.Repository,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		codes:      deps.Codes,
		sender:     deps.Sender,
		counter:    deps.Counter,
		denylist:   deps.Denylist,
		metrics:    deps.Metrics,
	}
	if s.counter == nil {
		s.counter = noopCounter{}
	}
	if s.denylist == nil {
		s.denylist = noopDenylist{}
	}
	if s.metrics == nil {
		s.metrics = NewNoopMetrics()
	}
	return s
}

// Credentials is either PasswordCredentials or EmailCodeCredentials.
type Credentials interface {
	credentials()
}

type PasswordCredentials struct {
	Identifier string
	Password   string
}

type EmailCodeCredentials struct {
	Email string
	Code  string
}

func (PasswordCredentials) credentials()  {}
func (EmailCodeCredentials) credentials() {}

// LoginRequest is the wire shape of a login body.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	Code       string `json:"code"`
}

// Credentials selects the email-code variant only when both email and code
// are present.
func (r LoginRequest) Credentials() Credentials {
	if r.Email != "" && r.Code != "" {
		return EmailCodeCredentials{Email: r.Email, Code: r.Code}
	}
	return PasswordCredentials{Identifier: r.Identifier, Password: r.Password}
}

type LoginResult struct {
	User               *User  `json:"user"`
	Token              string `json:"token"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	switch c := creds.(type) {
	case EmailCodeCredentials:
		res, err := s.loginWithCode(ctx, c)
		s.metrics.login(ctx, "code", err)
		return res, err
	case PasswordCredentials:
		res, err := s.loginWithPassword(ctx, c)
		s.metrics.login(ctx, "password", err)
		return res, err
	default:
		return nil, validationError(MsgCredentialsRequired)
	}
}

func (s *Service) loginWithCode(ctx context.Context, c EmailCodeCredentials) (*LoginResult, error) {
	email := normalizeEmail(c.Email)
	if !emailPattern.MatchString(email) {
		return nil, validationError(MsgInvalidEmail)
	}
	code := strings.TrimSpace(c.Code)
	if code == "" {
		return nil, validationError(MsgCodeRequired)
	}

	result, err := s.codes.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	s.metrics.codeVerified(ctx, result)
	switch result {
	case CodeVerified:
	case CodeMismatch:
		return nil, validationError(MsgCodeMismatch)
	case CodeLocked:
		return nil, validationError(MsgCodeLocked)
	default:
		return nil, validationError(MsgCodeNotFound)
	}

	user, err := s.userForVerifiedEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return s.complete(user, user.MustChangePassword)
}

// userForVerifiedEmail returns the account owning email, creating one when
// none exists yet.
func (s *Service) userForVerifiedEmail(ctx context.Context, email string) (*User, error) {
	for attempt := 0; attempt < provisionRetryLimit; attempt++ {
		user, err := s.repository.GetUserByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}

		deactivated, err := s.repository.EmailDeactivated(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if deactivated {
			return nil, authorizationError(CodeAccountDeactivated, MsgAccountDeactivated)
		}

		user, err = s.provisionFromEmail(ctx, email)
		if err == nil {
			s.log.Info("provisioned account from email code login",
				zap.Int64("user_id", user.ID),
				zap.String("name", user.Name))
			return user, nil
		}
		if !errors.Is(err, ErrUserExists) {
			return nil, err
		}
		// lost a race on the email or the name; look again
	}
	return nil, fmt.Errorf("failed to provision account for %s: %w", email, ErrUserExists)
}

func (s *Service) provisionFromEmail(ctx context.Context, email string) (*User, error) {
	name, err := uniqueName(ctx, s.repository, deriveBaseName(email))
	if err != nil {
		return nil, fmt.Errorf("failed to choose a name: %w", err)
	}

	throwaway, err := randomSecret()
	if err != nil {
		return nil, err
	}
	passwordHash, err := s.hasher.Hash(throwaway)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:              &email,
		Name:               name,
		PasswordHash:       passwordHash,
		Role:               RoleUser,
		MustChangePassword: false,
	}
	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) loginWithPassword(ctx context.Context, c PasswordCredentials) (*LoginResult, error) {
	identifier := strings.TrimSpace(c.Identifier)
	if identifier == "" || c.Password == "" {
		return nil, validationError(MsgCredentialsRequired)
	}

	var (
		user *User
		err  error
	)
	switch {
	case emailPattern.MatchString(identifier):
		user, err = s.repository.GetUserByEmail(ctx, normalizeEmail(identifier))
	case accountIDPattern.MatchString(identifier):
		id, parseErr := strconv.ParseInt(identifier, 10, 64)
		if parseErr != nil {
			err = ErrUserNotFound
			break
		}
		user, err = s.repository.GetUserByID(ctx, id)
	default:
		return nil, validationError(MsgBadAccountFormat)
	}

	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing time as a real comparison
			s.hasher.Verify(c.Password, s.dummy())
			return nil, authenticationError(MsgBadCredentials, nil)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(c.Password, user.PasswordHash) {
		s.log.Warn("password login rejected", zap.Int64("user_id", user.ID))
		return nil, authenticationError(MsgBadCredentials, nil)
	}

	mustChange := s.isDefaultPassword(c.Password) || user.MustChangePassword
	return s.complete(user, mustChange)
}

func (s *Service) complete(user *User, mustChange bool) (*LoginResult, error) {
	token, _, err := s.tokens.Issue(user.Identity(), mustChange)
	if err != nil {
		return nil, err
	}

	view := *user
	view.MustChangePassword = mustChange
	return &LoginResult{
		User:               &view,
		Token:              token,
		MustChangePassword: mustChange,
	}, nil
}

func (s *Service) isDefaultPassword(password string) bool {
	def := s.config.DefaultPassword
	if def == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(def)) == 1
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			s.log.Error("failed to prepare dummy hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// SendCode issues a login code for email and delivers it. A failed delivery
// discards the code so the cooldown does not block a retry.
func (s *Service) SendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return validationError(MsgInvalidEmail)
	}

	code, err := s.codes.Issue(ctx, email)
	if err != nil {
		s.metrics.codeSent(ctx, err)
		return err
	}

	if err := s.sender.SendCode(ctx, email, code, s.codes.TTL()); err != nil {
		if discardErr := s.codes.Discard(ctx, email); discardErr != nil {
			s.log.Error("failed to discard undelivered code", zap.Error(discardErr))
		}
		err = fmt.Errorf("failed to send verification code: %w", err)
		s.metrics.codeSent(ctx, err)
		return err
	}

	s.metrics.codeSent(ctx, nil)
	return nil
}

// ChangePassword rotates the password of userID and clears the forced
// rotation flag. It returns the updated user and a fresh token.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) (*User, string, error) {
	if current == "" || next == "" {
		return nil, "", validationError(MsgPasswordsRequired)
	}
	if utf8.RuneCountInString(next) < minPasswordLength {
		return nil, "", validationError(MsgPasswordTooShort)
	}

	user, err := s.repository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", notFoundError(MsgUserNotFound)
		}
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		return nil, "", authenticationError(MsgCurrentPasswordWrong, nil)
	}
	if s.hasher.Verify(next, user.PasswordHash) {
		return nil, "", validationError(MsgPasswordUnchanged)
	}
	if s.isDefaultPassword(next) {
		return nil, "", validationError(MsgPasswordIsDefault)
	}

	passwordHash, err := s.hasher.Hash(next)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	updated, err := s.repository.UpdatePassword(ctx, userID, passwordHash)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", notFoundError(MsgUserNotFound)
		}
		return nil, "", fmt.Errorf("failed to update password: %w", err)
	}

	token, _, err := s.tokens.Issue(updated.Identity(), false)
	if err != nil {
		return nil, "", err
	}

	s.log.Info("password changed", zap.Int64("user_id", userID))
	return updated, token, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.repository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, notFoundError(MsgUserNotFound)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	counts, err := s.counter.Counts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	return &Profile{User: user, Count: counts}, nil
}

// Logout revokes the token behind claims when revocation is enabled.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.denylist.Revoke(ctx, claims.RegisteredClaims.ID, claims.ExpiresAt.Time)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type noopCounter struct{}

func (noopCounter) Counts(context.Context, int64) (ActivityCounts, error) {
	return ActivityCounts{}, nil
}
