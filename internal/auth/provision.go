package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	generatedPasswordMinLength = 8
	generatedPasswordMaxLength = 10

	lowerChars = "abcdefghijkmnopqrstuvwxyz"
	upperChars = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars = "23456789"
)

// NewUserRequest is the body of an admin provisioning request.
type NewUserRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Avatar   *string `json:"avatar"`
	Bio      *string `json:"bio"`
	Role     Role    `json:"role"`
}

// CreateUser provisions an account on behalf of an administrator. The account
// must rotate its password on first login.
func (s *Service) CreateUser(ctx context.Context, req NewUserRequest) (*User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)

	switch {
	case name == "":
		return nil, validationError(MsgNameRequired)
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, validationError(MsgNameTooLong)
	case email == "" || !emailPattern.MatchString(email):
		return nil, validationError(MsgInvalidEmail)
	}

	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, validationError(MsgInvalidRole)
	}

	password := req.Password
	if password == "" {
		password = s.config.DefaultPassword
	}
	if password == "" {
		return nil, validationError(MsgPasswordRequired)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, validationError("password must be at least 6 characters")
	}

	if _, err := s.repository.GetUserByEmail(ctx, email); err == nil {
		return nil, validationError(MsgEmailTaken)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	taken, err := s.repository.NameTaken(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check name: %w", err)
	}
	if taken {
		return nil, validationError(MsgNameTaken)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:              &email,
		Name:               name,
		PasswordHash:       passwordHash,
		Role:               role,
		MustChangePassword: true,
		Avatar:             req.Avatar,
		Bio:                req.Bio,
	}
	if err := s.repository.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, validationError(MsgEmailTaken)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user provisioned",
		zap.Int64("user_id", user.ID),
		zap.String("name", user.Name),
		zap.String("role", string(user.Role)))

	return user, nil
}

// ProvisionedAccount pairs a batch-created user with its initial password.
type ProvisionedAccount struct {
	User     *User
	Password string
}

// ProvisionAccounts creates count accounts named <prefix>001, <prefix>002 ...
// with emails <lower prefix>001@domain and random initial passwords. Existing
// names are skipped.
func (s *Service) ProvisionAccounts(ctx context.Context, prefix, domain string, start, count int) ([]ProvisionedAccount, error) {
	if count <= 0 {
		return nil, nil
	}
	if prefix == "" || domain == "" {
		return nil, validationError("prefix and domain are required")
	}

	accounts := make([]ProvisionedAccount, 0, count)
	for i := start; i < start+count; i++ {
		name := fmt.Sprintf("%s%03d", prefix, i)
		email := fmt.Sprintf("%s%03d@%s", strings.ToLower(prefix), i, domain)

		password, err := generatePassword()
		if err != nil {
			return accounts, err
		}

		user, err := s.CreateUser(ctx, NewUserRequest{
			Name:     name,
			Email:    email,
			Password: password,
			Role:     RoleUser,
		})
		if err != nil {
			if e := AsError(err); e.Kind == KindValidation {
				s.log.Warn("skipping account", zap.String("name", name), zap.String("reason", e.Message))
				continue
			}
			return accounts, err
		}

		accounts = append(accounts, ProvisionedAccount{User: user, Password: password})
	}

	return accounts, nil
}

// generatePassword returns 8 to 10 characters with at least one lower-case
// letter, one upper-case letter and one digit.
func generatePassword() (string, error) {
	extra, err := randomIndex(generatedPasswordMaxLength - generatedPasswordMinLength + 1)
	if err != nil {
		return "", err
	}
	length := generatedPasswordMinLength + extra

	all := lowerChars + upperChars + digitChars
	out := make([]byte, 0, length)
	for _, set := range []string{lowerChars, upperChars, digitChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate password: %w", err)
	}
	return int(v.Int64()), nil
}
