package auth

import (
	"context"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestService_CreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.CreateUser(ctx, NewUserRequest{
		Name:   "Olivia",
		Email:  " Olivia@Example.com ",
		Bio:    strPtr("sound designer"),
		Avatar: strPtr("/uploads/olivia.png"),
	})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "olivia@example.com", user.EmailAddress())
	assert.Equal(t, RoleUser, user.Role)
	assert.True(t, user.MustChangePassword)
	assert.Equal(t, "sound designer", *user.Bio)
	assert.True(t, f.hasher.Verify(testDefaultPassword, user.PasswordHash), "empty password falls back to the default")

	// the default password trips rotation on login as well
	res, err := f.svc.Login(ctx, PasswordCredentials{Identifier: "olivia@example.com", Password: testDefaultPassword})
	require.NoError(t, err)
	assert.True(t, res.MustChangePassword)
}

func TestService_CreateUserExplicitPasswordAndRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.CreateUser(ctx, NewUserRequest{
		Name:     "root",
		Email:    "root@example.com",
		Password: "r00t-pass",
		Role:     RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, user.Role)
	assert.True(t, f.hasher.Verify("r00t-pass", user.PasswordHash))
	assert.True(t, user.MustChangePassword)
}

func TestService_CreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "taken", "taken@example.com", "whatever", RoleUser, false)

	tests := []struct {
		name    string
		req     NewUserRequest
		wantMsg string
	}{
		{name: "missing name", req: NewUserRequest{Email: "a@example.com"}, wantMsg: MsgNameRequired},
		{name: "long name", req: NewUserRequest{Name: strings.Repeat("n", 51), Email: "a@example.com"}, wantMsg: MsgNameTooLong},
		{name: "missing email", req: NewUserRequest{Name: "a"}, wantMsg: MsgInvalidEmail},
		{name: "bad email", req: NewUserRequest{Name: "a", Email: "a@b"}, wantMsg: MsgInvalidEmail},
		{name: "bad role", req: NewUserRequest{Name: "a", Email: "a@example.com", Role: "root"}, wantMsg: MsgInvalidRole},
		{name: "short password", req: NewUserRequest{Name: "a", Email: "a@example.com", Password: "123"}, wantMsg: "password must be at least 6 characters"},
		{name: "duplicate email", req: NewUserRequest{Name: "fresh", Email: "TAKEN@example.com"}, wantMsg: MsgEmailTaken},
		{name: "duplicate name", req: NewUserRequest{Name: "taken", Email: "fresh@example.com"}, wantMsg: MsgNameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateUser(ctx, tt.req)
			e := requireKind(t, err, KindValidation)
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestService_CreateUserWithoutDefaultPassword(t *testing.T) {
	f := newFixture(t)
	f.cfg.DefaultPassword = ""

	_, err := f.svc.CreateUser(context.Background(), NewUserRequest{Name: "p", Email: "p@example.com"})
	e := requireKind(t, err, KindValidation)
	assert.Equal(t, MsgPasswordRequired, e.Message)
}

func TestService_ProvisionAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "Beta002", "", "whatever", RoleUser, false)

	accounts, err := f.svc.ProvisionAccounts(ctx, "Beta", "beta.example.com", 1, 3)
	require.NoError(t, err)
	require.Len(t, accounts, 2, "existing Beta002 is skipped")

	assert.Equal(t, "Beta001", accounts[0].User.Name)
	assert.Equal(t, "beta001@beta.example.com", accounts[0].User.EmailAddress())
	assert.Equal(t, "Beta003", accounts[1].User.Name)

	for _, a := range accounts {
		assert.True(t, a.User.MustChangePassword)
		assert.True(t, f.hasher.Verify(a.Password, a.User.PasswordHash))

		res, err := f.svc.Login(ctx, PasswordCredentials{Identifier: a.User.EmailAddress(), Password: a.Password})
		require.NoError(t, err)
		assert.True(t, res.MustChangePassword)
	}
}

func TestService_ProvisionAccountsArguments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accounts, err := f.svc.ProvisionAccounts(ctx, "Beta", "example.com", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = f.svc.ProvisionAccounts(ctx, "", "example.com", 1, 2)
	requireKind(t, err, KindValidation)
}

func TestGeneratePassword(t *testing.T) {
	for i := 0; i < 200; i++ {
		pw, err := generatePassword()
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(pw), generatedPasswordMinLength)
		assert.LessOrEqual(t, len(pw), generatedPasswordMaxLength)
		assert.True(t, strings.IndexFunc(pw, unicode.IsLower) >= 0, pw)
		assert.True(t, strings.IndexFunc(pw, unicode.IsUpper) >= 0, pw)
		assert.True(t, strings.IndexFunc(pw, unicode.IsDigit) >= 0, pw)
	}
}
