package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/supreset/identity/internal/api"
	"github.com/supreset/identity/internal/config"
)

type contextKey string

const claimsContextKey contextKey = "auth.claims"

// Guard authenticates bearer tokens on behalf of the HTTP and gRPC layers.
type Guard struct {
	tokens          *TokenService
	denylist        Denylist
	metrics         *Metrics
	log             *zap.Logger
	enforceRotation bool
}

func NewGuard(cfg *config.AuthConfig, tokens *TokenService, denylist Denylist, metrics *Metrics, log *zap.Logger) *Guard {
	if denylist == nil {
		denylist = noopDenylist{}
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &Guard{
		tokens:          tokens,
		denylist:        denylist,
		metrics:         metrics,
		log:             log,
		enforceRotation: cfg.EnforceRotation,
	}
}

// Authenticate resolves an Authorization header value into claims. A missing
// token and an invalid one fail with different messages; expired, tampered
// and revoked tokens are indistinguishable to the caller.
func (g *Guard) Authenticate(ctx context.Context, header string) (*Claims, error) {
	token := ExtractToken(header)
	if token == "" {
		g.metrics.rejected(ctx, "missing")
		return nil, authenticationError(MsgAuthRequired, nil)
	}

	claims, err := g.tokens.Validate(token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, ErrTokenExpired) {
			reason = "expired"
		}
		g.metrics.rejected(ctx, reason)
		return nil, authenticationError(MsgInvalidToken, err)
	}

	revoked, err := g.denylist.IsRevoked(ctx, claims.RegisteredClaims.ID)
	if err != nil {
		g.log.Error("failed to check token denylist", zap.Error(err))
		return nil, err
	}
	if revoked {
		g.metrics.rejected(ctx, "revoked")
		return nil, authenticationError(MsgInvalidToken, ErrTokenRevoked)
	}

	return claims, nil
}

// Optional is Authenticate that never fails: anything but a valid token
// yields nil.
func (g *Guard) Optional(ctx context.Context, header string) *Claims {
	if ExtractToken(header) == "" {
		return nil
	}
	claims, err := g.Authenticate(ctx, header)
	if err != nil {
		return nil
	}
	return claims
}

// CheckRotation rejects sessions that must change their password on every
// route outside api.RotationAllowList.
func (g *Guard) CheckRotation(claims *Claims, route string) error {
	if !g.enforceRotation || claims == nil || !claims.MustChangePassword {
		return nil
	}
	if api.RotationAllowList[route] {
		return nil
	}
	return authorizationError(CodePasswordChangeNeeded, MsgPasswordChangeNeeded)
}

func RequireAdmin(claims *Claims) error {
	if claims == nil || claims.Role != RoleAdmin {
		return authorizationError("", MsgAdminRequired)
	}
	return nil
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}
