package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey is the gin context key holding the caller's *Claims.
const ClaimsKey = "auth.claims"

type Middleware struct {
	guard    *Guard
	log      *zap.Logger
	exposure errorExposure
}

func NewMiddleware(guard *Guard, log *zap.Logger, exposeInternal bool) *Middleware {
	return &Middleware{
		guard:    guard,
		log:      log,
		exposure: errorExposure(exposeInternal),
	}
}

// RequireAuth rejects requests without a valid token, and sessions that must
// rotate their password on routes that do not allow it.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.guard.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			m.log.Debug("request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			m.exposure.abort(c, m.log, "authentication", err)
			return
		}

		if err := m.guard.CheckRotation(claims, c.FullPath()); err != nil {
			m.guard.metrics.rejected(c.Request.Context(), "rotation")
			m.exposure.abort(c, m.log, "authentication", err)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously. A session that must rotate its
// password outside the allow-list is treated as anonymous.
func (m *Middleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := m.guard.Optional(c.Request.Context(), c.GetHeader("Authorization"))
		if claims != nil && m.guard.CheckRotation(claims, c.FullPath()) != nil {
			m.guard.metrics.rejected(c.Request.Context(), "rotation")
			claims = nil
		}
		if claims != nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		if err := RequireAdmin(claims); err != nil {
			m.exposure.abort(c, m.log, "authentication", err)
			return
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(ClaimsKey, claims)
	c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
}

// CurrentClaims returns the claims attached by RequireAuth or OptionalAuth.
func CurrentClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}
