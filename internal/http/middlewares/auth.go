package middlewares

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/actorctx"
	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/credential"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/httperr"
)

// CookieName is the session cookie set on login.
const CookieName = "jwt"

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (user.User, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth resolves the caller from a bearer token, falling back to the session cookie.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw, _ = c.Cookie(CookieName)
		}

		u, err := m.verifier.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			httperr.Abort(c, err)
			return
		}

		c.Set(CtxUser, u)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))

		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserFromContext returns the identity RequireAuth resolved.
func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

// MustUser is UserFromContext for routes behind RequireAuth. It aborts with the
// missing-token error when no identity is present.
func MustUser(c *gin.Context) (user.User, bool) {
	u, ok := UserFromContext(c)
	if !ok {
		httperr.Abort(c, apperr.Auth(credential.MsgMissingToken))
	}
	return u, ok
}
