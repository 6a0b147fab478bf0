package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/access"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/httperr"
)

// RequireRole lets the request through when the authenticated caller holds one of roles.
func RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := MustUser(c)
		if !ok {
			return
		}

		if err := access.Check(u.Role, roles...); err != nil {
			httperr.Abort(c, err)
			return
		}
		c.Next()
	}
}
