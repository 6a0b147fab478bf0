package middlewares

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/http/httperr"
)

// ErrorHandler renders the last error a handler or middleware recorded.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if last := c.Errors.Last(); last != nil {
			httperr.Render(c, last.Err, production)
		}
	}
}

// Recovery turns a panic into an internal error rendered through the same envelope.
func Recovery(production bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		httperr.Render(c, apperr.Internal("panic recovered", fmt.Errorf("%v", recovered)), production)
	})
}

// NoRoute answers every unmatched path.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		httperr.Abort(c, apperr.NotFound(fmt.Sprintf("Can't find %s %s on this server!", c.Request.Method, c.Request.URL.RequestURI())))
	}
}
