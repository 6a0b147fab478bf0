package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/http/httperr"
)

const MsgRequireJSON = "Content-Type must be application/json"

// RequireJSON refuses write requests that carry a non-JSON body. Empty bodies pass.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}
			ct := c.GetHeader("Content-Type")
			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				httperr.Abort(c, apperr.UnsupportedMediaType(MsgRequireJSON))
				return
			}
		}
		c.Next()
	}
}
