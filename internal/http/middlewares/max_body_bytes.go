package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/http/httperr"
)

// MaxBodyBytes caps the request body. A declared length over the cap is refused before
// reading; otherwise reads past it fail with *http.MaxBytesError.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if max <= 0 {
			ctx.Next()
			return
		}
		if ctx.Request.ContentLength > max {
			httperr.Abort(ctx, apperr.TooLarge(httperr.MsgBodyTooLarge))
			return
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)

		ctx.Next()
	}
}
