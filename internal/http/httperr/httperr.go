// Package httperr translates failures into the application error taxonomy and renders the
// JSON error envelope. Handlers and middlewares report failures with Abort; the error
// middleware renders the last one.
package httperr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/geocoder89/accounts/internal/actorctx"
	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/credential"
	"github.com/geocoder89/accounts/internal/resource"
)

const (
	MsgMasked       = "Something went very wrong!"
	MsgInvalidInput = "Invalid input data"
	MsgInvalidType  = "Invalid type, please provide a valid type"
	MsgBodyTooLarge = "Request body is too large"
)

var tokenErrors = []error{
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenExpired,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenInvalidClaims,
	auth.ErrMissingSubject,
}

// Abort records err on the context and stops the handler chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Translate maps err onto an *apperr.Error. Store and token failures become their
// operational kinds; anything unrecognised is internal.
func Translate(err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}

	var (
		dup      *resource.DuplicateKeyError
		cast     *resource.CastError
		invalid  resource.ValidationErrors
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &dup):
		return duplicate(dup)
	case errors.As(err, &cast):
		if cast.Field == "" {
			return apperr.Validation(MsgInvalidInput, nil)
		}
		return apperr.Validation(MsgInvalidInput, map[string]any{cast.Field: MsgInvalidType})
	case errors.As(err, &invalid):
		fields := make(map[string]any, len(invalid))
		for k, v := range invalid {
			fields[k] = v
		}
		return apperr.Validation(invalid.Error(), fields)
	case errors.As(err, &tooLarge):
		return apperr.TooLarge(MsgBodyTooLarge)
	case isTokenError(err):
		return credential.TranslateTokenError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Internal("operation timed out", err)
	}

	return apperr.Internal("unexpected error", err)
}

func isTokenError(err error) bool {
	for _, target := range tokenErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func duplicate(dup *resource.DuplicateKeyError) *apperr.Error {
	fields := make(map[string]any, len(dup.Keys))
	parts := make([]string, 0, len(dup.Keys))

	for _, k := range dup.Keys {
		msg := fmt.Sprintf("Duplicate value for field '%s' with value '%v'", k.Field, k.Value)
		fields[k.Field] = msg
		parts = append(parts, k.Field+": "+msg)
	}

	return apperr.Conflict("Duplicate field value error: "+strings.Join(parts, ", "), fields)
}

// Body builds the error envelope. Outside production internal errors keep their message
// and carry the cause and stack; in production they are masked.
func Body(e *apperr.Error, requestID string, production bool) (int, gin.H) {
	status := e.Status
	body := gin.H{"status": e.StatusText(), "message": e.Message}

	if production && !e.Operational() {
		status = http.StatusInternalServerError
		body = gin.H{"status": "error", "message": MsgMasked}
	} else if len(e.Fields) > 0 {
		body["errors"] = e.Fields
	}

	if !production {
		if cause := errors.Unwrap(e); cause != nil {
			body["error"] = cause.Error()
		}
		if stack := e.Stack(); stack != "" {
			body["stack"] = stack
		}
	}

	if requestID != "" {
		body["requestId"] = requestID
	}
	return status, body
}

// Render writes the envelope for err unless a response is already on the wire.
func Render(c *gin.Context, err error, production bool) {
	e := Translate(err)
	ctx := c.Request.Context()

	if !e.Operational() || e.Status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(ctx, "request_failed",
			"kind", string(e.Kind),
			"status", e.Status,
			"err", e.Error(),
		)
	}

	if c.Writer.Written() {
		return
	}

	requestID, _ := actorctx.RequestIDFrom(ctx)
	status, body := Body(e, requestID, production)
	c.AbortWithStatusJSON(status, body)
}
