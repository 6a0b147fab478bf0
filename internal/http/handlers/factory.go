package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/http/httperr"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

// RequestOption adjusts the operation input before it runs. A non-nil error aborts.
type RequestOption func(ctx *gin.Context, req *resource.Request) error

// Self targets the authenticated caller instead of the :id path parameter.
func Self() RequestOption {
	return func(ctx *gin.Context, req *resource.Request) error {
		if u, ok := middlewares.UserFromContext(ctx); ok {
			req.ID = u.ID
		}
		return nil
	}
}

// Guard runs check against the request body.
func Guard(check func(resource.Document) error) RequestOption {
	return func(_ *gin.Context, req *resource.Request) error {
		return check(req.Body)
	}
}

// Handle adapts a resource operation to gin: it gathers the path id, query params, body,
// origin and caller into a Request and writes the Outcome.
func Handle(op resource.Operation, opts ...RequestOption) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req := resource.Request{
			ID:     ctx.Param("id"),
			Params: query.ParseParams(ctx.Request.URL.Query()),
			Origin: origin(ctx),
		}
		if u, ok := middlewares.UserFromContext(ctx); ok {
			req.Actor = u.ID
		}

		switch ctx.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			body, ok := BindDocument(ctx)
			if !ok {
				return
			}
			req.Body = body
		}

		for _, opt := range opts {
			if err := opt(ctx, &req); err != nil {
				httperr.Abort(ctx, err)
				return
			}
		}

		out, err := op(ctx.Request.Context(), req)
		if err != nil {
			httperr.Abort(ctx, err)
			return
		}

		Respond(ctx, out)
	}
}

// origin is scheme://host as the client addressed it.
func origin(ctx *gin.Context) string {
	scheme := "http"
	if secureRequest(ctx) {
		scheme = "https"
	}
	return scheme + "://" + ctx.Request.Host
}

func secureRequest(ctx *gin.Context) bool {
	return ctx.Request.TLS != nil || ctx.GetHeader("X-Forwarded-Proto") == "https"
}
