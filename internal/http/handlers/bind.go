package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/http/httperr"
	"github.com/geocoder89/accounts/internal/resource"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message,omitempty"`
}

const MsgInvalidBody = "Invalid request body"

// BindJSON decodes the body into out. An empty body leaves out unchanged.
// On failure the error is recorded and false returned.
func BindJSON(ctx *gin.Context, out any) bool {
	if err := ctx.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		httperr.Abort(ctx, bindError(err))
		return false
	}
	return true
}

// BindDocument decodes a JSON object body. An empty body is an empty document.
func BindDocument(ctx *gin.Context) (resource.Document, bool) {
	doc := resource.Document{}
	if ctx.Request.Body == nil || ctx.Request.ContentLength == 0 {
		return doc, true
	}

	err := json.NewDecoder(ctx.Request.Body).Decode(&doc)
	if err != nil && !errors.Is(err, io.EOF) {
		httperr.Abort(ctx, bindError(err))
		return nil, false
	}
	if doc == nil {
		doc = resource.Document{}
	}
	return doc, true
}

// bindError keeps an oversized body as is for the error middleware and reports
// anything else as a malformed body.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return apperr.Validation(MsgInvalidBody, gin.H{"json": "invalid_json_syntax"})
	case errors.As(err, &typeErr):
		details := gin.H{"json": "invalid_json_type"}
		// Field is the dotted JSON path, empty when the whole body has the wrong shape
		if typeErr.Field != "" {
			details["field"] = typeErr.Field
			details["fields"] = []FieldError{{
				Field:   typeErr.Field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}}
		}
		return apperr.Validation(MsgInvalidBody, details)
	}
	return apperr.Validation(MsgInvalidBody, gin.H{"json": "invalid_json"})
}
