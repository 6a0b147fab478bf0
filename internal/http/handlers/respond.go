package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/resource"
)

// Respond writes an operation outcome. A successful GET is tagged with a weak
// validator over the rendered body and answers 304 when the client already holds it.
func Respond(ctx *gin.Context, out resource.Outcome) {
	if out.Body == nil {
		ctx.Status(out.Status)
		return
	}

	if ctx.Request.Method != http.MethodGet || out.Status != http.StatusOK {
		ctx.JSON(out.Status, out.Body)
		return
	}

	raw, err := json.Marshal(out.Body)
	if err != nil {
		ctx.JSON(out.Status, out.Body)
		return
	}

	tag := weakTag(raw)
	ctx.Header("ETag", tag)
	ctx.Header("Cache-Control", "private, no-cache")

	if clientHolds(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(out.Status, "application/json; charset=utf-8", raw)
}

func weakTag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + base64.RawURLEncoding.EncodeToString(sum[:18]) + `"`
}

// clientHolds applies the weak comparison of If-None-Match.
func clientHolds(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	opaque := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == opaque {
			return true
		}
	}
	return false
}

func success(payload gin.H) gin.H {
	payload["status"] = "success"
	return payload
}
