package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/resource"
)

type bindErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Errors  struct {
		JSON   string                `json:"json"`
		Field  string                `json:"field"`
		Fields []handlers.FieldError `json:"fields"`
	} `json:"errors"`
}

type profileRequest struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Address struct {
		Zip int `json:"zip"`
	} `json:"address"`
}

func newBindRouter(t *testing.T, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.ErrorHandler(false))
	r.POST("/bind", handler)
	return r
}

func bindProfile(got *profileRequest) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !handlers.BindJSON(ctx, got) {
			return
		}
		ctx.Status(http.StatusCreated)
	}
}

func postJSON(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBindError(t *testing.T, w *httptest.ResponseRecorder) bindErrorResponse {
	t.Helper()

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestBindJSON_DecodesBody(t *testing.T) {
	var got profileRequest
	r := newBindRouter(t, bindProfile(&got))

	w := postJSON(r, `{"name":"gopher","age":12,"address":{"zip":100001}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Name != "gopher" || got.Age != 12 || got.Address.Zip != 100001 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestBindJSON_TypeMismatchNamesTheJSONPath(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"top level", `{"name":"gopher","age":"ten"}`, "age"},
		{"nested", `{"name":"gopher","address":{"zip":"x"}}`, "address.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newBindRouter(t, bindProfile(&profileRequest{}))

			w := postJSON(r, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}

			resp := decodeBindError(t, w)
			if resp.Status != "fail" || resp.Message != handlers.MsgInvalidBody {
				t.Fatalf("unexpected envelope: %+v", resp)
			}
			if resp.Errors.JSON != "invalid_json_type" || resp.Errors.Field != tt.field {
				t.Fatalf("got json %q field %q, want invalid_json_type %q", resp.Errors.JSON, resp.Errors.Field, tt.field)
			}
			if len(resp.Errors.Fields) != 1 {
				t.Fatalf("expected one field error, got %+v", resp.Errors.Fields)
			}
			if fe := resp.Errors.Fields[0]; fe.Field != tt.field || fe.Rule != "type" || fe.Message == "" {
				t.Fatalf("unexpected field error: %+v", fe)
			}
		})
	}
}

func TestBindJSON_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", `{"name":}`, "invalid_json_syntax"},
		{"truncated", `{"name":`, "invalid_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newBindRouter(t, bindProfile(&profileRequest{}))

			w := postJSON(r, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			if resp := decodeBindError(t, w); resp.Errors.JSON != tt.want {
				t.Fatalf("got json detail %q, want %q", resp.Errors.JSON, tt.want)
			}
		})
	}
}

func TestBindJSON_EmptyBodyLeavesTargetUnchanged(t *testing.T) {
	got := profileRequest{Name: "stale"}
	r := newBindRouter(t, bindProfile(&got))

	w := postJSON(r, ``)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Name != "stale" {
		t.Fatalf("an empty body must leave the request untouched, got %+v", got)
	}
}

func TestBindDocument(t *testing.T) {
	var got resource.Document
	r := newBindRouter(t, func(ctx *gin.Context) {
		doc, ok := handlers.BindDocument(ctx)
		if !ok {
			return
		}
		got = doc
		ctx.Status(http.StatusNoContent)
	})

	w := postJSON(r, `{"email":"ada@example.com","age":36}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNoContent, w.Body.String())
	}
	if got["email"] != "ada@example.com" || got["age"] != float64(36) {
		t.Fatalf("unexpected document: %v", got)
	}

	w = postJSON(r, ``)
	if w.Code != http.StatusNoContent || len(got) != 0 {
		t.Fatalf("an empty body must bind an empty document, got %d %v", w.Code, got)
	}

	w = postJSON(r, `[1,2]`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}
