package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/credential"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/resource"
)

type fakeCredentials struct {
	loginFn  func(email, password string) (credential.Session, error)
	forgotFn func(email, siteURL, origin string) error
	resetFn  func(token, password, confirm string) (credential.Session, error)
}

func (f *fakeCredentials) Login(_ context.Context, email, password string) (credential.Session, error) {
	return f.loginFn(email, password)
}

func (f *fakeCredentials) UpdatePassword(_ context.Context, me user.User, current, password, confirm string) (credential.Session, error) {
	return credential.Session{Token: "tok-" + me.ID, Public: resource.Document{"id": me.ID}}, nil
}

func (f *fakeCredentials) ForgotPassword(_ context.Context, email, siteURL, origin string) error {
	return f.forgotFn(email, siteURL, origin)
}

func (f *fakeCredentials) ResetPassword(_ context.Context, token, password, confirm string) (credential.Session, error) {
	return f.resetFn(token, password, confirm)
}

func newAuthRouter(creds handlers.Credentials) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handlers.NewAuthHandler(creds, 90*24*time.Hour)
	r := gin.New()
	r.Use(middlewares.ErrorHandler(false))
	r.POST("/login", h.Login)
	r.POST("/forget-password", h.ForgotPassword)
	r.PATCH("/reset-password/:token", h.ResetPassword)
	r.PATCH("/update-password", func(c *gin.Context) {
		c.Set(middlewares.CtxUser, user.User{ID: "u-9"})
		c.Next()
	}, h.UpdatePassword)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "api.example"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v body=%s", err, w.Body.String())
	}
	return body
}

func TestAuthHandler_LoginSetsSession(t *testing.T) {
	creds := &fakeCredentials{loginFn: func(email, password string) (credential.Session, error) {
		if email != "ada@example.com" || password != "secret123" {
			return credential.Session{}, apperr.Auth(credential.MsgInvalidCredentials)
		}
		return credential.Session{Token: "tok", Public: resource.Document{"id": "u-1", "email": email}}, nil
	}}
	r := newAuthRouter(creds)

	w := doJSON(r, http.MethodPost, "/login", `{"email":"ada@example.com","password":"secret123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["status"] != "success" || body["token"] != "tok" {
		t.Fatalf("unexpected body: %v", body)
	}
	data, _ := body["data"].(map[string]any)
	if u, _ := data["user"].(map[string]any); u["id"] != "u-1" {
		t.Fatalf("missing user in %v", body)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != middlewares.CookieName || c.Value != "tok" || !c.HttpOnly || c.Secure {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if c.SameSite != http.SameSiteStrictMode || c.MaxAge != int((90*24*time.Hour).Seconds()) {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}

	w = doJSON(r, http.MethodPost, "/login", `{"email":"ada@example.com","password":"nope"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
	if body := decodeBody(t, w); body["message"] != credential.MsgInvalidCredentials {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestAuthHandler_SecureCookieBehindTLSProxy(t *testing.T) {
	creds := &fakeCredentials{loginFn: func(string, string) (credential.Session, error) {
		return credential.Session{Token: "tok", Public: resource.Document{}}, nil
	}}
	r := newAuthRouter(creds)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if cookies := w.Result().Cookies(); len(cookies) != 1 || !cookies[0].Secure {
		t.Fatalf("expected a secure cookie, got %+v", cookies)
	}
}

func TestAuthHandler_ForgotPasswordPassesSiteAndOrigin(t *testing.T) {
	var gotSite, gotOrigin string
	creds := &fakeCredentials{forgotFn: func(email, siteURL, origin string) error {
		gotSite, gotOrigin = siteURL, origin
		return nil
	}}
	r := newAuthRouter(creds)

	w := doJSON(r, http.MethodPost, "/forget-password?url=https://site.example", `{"email":"ada@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if body := decodeBody(t, w); body["message"] != credential.MsgResetSent {
		t.Fatalf("unexpected body: %v", body)
	}
	if gotSite != "https://site.example" || gotOrigin != "http://api.example" {
		t.Fatalf("got site %q origin %q", gotSite, gotOrigin)
	}

	creds.forgotFn = func(string, string, string) error {
		return apperr.Delivery(credential.MsgResetMailFailed, errors.New("smtp down"))
	}
	w = doJSON(r, http.MethodPost, "/forget-password", `{"email":"ada@example.com"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusInternalServerError, w.Body.String())
	}
}

func TestAuthHandler_ResetAndUpdatePassword(t *testing.T) {
	creds := &fakeCredentials{resetFn: func(token, password, confirm string) (credential.Session, error) {
		if token != "plain" {
			return credential.Session{}, apperr.Validation(credential.MsgInvalidResetToken, nil)
		}
		return credential.Session{Token: "fresh", Public: resource.Document{}}, nil
	}}
	r := newAuthRouter(creds)

	w := doJSON(r, http.MethodPatch, "/reset-password/plain", `{"password":"newsecret1","passwordConfirm":"newsecret1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	w = doJSON(r, http.MethodPatch, "/reset-password/other", `{"password":"newsecret1","passwordConfirm":"newsecret1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	w = doJSON(r, http.MethodPatch, "/update-password", `{"currentPassword":"a","password":"b","passwordConfirm":"b"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if body := decodeBody(t, w); body["token"] != "tok-u-9" {
		t.Fatalf("expected a session for the caller, got %v", body)
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var storeErr error
	h := handlers.NewHealthHandler(map[string]handlers.Check{
		"store": func(context.Context) error { return storeErr },
	})
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	if w := get("/healthz"); w.Code != http.StatusOK {
		t.Fatalf("healthz got %d", w.Code)
	}
	if w := get("/readyz"); w.Code != http.StatusOK {
		t.Fatalf("readyz got %d, body=%s", w.Code, w.Body.String())
	}

	storeErr = errors.New("connection refused")
	w := get("/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz got %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	checks, _ := decodeBody(t, w)["checks"].(map[string]any)
	if checks["store"] != "connection refused" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}

func TestRespond_TagsReadsAndHonoursIfNoneMatch(t *testing.T) {
	gin.SetMode(gin.TestMode)

	n := 1
	r := gin.New()
	r.GET("/doc", func(c *gin.Context) {
		handlers.Respond(c, resource.Outcome{Status: http.StatusOK, Body: gin.H{"status": "success", "n": n}})
	})
	r.POST("/doc", func(c *gin.Context) {
		handlers.Respond(c, resource.Outcome{Status: http.StatusCreated, Body: gin.H{"status": "success"}})
	})

	get := func(ifNoneMatch string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/doc", nil)
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("")
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("got status %d etag %q", w.Code, etag)
	}
	if body := decodeBody(t, w); body["n"] != float64(1) {
		t.Fatalf("unexpected body: %v", body)
	}

	for _, header := range []string{etag, strings.TrimPrefix(etag, "W/"), `"other", ` + etag, "*"} {
		if w := get(header); w.Code != http.StatusNotModified || w.Body.Len() != 0 {
			t.Fatalf("If-None-Match %q: got status %d body %q", header, w.Code, w.Body.String())
		}
	}

	n = 2
	if w := get(etag); w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("a changed body must get a new tag, got status %d etag %q", w.Code, w.Header().Get("ETag"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/doc", nil))
	if w.Code != http.StatusCreated || w.Header().Get("ETag") != "" {
		t.Fatalf("writes are not tagged, got status %d etag %q", w.Code, w.Header().Get("ETag"))
	}
}
