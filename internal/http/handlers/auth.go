package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/credential"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/httperr"
	"github.com/geocoder89/accounts/internal/http/middlewares"
)

// Credentials is the part of the credential service the auth routes use.
type Credentials interface {
	Login(ctx context.Context, email, password string) (credential.Session, error)
	UpdatePassword(ctx context.Context, me user.User, current, password, confirm string) (credential.Session, error)
	ForgotPassword(ctx context.Context, email, siteURL, origin string) error
	ResetPassword(ctx context.Context, token, password, confirm string) (credential.Session, error)
}

type AuthHandler struct {
	creds        Credentials
	cookieMaxAge time.Duration
}

func NewAuthHandler(creds Credentials, cookieMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{creds: creds, cookieMaxAge: cookieMaxAge}
}

// Presence and length are checked by the credential flows so their messages reach
// the caller. MaxBodyBytes bounds the body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.creds.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		httperr.Abort(ctx, err)
		return
	}

	h.sendSession(ctx, sess)
}

func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	me, ok := middlewares.MustUser(ctx)
	if !ok {
		return
	}

	var req UpdatePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.creds.UpdatePassword(ctx.Request.Context(), me, req.CurrentPassword, req.Password, req.PasswordConfirm)
	if err != nil {
		httperr.Abort(ctx, err)
		return
	}

	h.sendSession(ctx, sess)
}

// ForgotPassword mails a reset token. The optional url query names the site the
// mail links back to.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	err := h.creds.ForgotPassword(ctx.Request.Context(), req.Email, ctx.Query("url"), origin(ctx))
	if err != nil {
		httperr.Abort(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, success(gin.H{"message": credential.MsgResetSent}))
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.creds.ResetPassword(ctx.Request.Context(), ctx.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		httperr.Abort(ctx, err)
		return
	}

	h.sendSession(ctx, sess)
}

func (h *AuthHandler) sendSession(ctx *gin.Context, sess credential.Session) {
	h.setSessionCookie(ctx, sess.Token)

	ctx.JSON(http.StatusOK, success(gin.H{
		"token": sess.Token,
		"data":  gin.H{"user": sess.Public},
	}))
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, token string) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		middlewares.CookieName,
		token,
		int(h.cookieMaxAge.Seconds()),
		"/",
		"",
		secureRequest(ctx),
		true, // HttpOnly.
	)
}
