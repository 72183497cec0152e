package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/coursehub/internal/accounts"
	"github.com/geocoder89/coursehub/internal/actorctx"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/validation"
)

const refreshCookieName = "refresh_token"

type AccountsService interface {
	SignUp(ctx context.Context, in validation.SignUpInput) (user.User, error)
	Login(ctx context.Context, in validation.LoginInput) (accounts.Session, error)
	Refresh(ctx context.Context, rawRefresh string) (accounts.Session, error)
	Logout(ctx context.Context, rawRefresh string) error
	Lookup(ctx context.Context, actor actorctx.Actor, in validation.LookupInput) (user.User, error)
	Me(ctx context.Context, actor actorctx.Actor) (user.User, error)
}

type AccountsHandler struct {
	svc          AccountsService
	secureCookie bool
}

func NewAccountsHandler(svc AccountsService, secureCookie bool) *AccountsHandler {
	return &AccountsHandler{svc: svc, secureCookie: secureCookie}
}

// POST /users and POST /auth/signup
func (h *AccountsHandler) SignUp(ctx *gin.Context) {
	var req validation.SignUpInput
	if !DecodeJSON(ctx, &req) {
		return
	}

	u, err := h.svc.SignUp(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": u})
}

// POST /auth/login
func (h *AccountsHandler) Login(ctx *gin.Context) {
	var req validation.LoginInput
	if !DecodeJSON(ctx, &req) {
		return
	}

	sess, err := h.svc.Login(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	h.setRefreshCookie(ctx, sess.RefreshToken, sess.RefreshExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{"token": sess.AccessToken})
}

// POST /auth/refresh
func (h *AccountsHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	sess, err := h.svc.Refresh(ctx.Request.Context(), raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		RespondAppError(ctx, err)
		return
	}

	h.setRefreshCookie(ctx, sess.RefreshToken, sess.RefreshExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{"token": sess.AccessToken})
}

// POST /auth/logout always clears the cookie.
func (h *AccountsHandler) Logout(ctx *gin.Context) {
	raw, _ := ctx.Cookie(refreshCookieName)

	err := h.svc.Logout(ctx.Request.Context(), raw)
	h.clearRefreshCookie(ctx)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// POST /users/lookup
func (h *AccountsHandler) Lookup(ctx *gin.Context) {
	var req validation.LookupInput
	if !DecodeJSON(ctx, &req) {
		return
	}

	actor, _ := middlewares.ActorFromContext(ctx)

	u, err := h.svc.Lookup(ctx.Request.Context(), actor, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// GET /me
func (h *AccountsHandler) Me(ctx *gin.Context) {
	actor, _ := middlewares.ActorFromContext(ctx)

	u, err := h.svc.Me(ctx.Request.Context(), actor)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AccountsHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		refreshCookieName,
		raw,
		maxAge,
		"/auth",
		"",
		h.secureCookie,
		true, // HttpOnly.
	)
}

func (h *AccountsHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, "/auth", "", h.secureCookie, true)
}
