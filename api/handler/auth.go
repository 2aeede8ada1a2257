package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fiberdash/backend/api/transport"
	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/httpcontext"
	authUC "github.com/fiberdash/backend/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc *authUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Log in and open a session
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Username == "" || req.Password == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	record, err := h.uc.Login(stdCtx, req.Username, req.Password, httpcontext.FingerprintFrom(stdCtx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, record)
}

// @Summary End the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, sessionID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"status": "signed_out"})
}

// @Summary Extend the current session
// @Tags auth
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ok, err := h.uc.Refresh(stdCtx, sessionID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if !ok {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "session expired", nil))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"status": "refreshed"})
}

// @Summary Describe the current session
// @Tags auth
// @Router /api/v1/auth/whoami [get]
func (h *AuthHandler) Whoami(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.Request.Header.Peek("X-Session-ID"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	record, err := h.uc.Current(stdCtx, sessionID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if record == nil {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "no active session", nil))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, record)
}

// @Summary List the caller's active sessions
// @Tags auth
// @Router /api/v1/auth/sessions [get]
func (h *AuthHandler) Sessions(ctx *fasthttp.RequestCtx) {
	username := string(ctx.Request.Header.Peek("X-Session-User"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ids, err := h.uc.Sessions(stdCtx, username)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"current":  string(ctx.Request.Header.Peek("X-Session-ID")),
		"sessions": ids,
	})
}

// @Summary Revoke one of the caller's sessions
// @Tags auth
// @Router /api/v1/auth/sessions/{id} [delete]
func (h *AuthHandler) RevokeSession(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	username := string(ctx.Request.Header.Peek("X-Session-User"))
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing session id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	// Revocation is limited to the caller's own sessions.
	ids, err := h.uc.Sessions(stdCtx, username)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	owned := false
	for _, candidate := range ids {
		if candidate == id {
			owned = true
			break
		}
	}
	if !owned {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "session not found", nil))
		return
	}

	if err := h.uc.RevokeSession(stdCtx, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"revoked": id})
}

// @Summary Sign out everywhere except the current session
// @Tags auth
// @Router /api/v1/auth/sessions/revoke-others [post]
func (h *AuthHandler) RevokeOthers(ctx *fasthttp.RequestCtx) {
	username := string(ctx.Request.Header.Peek("X-Session-User"))
	current := string(ctx.Request.Header.Peek("X-Session-ID"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ended, err := h.uc.RevokeOthers(stdCtx, username, current)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"revoked": ended})
}
