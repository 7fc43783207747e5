package handler

import (
	"net/http"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

// Auth serves login, session and current identity endpoints.
type Auth struct {
	auth           AuthService
	tokens         TokenService
	contextManager model.ContextManager
	cookies        CookiePolicy
	logger         *logger.Logger
}

func NewAuth(
	auth AuthService,
	tokens TokenService,
	contextManager model.ContextManager,
	cookies CookiePolicy,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		auth:           auth,
		tokens:         tokens,
		contextManager: contextManager,
		cookies:        cookies,
		logger:         logger,
	}
}

func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	email := fields.email("email", req.Email)
	if req.Password == "" {
		fields.add("password", "is required")
	}
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	session, err := h.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	h.cookies.setRefreshCookie(w, session.Tokens.RefreshToken, session.Tokens.RefreshExpiresAt)
	response.OK(w, http.StatusOK, "login successful", toSessionResponse(session))
}

// Refresh rotates the refresh token taken from the body or, failing that, the cookie.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	token := req.RefreshToken
	if token == "" {
		token, _ = h.cookies.refreshFromCookie(r)
	}

	session, err := h.tokens.Rotate(r.Context(), token)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeInvalidSession) {
			h.cookies.expireCookie(w)
		}
		response.Error(w, r, h.logger, err)
		return
	}

	h.cookies.setRefreshCookie(w, session.Tokens.RefreshToken, session.Tokens.RefreshExpiresAt)
	response.OK(w, http.StatusOK, "session refreshed", toSessionResponse(session))
}

// Logout clears the refresh cookie. It always succeeds.
func (h *Auth) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.expireCookie(w)
	response.OK(w, http.StatusOK, "logged out", nil)
}

func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.contextManager.GetPrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.logger, apperrors.NewErrInvalidSession())
		return
	}

	identity, err := h.auth.Me(r.Context(), principal.IdentityID)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}
	response.OK(w, http.StatusOK, "current identity", toIdentityResponse(identity))
}
