package handler

import (
	"net/http"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/logger"
)

// Verification serves the contact verification endpoints.
type Verification struct {
	otp     VerificationService
	cookies CookiePolicy
	logger  *logger.Logger
}

func NewVerification(otp VerificationService, cookies CookiePolicy, logger *logger.Logger) *Verification {
	return &Verification{otp: otp, cookies: cookies, logger: logger}
}

// VerifyCode completes the registration and opens a session.
func (h *Verification) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	contact := fields.contact(req.Email, req.Phone)
	code := fields.code("code", req.Code)
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	session, err := h.otp.Verify(r.Context(), contact, code)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	h.cookies.setRefreshCookie(w, session.Tokens.RefreshToken, session.Tokens.RefreshExpiresAt)
	response.OK(w, http.StatusOK, "account verified", toSessionResponse(session))
}

func (h *Verification) Resend(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	contact := fields.contact(req.Email, req.Phone)
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.otp.Resend(r.Context(), contact)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}
	response.OK(w, http.StatusOK, "verification code sent", toStageResponse(result))
}
