package handler

import (
	"net/http"
	"strings"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/logger"
)

const forgotMessage = "if an account exists for this email, a reset link has been sent"

// Password serves the forgotten password endpoints.
type Password struct {
	reset  PasswordService
	logger *logger.Logger
}

func NewPassword(reset PasswordService, logger *logger.Logger) *Password {
	return &Password{reset: reset, logger: logger}
}

// Forgot answers the same way whether or not the account exists.
func (h *Password) Forgot(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	email := fields.email("email", req.Email)
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.reset.RequestReset(r.Context(), email); err != nil {
		h.logger.Error("Password handler: reset request failed",
			"error", err.Error())
	}
	response.OK(w, http.StatusOK, forgotMessage, nil)
}

func (h *Password) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	token := fields.required("token", req.Token)
	fields.password("newPassword", req.NewPassword)
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if _, err := h.reset.ResetPassword(r.Context(), strings.TrimSpace(token), req.NewPassword); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}
	response.OK(w, http.StatusOK, "password has been reset", nil)
}
