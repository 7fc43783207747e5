// Package response writes the JSON envelope every HTTP endpoint answers with.
package response

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
)

const internalMessage = "internal server error"

// Envelope is the body of every response.
type Envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    any                    `json:"data,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes the envelope for err. Errors that are not *apperrors.Error
// are logged and answered with a generic 500.
func Error(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		log.Error("HTTP handler: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error())
		JSON(w, http.StatusInternalServerError, Envelope{Success: false, Message: internalMessage})
		return
	}

	if appErr.RetryAfter > 0 {
		secs := int(math.Ceil(appErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	env := Envelope{Success: false, Message: appErr.Message, Errors: appErr.Fields}
	if len(appErr.Details) > 0 {
		env.Data = appErr.Details
	}
	JSON(w, appErr.HTTPStatus(), env)
}
