// Package apperrors defines the errors the service reports to its callers.
package apperrors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindStateConflict
	KindNotFound
	KindConflict
	KindThrottle
	KindAuth
	KindForbidden
	KindLocked
)

// Machine-readable error codes.
const (
	CodeValidation         = "validation_failed"
	CodeStageMismatch      = "stage_mismatch"
	CodeRecordNotFound     = "record_not_found"
	CodeDuplicateIdentity  = "duplicate_identity"
	CodeAlreadyVerified    = "already_verified"
	CodeNoPendingCode      = "no_pending_code"
	CodeCodeExpired        = "code_expired"
	CodeCodeMismatch       = "code_mismatch"
	CodeTooFrequent        = "too_frequent"
	CodeDailyLimitReached  = "daily_limit_reached"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountLocked      = "account_locked"
	CodeAccountNotVerified = "account_not_verified"
	CodeInvalidSession     = "invalid_session"
	CodeInvalidResetToken  = "invalid_reset_token"
	CodeForbidden          = "forbidden"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an error with a kind, a stable code and a caller-facing message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details is surfaced to the caller as response data.
	Details map[string]any
	Fields  []FieldError
	// RetryAfter is set for throttling errors.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same code, so errors.Is(err, &Error{Code: ...}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// As returns the *Error in the chain of err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether the chain of err holds an *Error with code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindStateConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindLocked:
		return http.StatusLocked
	case KindThrottle:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func NewErrValidation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: "validation failed", Fields: fields}
}

func NewErrStageMismatch(current, requested string) *Error {
	return &Error{
		Kind:    KindStateConflict,
		Code:    CodeStageMismatch,
		Message: fmt.Sprintf("registration is at stage %s, cannot submit %s", current, requested),
		Details: map[string]any{"currentStage": current, "requestedStage": requested},
	}
}

func NewErrRecordNotFound() *Error {
	return &Error{Kind: KindNotFound, Code: CodeRecordNotFound, Message: "registration not found, start with personal information"}
}

func NewErrDuplicateIdentity() *Error {
	return &Error{Kind: KindConflict, Code: CodeDuplicateIdentity, Message: "an account with this email or phone already exists"}
}

func NewErrAlreadyVerified() *Error {
	return &Error{Kind: KindStateConflict, Code: CodeAlreadyVerified, Message: "account is already verified"}
}

func NewErrNoPendingCode() *Error {
	return &Error{Kind: KindStateConflict, Code: CodeNoPendingCode, Message: "no verification code is pending, request a new one"}
}

func NewErrCodeExpired() *Error {
	return &Error{Kind: KindStateConflict, Code: CodeCodeExpired, Message: "verification code has expired, request a new one"}
}

func NewErrCodeMismatch(attemptsRemaining int) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeCodeMismatch,
		Message: "invalid verification code",
		Details: map[string]any{"attemptsRemaining": attemptsRemaining},
	}
}

func NewErrTooFrequent(wait time.Duration) *Error {
	secs := int(math.Ceil(wait.Seconds()))
	return &Error{
		Kind:       KindThrottle,
		Code:       CodeTooFrequent,
		Message:    fmt.Sprintf("please wait %d seconds before requesting another code", secs),
		Details:    map[string]any{"waitSeconds": secs},
		RetryAfter: wait,
	}
}

func NewErrDailyLimitReached(limit int) *Error {
	return &Error{
		Kind:    KindThrottle,
		Code:    CodeDailyLimitReached,
		Message: "verification code limit reached, try again tomorrow or restart registration",
		Details: map[string]any{"limit": limit},
	}
}

func NewErrInvalidCredentials() *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidCredentials, Message: "invalid email or password"}
}

func NewErrAccountLocked(remaining time.Duration) *Error {
	mins := int(math.Ceil(remaining.Minutes()))
	return &Error{
		Kind:       KindLocked,
		Code:       CodeAccountLocked,
		Message:    fmt.Sprintf("account is locked, try again in %d minutes", mins),
		Details:    map[string]any{"remainingMinutes": mins},
		RetryAfter: remaining,
	}
}

func NewErrAccountNotVerified() *Error {
	return &Error{Kind: KindForbidden, Code: CodeAccountNotVerified, Message: "account is not verified or inactive"}
}

func NewErrInvalidSession() *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidSession, Message: "session is invalid or expired"}
}

func NewErrInvalidResetToken() *Error {
	return &Error{Kind: KindStateConflict, Code: CodeInvalidResetToken, Message: "reset link is invalid or has expired"}
}

func NewErrForbidden() *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "access denied"}
}

func NewErrRateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindThrottle, Code: CodeRateLimited, Message: "too many requests", RetryAfter: retryAfter}
}
