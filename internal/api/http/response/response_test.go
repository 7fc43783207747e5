package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/testutil"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()

	OK(rec, http.StatusCreated, "created", map[string]int{"progress": 20})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "created", body["message"])
	assert.Equal(t, map[string]any{"progress": float64(20)}, body["data"])
	assert.NotContains(t, body, "errors")
}

func TestError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/verify/resend", nil)
	log := testutil.MakeNoopLogger()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantRetry  string
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "validation with fields",
			err:        apperrors.NewErrValidation(apperrors.FieldError{Field: "email", Message: "is required"}),
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, []any{map[string]any{"field": "email", "message": "is required"}}, body["errors"])
				assert.NotContains(t, body, "data")
			},
		},
		{
			name:       "throttle sets retry-after",
			err:        apperrors.NewErrTooFrequent(41500 * time.Millisecond),
			wantStatus: http.StatusTooManyRequests,
			wantRetry:  "42",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, float64(42), body["data"].(map[string]any)["waitSeconds"])
			},
		},
		{
			name:       "locked",
			err:        apperrors.NewErrAccountLocked(29 * time.Minute),
			wantStatus: http.StatusLocked,
			wantRetry:  "1740",
		},
		{
			name:       "wrapped app error",
			err:        errors.Join(errors.New("context"), apperrors.NewErrDuplicateIdentity()),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unexpected error hides detail",
			err:        errors.New("pq: relation identities does not exist"),
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "internal server error", body["message"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			Error(rec, req, log, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetry, rec.Header().Get("Retry-After"))
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}
