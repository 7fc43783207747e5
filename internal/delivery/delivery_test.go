package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/config"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/testutil"
)

func TestWebhook_SendVerificationCode(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, time.Second, 100, 10)
	err := wh.SendVerificationCode(context.Background(), "a@example.com", "123456", map[string]string{"reason": "registration"})
	require.NoError(t, err)

	assert.Equal(t, messageCode, got.Type)
	assert.Equal(t, "a@example.com", got.Destination)
	assert.Equal(t, "123456", got.Code)
	assert.Equal(t, "registration", got.Data["reason"])
	assert.False(t, got.SentAt.IsZero())
}

func TestWebhook_SendNotification(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, time.Second, 100, 10)
	err := wh.SendNotification(context.Background(), "a@example.com", model.TemplatePasswordReset, map[string]string{"link": "x"})
	require.NoError(t, err)

	assert.Equal(t, messageNotification, got.Type)
	assert.Equal(t, model.TemplatePasswordReset, got.Template)
	assert.Empty(t, got.Code)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, time.Second, 100, 10)
	err := wh.SendVerificationCode(context.Background(), "a@example.com", "123456", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestWebhook_ContextCancelledWhileThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, time.Second, 0.001, 1)
	require.NoError(t, wh.SendVerificationCode(context.Background(), "a@example.com", "1", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := wh.SendVerificationCode(ctx, "a@example.com", "2", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery throttled")
}

func TestLogSender(t *testing.T) {
	tests := []struct {
		name        string
		revealCodes bool
		wantCode    bool
	}{
		{"development reveals code", true, true},
		{"production hides code", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewLogSender(logger.NewWithFormat(&buf, 0, "text"), tt.revealCodes)

			require.NoError(t, s.SendVerificationCode(context.Background(), "alice@example.com", "654321", nil))

			assert.Contains(t, buf.String(), "a***@example.com")
			assert.NotContains(t, buf.String(), "alice@example.com")
			assert.Equal(t, tt.wantCode, bytes.Contains(buf.Bytes(), []byte("654321")))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "b***@x.org", mask("bob@x.org"))
	assert.Equal(t, "***4567", mask("+15551234567"))
	assert.Equal(t, "***", mask("123"))
}

func TestNewFromConfig(t *testing.T) {
	log := testutil.MakeNoopLogger()

	assert.IsType(t, &LogSender{}, NewFromConfig(config.Delivery{}, log, false))
	assert.IsType(t, &Webhook{}, NewFromConfig(config.Delivery{WebhookURL: "http://localhost:1", Timeout: time.Second, RatePerSecond: 1, Burst: 1}, log, true))
}
