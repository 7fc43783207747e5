package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var _ Sender = (*Webhook)(nil)

const (
	messageCode         = "verification-code"
	messageNotification = "notification"
)

// message is the JSON body posted to the webhook.
type message struct {
	Type        string            `json:"type"`
	Destination string            `json:"destination"`
	Code        string            `json:"code,omitempty"`
	Template    string            `json:"template,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	SentAt      time.Time         `json:"sentAt"`
}

// Webhook posts every message to an HTTP endpoint that owns the actual
// email or SMS provider. Outgoing requests are throttled by a token bucket.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebhook(url string, timeout time.Duration, perSecond float64, burst int) *Webhook {
	if burst < 1 {
		burst = 1
	}
	return &Webhook{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (w *Webhook) SendVerificationCode(ctx context.Context, destination, code string, data map[string]string) error {
	return w.post(ctx, message{
		Type:        messageCode,
		Destination: destination,
		Code:        code,
		Data:        data,
	})
}

func (w *Webhook) SendNotification(ctx context.Context, destination, template string, data map[string]string) error {
	return w.post(ctx, message{
		Type:        messageNotification,
		Destination: destination,
		Template:    template,
		Data:        data,
	})
}

func (w *Webhook) post(ctx context.Context, m message) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("delivery throttled: %w", err)
	}

	m.SentAt = time.Now().UTC()
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call delivery webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delivery webhook returned status %d", resp.StatusCode)
	}
	return nil
}
