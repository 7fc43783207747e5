// Package delivery sends verification codes and notifications out of band.
package delivery

import (
	"github.com/dtroode/prakriti-server/internal/config"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

// Sender is both delivery capabilities.
type Sender interface {
	model.CodeSender
	model.NotificationSender
}

// NewFromConfig returns the webhook sender when a URL is configured and
// the log sender otherwise. Codes are written to the log only outside production.
func NewFromConfig(cfg config.Delivery, log *logger.Logger, production bool) Sender {
	if cfg.WebhookURL != "" {
		return NewWebhook(cfg.WebhookURL, cfg.Timeout, cfg.RatePerSecond, cfg.Burst)
	}
	return NewLogSender(log, !production)
}
