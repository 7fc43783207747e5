package delivery

import (
	"context"
	"strings"

	"github.com/dtroode/prakriti-server/internal/logger"
)

var _ Sender = (*LogSender)(nil)

// LogSender writes outgoing messages to the log instead of delivering them.
type LogSender struct {
	logger      *logger.Logger
	revealCodes bool
}

func NewLogSender(log *logger.Logger, revealCodes bool) *LogSender {
	return &LogSender{
		logger:      log,
		revealCodes: revealCodes,
	}
}

func (s *LogSender) SendVerificationCode(ctx context.Context, destination, code string, data map[string]string) error {
	args := []any{"destination", mask(destination), "reason", data["reason"]}
	if s.revealCodes {
		args = append(args, "code", code)
	}
	s.logger.InfoContext(ctx, "Delivery: verification code", args...)
	return nil
}

func (s *LogSender) SendNotification(ctx context.Context, destination, template string, data map[string]string) error {
	args := []any{"destination", mask(destination), "template", template}
	if s.revealCodes {
		if link, ok := data["link"]; ok {
			args = append(args, "link", link)
		}
	}
	s.logger.InfoContext(ctx, "Delivery: notification", args...)
	return nil
}

// mask keeps the first character and the domain of an email address.
func mask(destination string) string {
	at := strings.IndexByte(destination, '@')
	if at <= 0 {
		if len(destination) <= 4 {
			return "***"
		}
		return "***" + destination[len(destination)-4:]
	}
	return destination[:1] + "***" + destination[at:]
}
