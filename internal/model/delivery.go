package model

import "context"

// Notification templates sent through NotificationSender.
const (
	TemplatePasswordReset   = "password-reset"
	TemplatePasswordChanged = "password-changed"
	TemplateWelcome         = "welcome"
)

// CodeSender delivers one-time codes out of band.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, destination, code string, data map[string]string) error
}

// NotificationSender delivers templated notifications.
type NotificationSender interface {
	SendNotification(ctx context.Context, destination, template string, data map[string]string) error
}
