package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/prakriti-server/internal/model"
)

var (
	_ model.CodeSender         = (*CodeSender)(nil)
	_ model.NotificationSender = (*NotificationSender)(nil)
)

// CodeSender is a testify mock of model.CodeSender.
type CodeSender struct {
	mock.Mock
}

func (m *CodeSender) SendVerificationCode(ctx context.Context, destination, code string, data map[string]string) error {
	return m.Called(ctx, destination, code, data).Error(0)
}

// NotificationSender is a testify mock of model.NotificationSender.
type NotificationSender struct {
	mock.Mock
}

func (m *NotificationSender) SendNotification(ctx context.Context, destination, template string, data map[string]string) error {
	return m.Called(ctx, destination, template, data).Error(0)
}
