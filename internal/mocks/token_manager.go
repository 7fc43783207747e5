package mocks

import (
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/prakriti-server/internal/model"
)

var _ model.TokenManager = (*TokenManager)(nil)

// TokenManager is a testify mock of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateAccessToken(identityID uuid.UUID) (string, time.Time, error) {
	ret := m.Called(identityID)
	return ret.String(0), ret.Get(1).(time.Time), ret.Error(2)
}

func (m *TokenManager) GenerateRefreshToken(identityID uuid.UUID) (string, time.Time, error) {
	ret := m.Called(identityID)
	return ret.String(0), ret.Get(1).(time.Time), ret.Error(2)
}

func (m *TokenManager) ParseAccessToken(token string) (uuid.UUID, error) {
	ret := m.Called(token)
	return ret.Get(0).(uuid.UUID), ret.Error(1)
}

func (m *TokenManager) ParseRefreshToken(token string) (uuid.UUID, error) {
	ret := m.Called(token)
	return ret.Get(0).(uuid.UUID), ret.Error(1)
}
