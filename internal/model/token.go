package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenManager generates and validates access/refresh tokens.
type TokenManager interface {
	GenerateAccessToken(identityID uuid.UUID) (token string, expiresAt time.Time, err error)
	GenerateRefreshToken(identityID uuid.UUID) (token string, expiresAt time.Time, err error)
	ParseAccessToken(token string) (uuid.UUID, error)
	ParseRefreshToken(token string) (uuid.UUID, error)
}

// TokenPair is an issued session.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
