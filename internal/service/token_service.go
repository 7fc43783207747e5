package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

// TokenService issues and rotates session token pairs. Refresh tokens are
// not persisted: a valid signature, type and expiry plus a loginable
// identity are enough to rotate.
type TokenService struct {
	manager model.TokenManager
	store   model.IdentityStore
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, store model.IdentityStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger}
}

func (s *TokenService) Issue(identityID uuid.UUID) (model.TokenPair, error) {
	access, accessExp, err := s.manager.GenerateAccessToken(identityID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, refreshExp, err := s.manager.GenerateRefreshToken(identityID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	return model.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a fresh pair.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, apperrors.NewErrInvalidSession()
	}

	identityID, err := s.manager.ParseRefreshToken(refreshToken)
	if err != nil {
		s.logger.Debug("Token service: refresh token rejected",
			"error", err.Error())
		return Session{}, apperrors.NewErrInvalidSession()
	}

	identity, err := s.loginable(ctx, identityID)
	if err != nil {
		return Session{}, err
	}

	pair, err := s.Issue(identity.ID)
	if err != nil {
		s.logger.Error("Token service: failed to issue tokens",
			"identity_id", identity.ID,
			"error", err.Error())
		return Session{}, err
	}

	return Session{Identity: identity, Tokens: pair}, nil
}

// Authenticate resolves an access token to the identity it was issued for.
func (s *TokenService) Authenticate(ctx context.Context, accessToken string) (model.Identity, error) {
	identityID, err := s.manager.ParseAccessToken(accessToken)
	if err != nil {
		return model.Identity{}, apperrors.NewErrInvalidSession()
	}
	return s.loginable(ctx, identityID)
}

func (s *TokenService) loginable(ctx context.Context, identityID uuid.UUID) (model.Identity, error) {
	identity, err := s.store.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Identity{}, apperrors.NewErrInvalidSession()
		}
		s.logger.Error("Token service: failed to get identity",
			"identity_id", identityID,
			"error", err.Error())
		return model.Identity{}, fmt.Errorf("failed to get identity: %w", err)
	}

	if !identity.Active || !identity.Stage.Terminal() {
		return model.Identity{}, apperrors.NewErrInvalidSession()
	}

	return identity, nil
}
