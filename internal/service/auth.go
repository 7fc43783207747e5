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

// Auth authenticates identities with email and password.
type Auth struct {
	store   model.IdentityStore
	hasher  model.PasswordHasher
	lockout *Lockout
	tokens  *TokenService
	metrics model.MetricsRecorder
	logger  *logger.Logger
}

func NewAuth(
	store model.IdentityStore,
	hasher model.PasswordHasher,
	lockout *Lockout,
	tokens *TokenService,
	metrics model.MetricsRecorder,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		store:   store,
		hasher:  hasher,
		lockout: lockout,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}
}

// Login checks the lock, then the password, then the registration state.
// A locked account is reported as such even before the password is checked.
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	session, err := a.login(ctx, email, password)
	switch {
	case err == nil:
		a.metrics.LoginAttempt(model.OutcomeSuccess)
	case apperrors.Is(err, apperrors.CodeAccountLocked):
		a.metrics.LoginAttempt(model.OutcomeLocked)
	default:
		a.metrics.LoginAttempt(model.OutcomeFailure)
	}
	return session, err
}

func (a *Auth) login(ctx context.Context, email, password string) (Session, error) {
	identity, err := a.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Debug("Auth service: unknown email")
			return Session{}, apperrors.NewErrInvalidCredentials()
		}
		a.logger.Error("Auth service: failed to get identity by email",
			"error", err.Error())
		return Session{}, fmt.Errorf("failed to get identity by email: %w", err)
	}

	if locked, remaining := a.lockout.Check(identity); locked {
		a.logger.Info("Auth service: login on locked account",
			"identity_id", identity.ID)
		return Session{}, apperrors.NewErrAccountLocked(remaining)
	}

	if err := a.hasher.Compare(identity.PasswordHash, password); err != nil {
		if !errors.Is(err, model.ErrPasswordMismatch) {
			a.logger.Error("Auth service: failed to compare password",
				"identity_id", identity.ID,
				"error", err.Error())
			return Session{}, fmt.Errorf("failed to compare password: %w", err)
		}

		updated, err := a.lockout.RecordFailure(ctx, identity.ID)
		if err != nil {
			a.logger.Error("Auth service: failed to record login failure",
				"identity_id", identity.ID,
				"error", err.Error())
			return Session{}, err
		}
		if locked, remaining := a.lockout.Check(updated); locked {
			return Session{}, apperrors.NewErrAccountLocked(remaining)
		}
		a.logger.Info("Auth service: wrong password",
			"identity_id", identity.ID,
			"failed_attempts", updated.FailedAttempts)
		return Session{}, apperrors.NewErrInvalidCredentials()
	}

	if !identity.Stage.Terminal() || !identity.Active {
		a.logger.Info("Auth service: login before verification",
			"identity_id", identity.ID,
			"stage", identity.Stage)
		return Session{}, apperrors.NewErrAccountNotVerified()
	}

	if identity.FailedAttempts > 0 || identity.LockedUntil != nil {
		if err := a.lockout.RecordSuccess(ctx, identity.ID); err != nil {
			a.logger.Error("Auth service: failed to reset login failures",
				"identity_id", identity.ID,
				"error", err.Error())
			return Session{}, err
		}
		identity.FailedAttempts = 0
		identity.LockedUntil = nil
	}

	pair, err := a.tokens.Issue(identity.ID)
	if err != nil {
		a.logger.Error("Auth service: failed to issue tokens",
			"identity_id", identity.ID,
			"error", err.Error())
		return Session{}, err
	}

	a.logger.Info("Auth service: login succeeded",
		"identity_id", identity.ID)
	return Session{Identity: identity, Tokens: pair}, nil
}

// Me returns the identity behind an authenticated request.
func (a *Auth) Me(ctx context.Context, identityID uuid.UUID) (model.Identity, error) {
	identity, err := a.store.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Identity{}, apperrors.NewErrInvalidSession()
		}
		return model.Identity{}, fmt.Errorf("failed to get identity: %w", err)
	}
	return identity, nil
}
