package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 30 * time.Minute
)

// LockoutPolicy configures the failed-login guard.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// Lockout counts failed logins and locks identities for a fixed window.
type Lockout struct {
	store   model.IdentityStore
	policy  LockoutPolicy
	metrics model.MetricsRecorder
	logger  *logger.Logger
	now     func() time.Time
}

func NewLockout(store model.IdentityStore, policy LockoutPolicy, metrics model.MetricsRecorder, logger *logger.Logger) *Lockout {
	if policy.Threshold < 1 {
		policy.Threshold = defaultLockoutThreshold
	}
	if policy.Duration <= 0 {
		policy.Duration = defaultLockoutDuration
	}
	return &Lockout{
		store:   store,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Check reports whether identity is locked and how long the lock still holds.
func (l *Lockout) Check(identity model.Identity) (bool, time.Duration) {
	now := l.now()
	if !identity.IsLocked(now) {
		return false, 0
	}
	return true, identity.LockedUntil.Sub(now)
}

// RecordFailure counts one failed login and returns the updated record.
func (l *Lockout) RecordFailure(ctx context.Context, identityID uuid.UUID) (model.Identity, error) {
	updated, err := l.store.RecordLoginFailure(ctx, identityID, model.LockoutPolicy{
		Now:       l.now(),
		Threshold: l.policy.Threshold,
		Duration:  l.policy.Duration,
	})
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to record login failure: %w", err)
	}

	if locked, _ := l.Check(updated); locked && updated.FailedAttempts == l.policy.Threshold {
		l.metrics.AccountLocked()
		l.logger.Warn("Lockout: account locked",
			"identity_id", identityID,
			"locked_until", updated.LockedUntil)
	}

	return updated, nil
}

func (l *Lockout) RecordSuccess(ctx context.Context, identityID uuid.UUID) error {
	if err := l.store.RecordLoginSuccess(ctx, identityID); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}
