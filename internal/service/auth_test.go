package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/mocks"
	"github.com/dtroode/prakriti-server/internal/model"
)

func TestAuth_Login(t *testing.T) {
	const email = "a@example.com"
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		registered := h.registerCompleted(t, email, "")

		session, err := h.auth.Login(ctx, email, "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, registered.Identity.ID, session.Identity.ID)
		assert.NotEmpty(t, session.Tokens.AccessToken)

		id, err := h.jwt.ParseRefreshToken(session.Tokens.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, registered.Identity.ID, id)
	})

	t.Run("unknown email", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.auth.Login(ctx, "nobody@example.com", "whatever")
		appErr := requireAppError(t, err, apperrors.CodeInvalidCredentials)
		assert.Equal(t, 401, appErr.HTTPStatus())
	})

	t.Run("wrong password counts", func(t *testing.T) {
		h := newHarness(t)
		h.registerCompleted(t, email, "")

		_, err := h.auth.Login(ctx, email, "wrong")
		requireAppError(t, err, apperrors.CodeInvalidCredentials)

		stored, err := h.store.GetByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("fifth failure locks", func(t *testing.T) {
		h := newHarness(t)
		h.registerCompleted(t, email, "")

		for i := 0; i < 4; i++ {
			_, err := h.auth.Login(ctx, email, "wrong")
			requireAppError(t, err, apperrors.CodeInvalidCredentials)
		}

		_, err := h.auth.Login(ctx, email, "wrong")
		appErr := requireAppError(t, err, apperrors.CodeAccountLocked)
		assert.Equal(t, 423, appErr.HTTPStatus())
		assert.Equal(t, 30, appErr.Details["remainingMinutes"])
		assert.Equal(t, 30*time.Minute, appErr.RetryAfter)

		_, err = h.auth.Login(ctx, email, "s3cret-pass")
		requireAppError(t, err, apperrors.CodeAccountLocked)
	})

	t.Run("remaining lock time decreases", func(t *testing.T) {
		h := newHarness(t)
		h.registerCompleted(t, email, "")
		for i := 0; i < 5; i++ {
			_, _ = h.auth.Login(ctx, email, "wrong")
		}

		h.clock.Advance(10 * time.Minute)
		_, err := h.auth.Login(ctx, email, "s3cret-pass")
		appErr := requireAppError(t, err, apperrors.CodeAccountLocked)
		assert.Equal(t, 20, appErr.Details["remainingMinutes"])

		h.clock.Advance(19*time.Minute + 30*time.Second)
		_, err = h.auth.Login(ctx, email, "s3cret-pass")
		appErr = requireAppError(t, err, apperrors.CodeAccountLocked)
		assert.Equal(t, 1, appErr.Details["remainingMinutes"])
	})

	t.Run("success after the lock expires clears counters", func(t *testing.T) {
		h := newHarness(t)
		h.registerCompleted(t, email, "")
		for i := 0; i < 5; i++ {
			_, _ = h.auth.Login(ctx, email, "wrong")
		}
		h.clock.Advance(31 * time.Minute)

		session, err := h.auth.Login(ctx, email, "s3cret-pass")
		require.NoError(t, err)
		assert.Zero(t, session.Identity.FailedAttempts)

		stored, err := h.store.GetByEmail(ctx, email)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("failure after the lock expires starts over", func(t *testing.T) {
		h := newHarness(t)
		h.registerCompleted(t, email, "")
		for i := 0; i < 5; i++ {
			_, _ = h.auth.Login(ctx, email, "wrong")
		}
		h.clock.Advance(31 * time.Minute)

		_, err := h.auth.Login(ctx, email, "wrong")
		requireAppError(t, err, apperrors.CodeInvalidCredentials)

		stored, err := h.store.GetByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("unverified account", func(t *testing.T) {
		h := newHarness(t)
		h.registerUntil(t, email, "", model.StageCredentialSetup)

		_, err := h.auth.Login(ctx, email, "s3cret-pass")
		appErr := requireAppError(t, err, apperrors.CodeAccountNotVerified)
		assert.Equal(t, 403, appErr.HTTPStatus())
	})

	t.Run("unverified account with wrong password", func(t *testing.T) {
		h := newHarness(t)
		h.registerUntil(t, email, "", model.StageCredentialSetup)

		_, err := h.auth.Login(ctx, email, "wrong")
		requireAppError(t, err, apperrors.CodeInvalidCredentials)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t)
		store := &mocks.IdentityStore{}
		store.On("GetByEmail", mock.Anything, email).Return(model.Identity{}, errors.New("too many connections"))
		h.auth.store = store

		_, err := h.auth.Login(ctx, email, "s3cret-pass")
		require.Error(t, err)
		_, isAppErr := apperrors.As(err)
		assert.False(t, isAppErr)
	})
}

func TestLockout_Check(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()

	locked, remaining := h.lockout.Check(model.Identity{})
	assert.False(t, locked)
	assert.Zero(t, remaining)

	until := now.Add(5 * time.Minute)
	locked, remaining = h.lockout.Check(model.Identity{LockedUntil: &until})
	assert.True(t, locked)
	assert.Equal(t, 5*time.Minute, remaining)

	past := now.Add(-time.Second)
	locked, _ = h.lockout.Check(model.Identity{LockedUntil: &past})
	assert.False(t, locked)
}

func TestNewLockout_Defaults(t *testing.T) {
	h := newHarness(t)
	l := NewLockout(h.store, LockoutPolicy{}, h.metrics, nil)
	assert.Equal(t, 5, l.policy.Threshold)
	assert.Equal(t, 30*time.Minute, l.policy.Duration)
}

func TestAuth_Me(t *testing.T) {
	h := newHarness(t)
	session := h.registerCompleted(t, "a@example.com", "+15550001")

	identity, err := h.auth.Me(context.Background(), session.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", identity.Personal.Email)
	require.NotNil(t, identity.Profile)

	_, err = h.auth.Me(context.Background(), uuid.New())
	requireAppError(t, err, apperrors.CodeInvalidSession)
}
