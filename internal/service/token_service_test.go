package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/mocks"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/repository/memory"
	"github.com/dtroode/prakriti-server/internal/testutil"
)

func seedIdentity(t *testing.T, store *memory.IdentityRepository, stage model.Stage, active bool) model.Identity {
	t.Helper()
	identity, err := store.Create(context.Background(), model.Identity{
		Kind:     model.KindIndividual,
		Stage:    stage,
		Active:   active,
		Personal: model.PersonalInfo{Name: "Asha", Email: uuid.NewString() + "@example.com"},
	})
	require.NoError(t, err)
	return identity
}

func TestTokenService_Issue(t *testing.T) {
	identityID := uuid.New()
	accessExp := time.Now().Add(15 * time.Minute)
	refreshExp := time.Now().Add(7 * 24 * time.Hour)

	manager := &mocks.TokenManager{}
	manager.On("GenerateAccessToken", identityID).Return("access", accessExp, nil).Once()
	manager.On("GenerateRefreshToken", identityID).Return("refresh", refreshExp, nil).Once()

	svc := NewTokenService(manager, memory.NewIdentityRepository(), testutil.MakeNoopLogger())

	pair, err := svc.Issue(identityID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenPair{
		AccessToken:      "access",
		AccessExpiresAt:  accessExp,
		RefreshToken:     "refresh",
		RefreshExpiresAt: refreshExp,
	}, pair)
	manager.AssertExpectations(t)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	identityID := uuid.New()

	manager := &mocks.TokenManager{}
	manager.On("GenerateAccessToken", identityID).Return("", time.Time{}, assert.AnError).Once()

	svc := NewTokenService(manager, memory.NewIdentityRepository(), testutil.MakeNoopLogger())

	_, err := svc.Issue(identityID)
	require.ErrorIs(t, err, assert.AnError)
	manager.AssertNotCalled(t, "GenerateRefreshToken", identityID)
}

func TestTokenService_Rotate(t *testing.T) {
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	t.Run("success", func(t *testing.T) {
		store := memory.NewIdentityRepository()
		identity := seedIdentity(t, store, model.StageCompleted, true)

		manager := &mocks.TokenManager{}
		manager.On("ParseRefreshToken", "refresh-old").Return(identity.ID, nil).Once()
		manager.On("GenerateAccessToken", identity.ID).Return("access-new", exp, nil).Once()
		manager.On("GenerateRefreshToken", identity.ID).Return("refresh-new", exp, nil).Once()

		svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

		session, err := svc.Rotate(ctx, "refresh-old")
		require.NoError(t, err)
		assert.Equal(t, identity.ID, session.Identity.ID)
		assert.Equal(t, "access-new", session.Tokens.AccessToken)
		assert.Equal(t, "refresh-new", session.Tokens.RefreshToken)
		manager.AssertExpectations(t)
	})

	t.Run("empty token", func(t *testing.T) {
		manager := &mocks.TokenManager{}
		svc := NewTokenService(manager, memory.NewIdentityRepository(), testutil.MakeNoopLogger())

		_, err := svc.Rotate(ctx, "")
		requireAppError(t, err, apperrors.CodeInvalidSession)
		manager.AssertNotCalled(t, "ParseRefreshToken", "")
	})

	t.Run("unparsable token", func(t *testing.T) {
		manager := &mocks.TokenManager{}
		manager.On("ParseRefreshToken", "garbage").Return(uuid.Nil, model.ErrTokenInvalid).Once()
		svc := NewTokenService(manager, memory.NewIdentityRepository(), testutil.MakeNoopLogger())

		_, err := svc.Rotate(ctx, "garbage")
		requireAppError(t, err, apperrors.CodeInvalidSession)
	})

	t.Run("unknown identity", func(t *testing.T) {
		manager := &mocks.TokenManager{}
		manager.On("ParseRefreshToken", "refresh").Return(uuid.New(), nil).Once()
		svc := NewTokenService(manager, memory.NewIdentityRepository(), testutil.MakeNoopLogger())

		_, err := svc.Rotate(ctx, "refresh")
		requireAppError(t, err, apperrors.CodeInvalidSession)
	})

	t.Run("identity not completed", func(t *testing.T) {
		store := memory.NewIdentityRepository()
		identity := seedIdentity(t, store, model.StageContactVerification, false)

		manager := &mocks.TokenManager{}
		manager.On("ParseRefreshToken", "refresh").Return(identity.ID, nil).Once()
		svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

		_, err := svc.Rotate(ctx, "refresh")
		requireAppError(t, err, apperrors.CodeInvalidSession)
		manager.AssertNotCalled(t, "GenerateAccessToken", identity.ID)
	})
}

func TestTokenService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store := memory.NewIdentityRepository()
		identity := seedIdentity(t, store, model.StageCompleted, true)

		manager := &mocks.TokenManager{}
		manager.On("ParseAccessToken", "access").Return(identity.ID, nil).Once()
		svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

		got, err := svc.Authenticate(ctx, "access")
		require.NoError(t, err)
		assert.Equal(t, identity.ID, got.ID)
	})

	t.Run("expired token", func(t *testing.T) {
		manager := &mocks.TokenManager{}
		manager.On("ParseAccessToken", "old").Return(uuid.Nil, model.ErrTokenExpired).Once()
		svc := NewTokenService(manager, memory.NewIdentityRepository(), testutil.MakeNoopLogger())

		_, err := svc.Authenticate(ctx, "old")
		appErr := requireAppError(t, err, apperrors.CodeInvalidSession)
		assert.Equal(t, 401, appErr.HTTPStatus())
	})

	t.Run("inactive identity", func(t *testing.T) {
		store := memory.NewIdentityRepository()
		identity := seedIdentity(t, store, model.StageCompleted, false)

		manager := &mocks.TokenManager{}
		manager.On("ParseAccessToken", "access").Return(identity.ID, nil).Once()
		svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

		_, err := svc.Authenticate(ctx, "access")
		requireAppError(t, err, apperrors.CodeInvalidSession)
	})
}
