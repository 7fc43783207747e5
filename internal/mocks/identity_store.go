package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/prakriti-server/internal/model"
)

var _ model.IdentityStore = (*IdentityStore)(nil)

// IdentityStore is a testify mock of model.IdentityStore.
type IdentityStore struct {
	mock.Mock
}

func identityResult(ret mock.Arguments) (model.Identity, error) {
	return ret.Get(0).(model.Identity), ret.Error(1)
}

func (m *IdentityStore) GetByID(ctx context.Context, id uuid.UUID) (model.Identity, error) {
	return identityResult(m.Called(ctx, id))
}

func (m *IdentityStore) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	return identityResult(m.Called(ctx, email))
}

func (m *IdentityStore) FindByContact(ctx context.Context, email, phone string) (model.Identity, error) {
	return identityResult(m.Called(ctx, email, phone))
}

func (m *IdentityStore) Create(ctx context.Context, identity model.Identity) (model.Identity, error) {
	return identityResult(m.Called(ctx, identity))
}

func (m *IdentityStore) Reenter(ctx context.Context, id uuid.UUID, kind model.IdentityKind, patch model.StagePatch) (model.Identity, error) {
	return identityResult(m.Called(ctx, id, kind, patch))
}

func (m *IdentityStore) AdvanceStage(ctx context.Context, id uuid.UUID, from model.Stage, patch model.StagePatch) (model.Identity, error) {
	return identityResult(m.Called(ctx, id, from, patch))
}

func (m *IdentityStore) RecordCodeMismatch(ctx context.Context, id uuid.UUID) (model.Identity, error) {
	return identityResult(m.Called(ctx, id))
}

func (m *IdentityStore) ResendCode(ctx context.Context, id uuid.UUID, code model.VerificationCode, guard model.ResendGuard) (model.Identity, error) {
	return identityResult(m.Called(ctx, id, code, guard))
}

func (m *IdentityStore) CompleteVerification(ctx context.Context, id uuid.UUID, code string, now time.Time) (model.Identity, error) {
	return identityResult(m.Called(ctx, id, code, now))
}

func (m *IdentityStore) RecordLoginFailure(ctx context.Context, id uuid.UUID, policy model.LockoutPolicy) (model.Identity, error) {
	return identityResult(m.Called(ctx, id, policy))
}

func (m *IdentityStore) RecordLoginSuccess(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *IdentityStore) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

func (m *IdentityStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.Identity, error) {
	return identityResult(m.Called(ctx, tokenHash, passwordHash, now))
}
