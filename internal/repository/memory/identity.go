// Package memory provides an in-process IdentityStore for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/prakriti-server/internal/model"
)

var _ model.IdentityStore = (*IdentityRepository)(nil)

// IdentityRepository keeps identities in a map guarded by a mutex. Each method
// holds the lock for its whole check-and-write, matching the conditional
// updates of the Postgres repository.
type IdentityRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.Identity
	now     func() time.Time
}

func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		records: make(map[uuid.UUID]*model.Identity),
		now:     time.Now,
	}
}

func (r *IdentityRepository) GetByID(_ context.Context, id uuid.UUID) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	return clone(rec), nil
}

func (r *IdentityRepository) GetByEmail(_ context.Context, email string) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Personal.Email == email {
			return clone(rec), nil
		}
	}
	return model.Identity{}, model.ErrNotFound
}

func (r *IdentityRepository) FindByContact(_ context.Context, email, phone string) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var byPhone *model.Identity
	for _, rec := range r.records {
		if email != "" && rec.Personal.Email == email {
			return clone(rec), nil
		}
		if phone != "" && rec.Personal.Phone == phone {
			byPhone = rec
		}
	}
	if byPhone != nil {
		return clone(byPhone), nil
	}
	return model.Identity{}, model.ErrNotFound
}

func (r *IdentityRepository) Create(_ context.Context, identity model.Identity) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	if r.taken(identity.ID, identity.Personal) {
		return model.Identity{}, model.ErrDuplicate
	}

	now := r.now()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	rec := clone(&identity)
	r.records[identity.ID] = &rec

	return clone(&rec), nil
}

func (r *IdentityRepository) Reenter(_ context.Context, id uuid.UUID, kind model.IdentityKind, patch model.StagePatch) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	if rec.Stage.Terminal() || rec.Kind != kind {
		return model.Identity{}, model.ErrConditionFailed
	}
	if patch.Personal != nil && r.taken(id, *patch.Personal) {
		return model.Identity{}, model.ErrDuplicate
	}

	rec.Medical = nil
	rec.Assessment = nil
	rec.Profile = nil
	rec.PasswordHash = ""
	rec.Verification = model.VerificationCode{}
	rec.StagedPayloads = nil
	rec.FailedAttempts = 0
	rec.LockedUntil = nil
	apply(rec, patch)
	rec.UpdatedAt = r.now()

	return clone(rec), nil
}

func (r *IdentityRepository) AdvanceStage(_ context.Context, id uuid.UUID, from model.Stage, patch model.StagePatch) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	if rec.Stage != from {
		return model.Identity{}, model.ErrConditionFailed
	}
	if patch.Personal != nil && r.taken(id, *patch.Personal) {
		return model.Identity{}, model.ErrDuplicate
	}

	apply(rec, patch)
	rec.UpdatedAt = r.now()

	return clone(rec), nil
}

func (r *IdentityRepository) RecordCodeMismatch(_ context.Context, id uuid.UUID) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	if rec.Stage != model.StageContactVerification || !rec.Verification.Pending() {
		return model.Identity{}, model.ErrConditionFailed
	}

	rec.Verification.Attempts++
	rec.UpdatedAt = r.now()

	return clone(rec), nil
}

func (r *IdentityRepository) ResendCode(_ context.Context, id uuid.UUID, code model.VerificationCode, guard model.ResendGuard) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	v := rec.Verification
	if rec.Stage != model.StageContactVerification ||
		(v.LastSentAt != nil && v.LastSentAt.After(guard.LastSentBefore)) ||
		v.Attempts >= guard.MaxAttempts {
		return model.Identity{}, model.ErrConditionFailed
	}

	rec.Verification = model.VerificationCode{
		Code:       code.Code,
		ExpiresAt:  code.ExpiresAt,
		Attempts:   v.Attempts + 1,
		LastSentAt: code.LastSentAt,
	}
	rec.UpdatedAt = r.now()

	return clone(rec), nil
}

func (r *IdentityRepository) CompleteVerification(_ context.Context, id uuid.UUID, code string, now time.Time) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	v := rec.Verification
	if rec.Stage != model.StageContactVerification || !v.Pending() || v.Code != code ||
		v.ExpiresAt == nil || now.After(*v.ExpiresAt) {
		return model.Identity{}, model.ErrConditionFailed
	}

	rec.Stage = model.StageCompleted
	rec.Active = true
	rec.ContactVerified = true
	rec.Verification = model.VerificationCode{}
	rec.StagedPayloads = nil
	rec.UpdatedAt = r.now()

	return clone(rec), nil
}

func (r *IdentityRepository) RecordLoginFailure(_ context.Context, id uuid.UUID, policy model.LockoutPolicy) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}

	switch {
	case rec.LockedUntil != nil && !rec.LockedUntil.After(policy.Now):
		rec.LockedUntil = nil
		rec.FailedAttempts = 1
	default:
		rec.FailedAttempts++
		if rec.LockedUntil == nil && rec.FailedAttempts >= policy.Threshold {
			until := policy.Now.Add(policy.Duration)
			rec.LockedUntil = &until
		}
	}
	rec.UpdatedAt = r.now()

	return clone(rec), nil
}

func (r *IdentityRepository) RecordLoginSuccess(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.ErrNotFound
	}
	rec.FailedAttempts = 0
	rec.LockedUntil = nil
	rec.UpdatedAt = r.now()
	return nil
}

func (r *IdentityRepository) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return model.ErrNotFound
	}
	if !rec.Stage.Terminal() {
		return model.ErrConditionFailed
	}
	rec.ResetTokenHash = tokenHash
	rec.ResetExpiresAt = &expiresAt
	rec.UpdatedAt = r.now()
	return nil
}

func (r *IdentityRepository) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tokenHash == "" {
		return model.Identity{}, model.ErrConditionFailed
	}
	for _, rec := range r.records {
		if rec.ResetTokenHash != tokenHash || rec.ResetExpiresAt == nil || !rec.ResetExpiresAt.After(now) {
			continue
		}
		rec.PasswordHash = passwordHash
		rec.ResetTokenHash = ""
		rec.ResetExpiresAt = nil
		rec.FailedAttempts = 0
		rec.LockedUntil = nil
		rec.UpdatedAt = r.now()
		return clone(rec), nil
	}
	return model.Identity{}, model.ErrConditionFailed
}

// taken reports whether another record holds the email or phone of p.
func (r *IdentityRepository) taken(id uuid.UUID, p model.PersonalInfo) bool {
	for otherID, rec := range r.records {
		if otherID == id {
			continue
		}
		if p.Email != "" && rec.Personal.Email == p.Email {
			return true
		}
		if p.Phone != "" && rec.Personal.Phone == p.Phone {
			return true
		}
	}
	return false
}

func apply(rec *model.Identity, patch model.StagePatch) {
	if patch.Personal != nil {
		rec.Personal = *patch.Personal
	}
	if patch.Organization != nil {
		o := *patch.Organization
		rec.Organization = &o
	}
	if patch.Medical != nil {
		m := *patch.Medical
		rec.Medical = &m
	}
	if patch.Assessment != nil {
		rec.Assessment = append([]model.AssessmentAnswer(nil), patch.Assessment...)
	}
	if patch.Profile != nil {
		p := *patch.Profile
		rec.Profile = &p
	}
	if patch.PasswordHash != nil {
		rec.PasswordHash = *patch.PasswordHash
	}
	if patch.Verification != nil {
		rec.Verification = *patch.Verification
	}
	if patch.StagePayload != nil {
		if rec.StagedPayloads == nil {
			rec.StagedPayloads = make(map[model.Stage]json.RawMessage)
		}
		rec.StagedPayloads[patch.Submitted] = append(json.RawMessage(nil), patch.StagePayload...)
	}
	if patch.To != "" {
		rec.Stage = patch.To
	}
}

// clone returns a copy that shares no mutable memory with rec.
func clone(rec *model.Identity) model.Identity {
	out := *rec
	if rec.Organization != nil {
		o := *rec.Organization
		out.Organization = &o
	}
	if rec.Medical != nil {
		m := *rec.Medical
		out.Medical = &m
	}
	if rec.Assessment != nil {
		out.Assessment = append([]model.AssessmentAnswer(nil), rec.Assessment...)
	}
	if rec.Profile != nil {
		p := *rec.Profile
		out.Profile = &p
	}
	if rec.StagedPayloads != nil {
		out.StagedPayloads = make(map[model.Stage]json.RawMessage, len(rec.StagedPayloads))
		for k, v := range rec.StagedPayloads {
			out.StagedPayloads[k] = append(json.RawMessage(nil), v...)
		}
	}
	out.LockedUntil = copyTime(rec.LockedUntil)
	out.ResetExpiresAt = copyTime(rec.ResetExpiresAt)
	out.Verification.ExpiresAt = copyTime(rec.Verification.ExpiresAt)
	out.Verification.LastSentAt = copyTime(rec.Verification.LastSentAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
