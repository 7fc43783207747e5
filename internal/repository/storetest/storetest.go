// Package storetest holds the behaviour every model.IdentityStore must share.
// Each repository runs it against its own backend.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/model"
)

// Run executes the identity store contract. newStore must return a store
// usable by a single subtest; stores may be shared as long as records created
// by different subtests do not collide.
func Run(t *testing.T, newStore func(t *testing.T) model.IdentityStore) {
	t.Run("create and get", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("duplicate contact", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("find by contact", func(t *testing.T) { testFindByContact(t, newStore(t)) })
	t.Run("advance stage", func(t *testing.T) { testAdvanceStage(t, newStore(t)) })
	t.Run("reenter", func(t *testing.T) { testReenter(t, newStore(t)) })
	t.Run("verification", func(t *testing.T) { testVerification(t, newStore(t)) })
	t.Run("lockout", func(t *testing.T) { testLockout(t, newStore(t)) })
	t.Run("reset token", func(t *testing.T) { testResetToken(t, newStore(t)) })
}

func personal() model.PersonalInfo {
	tag := uuid.NewString()[:8]
	return model.PersonalInfo{
		Name:        "Test " + tag,
		Email:       tag + "@example.com",
		Phone:       "+1555" + tag,
		DateOfBirth: "1990-01-01",
		Gender:      "female",
	}
}

func create(t *testing.T, s model.IdentityStore, stage model.Stage) model.Identity {
	t.Helper()
	identity, err := s.Create(context.Background(), model.Identity{
		Kind:     model.KindIndividual,
		Stage:    stage,
		Personal: personal(),
	})
	require.NoError(t, err)
	return identity
}

func testCreateAndGet(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	p := personal()

	saved, err := s.Create(ctx, model.Identity{
		Kind:           model.KindIndividual,
		Stage:          model.StageMedicalHistory,
		Personal:       p,
		StagedPayloads: map[model.Stage]json.RawMessage{model.StagePersonalInfo: json.RawMessage(`{"name":"x"}`)},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, model.StageMedicalHistory, saved.Stage)
	assert.Equal(t, p, saved.Personal)
	assert.JSONEq(t, `{"name":"x"}`, string(saved.StagedPayloads[model.StagePersonalInfo]))

	byID, err := s.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Email, byID.Personal.Email)

	byEmail, err := s.GetByEmail(ctx, p.Email)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byEmail.ID)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.GetByEmail(ctx, "missing-"+p.Email)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testDuplicate(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	existing := create(t, s, model.StageMedicalHistory)

	sameEmail := personal()
	sameEmail.Email = existing.Personal.Email
	_, err := s.Create(ctx, model.Identity{Kind: model.KindIndividual, Stage: model.StageMedicalHistory, Personal: sameEmail})
	assert.ErrorIs(t, err, model.ErrDuplicate)

	samePhone := personal()
	samePhone.Phone = existing.Personal.Phone
	_, err = s.Create(ctx, model.Identity{Kind: model.KindIndividual, Stage: model.StageMedicalHistory, Personal: samePhone})
	assert.ErrorIs(t, err, model.ErrDuplicate)
}

func testFindByContact(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	a := create(t, s, model.StageMedicalHistory)
	b := create(t, s, model.StageMedicalHistory)

	got, err := s.FindByContact(ctx, b.Personal.Email, a.Personal.Phone)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID, "email match wins over phone match")

	got, err = s.FindByContact(ctx, "nobody-"+a.Personal.Email, a.Personal.Phone)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.FindByContact(ctx, "nobody-"+a.Personal.Email, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testAdvanceStage(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	identity := create(t, s, model.StageMedicalHistory)

	medical := &model.MedicalHistory{
		Conditions:  []string{"asthma"},
		Medications: []string{},
		Allergies:   []string{},
		Exercise:    model.Habits{Items: []string{"yoga"}, Details: map[string]string{}},
		Lifestyle:   model.Habits{Items: []string{}, Details: map[string]string{"sleep": "7h"}},
	}
	advanced, err := s.AdvanceStage(ctx, identity.ID, model.StageMedicalHistory, model.StagePatch{
		Submitted:    model.StageMedicalHistory,
		To:           model.StageAssessment,
		StagePayload: json.RawMessage(`{"conditions":["asthma"]}`),
		Medical:      medical,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageAssessment, advanced.Stage)
	require.NotNil(t, advanced.Medical)
	assert.Equal(t, []string{"asthma"}, advanced.Medical.Conditions)
	assert.Equal(t, "7h", advanced.Medical.Lifestyle.Details["sleep"])
	assert.Contains(t, advanced.StagedPayloads, model.StageMedicalHistory)

	_, err = s.AdvanceStage(ctx, identity.ID, model.StageMedicalHistory, model.StagePatch{To: model.StageAssessment})
	assert.ErrorIs(t, err, model.ErrConditionFailed, "stale from stage")

	_, err = s.AdvanceStage(ctx, uuid.New(), model.StageMedicalHistory, model.StagePatch{To: model.StageAssessment})
	assert.ErrorIs(t, err, model.ErrNotFound)

	hash := "hash"
	withPassword, err := s.AdvanceStage(ctx, identity.ID, model.StageAssessment, model.StagePatch{
		To:           model.StageCredentialSetup,
		PasswordHash: &hash,
	})
	require.NoError(t, err)
	assert.Equal(t, "hash", withPassword.PasswordHash)
	require.NotNil(t, withPassword.Medical, "fields absent from the patch are kept")
}

func testReenter(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	identity := create(t, s, model.StageMedicalHistory)
	_, err := s.AdvanceStage(ctx, identity.ID, model.StageMedicalHistory, model.StagePatch{
		Submitted:    model.StageMedicalHistory,
		To:           model.StageAssessment,
		StagePayload: json.RawMessage(`{}`),
		Medical:      &model.MedicalHistory{Conditions: []string{"none"}},
	})
	require.NoError(t, err)
	locked, err := s.RecordLoginFailure(ctx, identity.ID, model.LockoutPolicy{
		Threshold: 1,
		Duration:  30 * time.Minute,
		Now:       time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, locked.LockedUntil)

	p := identity.Personal
	p.Name = "Renamed"
	reentered, err := s.Reenter(ctx, identity.ID, model.KindIndividual, model.StagePatch{
		Submitted:    model.StagePersonalInfo,
		To:           model.StageMedicalHistory,
		StagePayload: json.RawMessage(`{"name":"Renamed"}`),
		Personal:     &p,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageMedicalHistory, reentered.Stage)
	assert.Equal(t, "Renamed", reentered.Personal.Name)
	assert.Nil(t, reentered.Medical)
	assert.Len(t, reentered.StagedPayloads, 1)
	assert.Contains(t, reentered.StagedPayloads, model.StagePersonalInfo)
	assert.Zero(t, reentered.FailedAttempts)
	assert.Nil(t, reentered.LockedUntil, "restarting drops a lock from earlier failed logins")

	_, err = s.Reenter(ctx, identity.ID, model.KindOrganization, model.StagePatch{
		Submitted: model.StagePersonalInfo,
		To:        model.StageMedicalHistory,
		Personal:  &p,
	})
	assert.ErrorIs(t, err, model.ErrConditionFailed, "kind mismatch")

	other := create(t, s, model.StageMedicalHistory)
	stolen := other.Personal
	stolen.Phone = identity.Personal.Phone
	_, err = s.Reenter(ctx, other.ID, model.KindIndividual, model.StagePatch{
		Submitted: model.StagePersonalInfo,
		To:        model.StageMedicalHistory,
		Personal:  &stolen,
	})
	assert.ErrorIs(t, err, model.ErrDuplicate)

	done := create(t, s, model.StageCompleted)
	dp := done.Personal
	_, err = s.Reenter(ctx, done.ID, model.KindIndividual, model.StagePatch{
		Submitted: model.StagePersonalInfo,
		To:        model.StageMedicalHistory,
		Personal:  &dp,
	})
	assert.ErrorIs(t, err, model.ErrConditionFailed, "completed records are final")
}

func testVerification(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	expires := now.Add(10 * time.Minute)

	identity, err := s.Create(ctx, model.Identity{
		Kind:           model.KindIndividual,
		Stage:          model.StageContactVerification,
		Personal:       personal(),
		StagedPayloads: map[model.Stage]json.RawMessage{model.StagePersonalInfo: json.RawMessage(`{}`)},
		Verification: model.VerificationCode{
			Code:       "123456",
			ExpiresAt:  &expires,
			Attempts:   1,
			LastSentAt: &now,
		},
	})
	require.NoError(t, err)

	mismatched, err := s.RecordCodeMismatch(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, mismatched.Verification.Attempts)

	resent := model.VerificationCode{Code: "654321", ExpiresAt: &expires, LastSentAt: &now}
	_, err = s.ResendCode(ctx, identity.ID, resent, model.ResendGuard{LastSentBefore: now.Add(-time.Minute), MaxAttempts: 5})
	assert.ErrorIs(t, err, model.ErrConditionFailed, "sent too recently")

	_, err = s.ResendCode(ctx, identity.ID, resent, model.ResendGuard{LastSentBefore: now, MaxAttempts: 2})
	assert.ErrorIs(t, err, model.ErrConditionFailed, "attempts exhausted")

	later := now.Add(2 * time.Minute)
	resent.LastSentAt = &later
	updated, err := s.ResendCode(ctx, identity.ID, resent, model.ResendGuard{LastSentBefore: now, MaxAttempts: 5})
	require.NoError(t, err)
	assert.Equal(t, "654321", updated.Verification.Code)
	assert.Equal(t, 3, updated.Verification.Attempts)

	_, err = s.CompleteVerification(ctx, identity.ID, "123456", now)
	assert.ErrorIs(t, err, model.ErrConditionFailed, "replaced code")

	_, err = s.CompleteVerification(ctx, identity.ID, "654321", expires.Add(time.Second))
	assert.ErrorIs(t, err, model.ErrConditionFailed, "expired code")

	completed, err := s.CompleteVerification(ctx, identity.ID, "654321", now)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, completed.Stage)
	assert.True(t, completed.Active)
	assert.True(t, completed.ContactVerified)
	assert.False(t, completed.Verification.Pending())
	assert.Empty(t, completed.StagedPayloads)

	_, err = s.RecordCodeMismatch(ctx, identity.ID)
	assert.ErrorIs(t, err, model.ErrConditionFailed)
	_, err = s.CompleteVerification(ctx, identity.ID, "654321", now)
	assert.ErrorIs(t, err, model.ErrConditionFailed)
}

func testLockout(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	identity := create(t, s, model.StageCompleted)
	now := time.Now().UTC().Truncate(time.Second)
	policy := model.LockoutPolicy{Now: now, Threshold: 3, Duration: 30 * time.Minute}

	var got model.Identity
	var err error
	for i := 1; i <= 2; i++ {
		got, err = s.RecordLoginFailure(ctx, identity.ID, policy)
		require.NoError(t, err)
		assert.Equal(t, i, got.FailedAttempts)
		assert.Nil(t, got.LockedUntil)
	}

	got, err = s.RecordLoginFailure(ctx, identity.ID, policy)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FailedAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.WithinDuration(t, now.Add(30*time.Minute), *got.LockedUntil, time.Millisecond)
	lockedUntil := *got.LockedUntil

	policy.Now = now.Add(time.Minute)
	got, err = s.RecordLoginFailure(ctx, identity.ID, policy)
	require.NoError(t, err)
	assert.Equal(t, 4, got.FailedAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.WithinDuration(t, lockedUntil, *got.LockedUntil, time.Millisecond, "active lock is not extended")

	policy.Now = now.Add(31 * time.Minute)
	got, err = s.RecordLoginFailure(ctx, identity.ID, policy)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FailedAttempts, "expired lock restarts the count")
	assert.Nil(t, got.LockedUntil)

	require.NoError(t, s.RecordLoginSuccess(ctx, identity.ID))
	got, err = s.GetByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedAttempts)

	_, err = s.RecordLoginFailure(ctx, uuid.New(), policy)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.RecordLoginSuccess(ctx, uuid.New()), model.ErrNotFound)
}

func testResetToken(t *testing.T, s model.IdentityStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	pending := create(t, s, model.StageAssessment)
	done := create(t, s, model.StageCompleted)
	hash := "reset-" + uuid.NewString()

	assert.ErrorIs(t, s.SetResetToken(ctx, pending.ID, hash, now.Add(time.Hour)), model.ErrConditionFailed)
	assert.ErrorIs(t, s.SetResetToken(ctx, uuid.New(), hash, now.Add(time.Hour)), model.ErrNotFound)
	require.NoError(t, s.SetResetToken(ctx, done.ID, hash, now.Add(time.Hour)))

	_, err := s.RecordLoginFailure(ctx, done.ID, model.LockoutPolicy{Now: now, Threshold: 1, Duration: time.Hour})
	require.NoError(t, err)

	_, err = s.ConsumeResetToken(ctx, "other-"+hash, "new-hash", now)
	assert.ErrorIs(t, err, model.ErrConditionFailed)

	_, err = s.ConsumeResetToken(ctx, hash, "new-hash", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, model.ErrConditionFailed, "expired token")

	consumed, err := s.ConsumeResetToken(ctx, hash, "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, done.ID, consumed.ID)
	assert.Equal(t, "new-hash", consumed.PasswordHash)
	assert.Empty(t, consumed.ResetTokenHash)
	assert.Zero(t, consumed.FailedAttempts)
	assert.Nil(t, consumed.LockedUntil)

	_, err = s.ConsumeResetToken(ctx, hash, "again", now)
	assert.ErrorIs(t, err, model.ErrConditionFailed, "single use")
}
