package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/prakriti-server/internal/metrics"
	"github.com/dtroode/prakriti-server/internal/mocks"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/password"
	"github.com/dtroode/prakriti-server/internal/repository/memory"
	"github.com/dtroode/prakriti-server/internal/testutil"
	"github.com/dtroode/prakriti-server/internal/token"
)

var testOTPPolicy = OTPPolicy{
	TTL:             10 * time.Minute,
	ResendInterval:  60 * time.Second,
	MaxResends:      5,
	DisplayAttempts: 3,
	DeliveryTimeout: time.Second,
}

// harness wires every service over an in-memory store and a shared clock.
type harness struct {
	store   *memory.IdentityRepository
	clock   *testutil.Clock
	codes   *mocks.CodeSender
	notes   *mocks.NotificationSender
	storage *mocks.Storage
	metrics *metrics.Metrics
	jwt     *token.JWT

	tokens  *TokenService
	archive *Archive
	otp     *OTP
	reg     *Registration
	lockout *Lockout
	auth    *Auth
	reset   *PasswordReset
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   memory.NewIdentityRepository(),
		clock:   testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		codes:   &mocks.CodeSender{},
		notes:   &mocks.NotificationSender{},
		storage: &mocks.Storage{},
		metrics: metrics.New(),
		jwt:     token.NewJWT("test-secret", 15*time.Minute, 7*24*time.Hour),
	}
	h.codes.On("SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.notes.On("SendNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	log := testutil.MakeNoopLogger()
	hasher := password.NewHasher(bcrypt.MinCost)

	h.tokens = NewTokenService(h.jwt, h.store, log)
	h.archive = NewArchive(h.storage, h.metrics, log)
	h.archive.now = h.clock.Now
	h.otp = NewOTP(h.store, h.codes, h.notes, h.tokens, h.archive, h.metrics, log, testOTPPolicy)
	h.otp.now = h.clock.Now
	h.reg = NewRegistration(h.store, hasher, h.otp, h.metrics, log)
	h.reg.now = h.clock.Now
	h.lockout = NewLockout(h.store, LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute}, h.metrics, log)
	h.lockout.now = h.clock.Now
	h.auth = NewAuth(h.store, hasher, h.lockout, h.tokens, h.metrics, log)
	h.reset = NewPasswordReset(h.store, hasher, h.notes, h.metrics, log, ResetPolicy{
		TTL:             time.Hour,
		LinkURL:         "https://app.example.com/reset-password",
		DeliveryTimeout: time.Second,
	})
	h.reset.now = h.clock.Now

	return h
}

func testPersonal(email, phone string) model.PersonalInfo {
	return model.PersonalInfo{
		Name:        "Asha Rao",
		Email:       email,
		Phone:       phone,
		DateOfBirth: "1992-04-12",
		Gender:      "female",
	}
}

func byEmail(email string) model.Contact {
	return model.Contact{Email: email}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// registerUntil walks a new individual through the stages up to and
// including stop and returns the last result.
func (h *harness) registerUntil(t *testing.T, email, phone string, stop model.Stage) StageResult {
	t.Helper()
	ctx := context.Background()

	info := testPersonal(email, phone)
	res, err := h.reg.SubmitPersonalInfo(ctx, info, rawJSON(t, info))
	require.NoError(t, err)
	if stop == model.StagePersonalInfo {
		return res
	}

	res, err = h.reg.SubmitMedicalHistory(ctx, byEmail(email), model.MedicalHistory{
		Conditions: []string{"migraine"},
		Exercise:   model.Habits{Items: []string{"yoga"}},
	}, json.RawMessage(`{"conditions":["migraine"]}`))
	require.NoError(t, err)
	if stop == model.StageMedicalHistory {
		return res
	}

	res, err = h.reg.SubmitAssessment(ctx, byEmail(email), []model.AssessmentAnswer{
		{Category: model.CategoryVata},
		{Category: model.CategoryPitta},
		{Category: model.CategoryVata},
	}, json.RawMessage(`{"answers":[]}`))
	require.NoError(t, err)
	if stop == model.StageAssessment {
		return res
	}

	res, err = h.reg.SubmitCredentials(ctx, byEmail(email), "s3cret-pass")
	require.NoError(t, err)
	return res
}

// pendingCode reads the code currently stored for email.
func (h *harness) pendingCode(t *testing.T, email string) string {
	t.Helper()
	identity, err := h.store.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return identity.Verification.Code
}

// registerCompleted runs the whole registration and verification for email.
func (h *harness) registerCompleted(t *testing.T, email, phone string) Session {
	t.Helper()
	h.registerUntil(t, email, phone, model.StageCredentialSetup)
	session, err := h.otp.Verify(context.Background(), byEmail(email), h.pendingCode(t, email))
	require.NoError(t, err)
	return session
}
