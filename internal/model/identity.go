package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdentityKind distinguishes end-users from organizational accounts.
type IdentityKind string

const (
	// KindIndividual is an end-user going through the staged registration.
	KindIndividual IdentityKind = "individual"
	// KindOrganization is an organizational account registered in one step.
	KindOrganization IdentityKind = "organization"
)

// IdentityStore defines persistence operations for identity records.
//
// Every method that changes a record is a single conditional update keyed by
// the identity id. When the condition does not hold the store returns
// ErrConditionFailed and leaves the record untouched.
type IdentityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (Identity, error)
	GetByEmail(ctx context.Context, email string) (Identity, error)
	// FindByContact returns the record holding email or phone, preferring an email match.
	FindByContact(ctx context.Context, email, phone string) (Identity, error)
	Create(ctx context.Context, identity Identity) (Identity, error)

	// Reenter overwrites a non-terminal record of the given kind with a fresh
	// first submission: data of later stages, the password and any pending
	// code are dropped unless the patch sets them again.
	Reenter(ctx context.Context, id uuid.UUID, kind IdentityKind, patch StagePatch) (Identity, error)
	// AdvanceStage applies patch only while the record is at stage from.
	AdvanceStage(ctx context.Context, id uuid.UUID, from Stage, patch StagePatch) (Identity, error)

	RecordCodeMismatch(ctx context.Context, id uuid.UUID) (Identity, error)
	ResendCode(ctx context.Context, id uuid.UUID, code VerificationCode, guard ResendGuard) (Identity, error)
	CompleteVerification(ctx context.Context, id uuid.UUID, code string, now time.Time) (Identity, error)

	RecordLoginFailure(ctx context.Context, id uuid.UUID, policy LockoutPolicy) (Identity, error)
	RecordLoginSuccess(ctx context.Context, id uuid.UUID) error

	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (Identity, error)
}

// Identity is a stored identity record.
type Identity struct {
	ID    uuid.UUID
	Kind  IdentityKind
	Stage Stage

	Personal     PersonalInfo
	Organization *OrganizationInfo
	Medical      *MedicalHistory
	Assessment   []AssessmentAnswer
	Profile      *ConstitutionProfile

	PasswordHash    string
	Active          bool
	ContactVerified bool

	// StagedPayloads keeps the raw submission of every stage until verification completes.
	StagedPayloads map[Stage]json.RawMessage

	FailedAttempts int
	LockedUntil    *time.Time

	Verification VerificationCode

	ResetTokenHash string
	ResetExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether a lock window is active at now.
func (i Identity) IsLocked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}

// PersonalInfo holds contact and demographic fields of an identity.
type PersonalInfo struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

// Contact locates a registration by email or by phone. An email match wins
// when both are given.
type Contact struct {
	Email string
	Phone string
}

// OrganizationInfo holds fields specific to organizational accounts.
type OrganizationInfo struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
}

// MedicalHistory is the canonical medical-history stage payload.
type MedicalHistory struct {
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
	Exercise    Habits   `json:"exercise"`
	Lifestyle   Habits   `json:"lifestyle"`
}

// Habits is the single internal shape for loosely typed exercise and lifestyle input.
type Habits struct {
	Items   []string          `json:"items"`
	Details map[string]string `json:"details"`
}

// AssessmentAnswer is one questionnaire entry. A nil weight counts as 1.
type AssessmentAnswer struct {
	QuestionID string   `json:"questionId,omitempty"`
	Category   Category `json:"category"`
	Weight     *float64 `json:"weight,omitempty"`
}

// VerificationCode is the transient one-time code state of a record.
type VerificationCode struct {
	Code       string
	ExpiresAt  *time.Time
	Attempts   int
	LastSentAt *time.Time
}

// Pending reports whether a code is currently stored.
func (v VerificationCode) Pending() bool {
	return v.Code != ""
}

// StagePatch carries the fields a stage submission writes. Nil fields are left unchanged.
type StagePatch struct {
	// Submitted is the stage the payload was sent for; To is the stage the record moves to.
	Submitted    Stage
	To           Stage
	StagePayload json.RawMessage

	Personal     *PersonalInfo
	Organization *OrganizationInfo
	Medical      *MedicalHistory
	Assessment   []AssessmentAnswer
	Profile      *ConstitutionProfile
	PasswordHash *string
	Verification *VerificationCode
}

// ResendGuard is the condition a resend must satisfy to be written.
type ResendGuard struct {
	// LastSentBefore is the latest lastCodeSentAt that still allows a resend.
	LastSentBefore time.Time
	MaxAttempts    int
}

// LockoutPolicy parameterizes RecordLoginFailure.
type LockoutPolicy struct {
	Now       time.Time
	Threshold int
	Duration  time.Duration
}
