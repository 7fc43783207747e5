package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/scoring"
)

// OrganizationInput is a single-step organization registration.
type OrganizationInput struct {
	Organization model.OrganizationInfo
	Email        string
	Phone        string
	Password     string
}

// organizationPayload is the staged form of OrganizationInput without the password.
type organizationPayload struct {
	OrganizationName   string `json:"organizationName"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Email              string `json:"email"`
	Phone              string `json:"phone,omitempty"`
}

// credentialsPayload is what the credential-setup stage keeps of its submission.
var credentialsPayload = json.RawMessage(`{"passwordSet":true}`)

// Registration drives identities through the registration stages.
type Registration struct {
	store   model.IdentityStore
	hasher  model.PasswordHasher
	otp     *OTP
	metrics model.MetricsRecorder
	logger  *logger.Logger
	now     func() time.Time
}

func NewRegistration(
	store model.IdentityStore,
	hasher model.PasswordHasher,
	otp *OTP,
	metrics model.MetricsRecorder,
	logger *logger.Logger,
) *Registration {
	return &Registration{
		store:   store,
		hasher:  hasher,
		otp:     otp,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SubmitPersonalInfo starts a registration, or restarts a non-terminal one
// matched by email or phone.
func (r *Registration) SubmitPersonalInfo(ctx context.Context, info model.PersonalInfo, raw json.RawMessage) (StageResult, error) {
	result, err := r.submitPersonalInfo(ctx, info, raw)
	r.metrics.StageSubmitted(model.StagePersonalInfo, outcome(err))
	return result, err
}

func (r *Registration) submitPersonalInfo(ctx context.Context, info model.PersonalInfo, raw json.RawMessage) (StageResult, error) {
	existing, found, err := r.findByContact(ctx, info.Email, info.Phone)
	if err != nil {
		return StageResult{}, err
	}

	if !found {
		created, err := r.store.Create(ctx, model.Identity{
			Kind:           model.KindIndividual,
			Stage:          model.StagePersonalInfo.Next(),
			Personal:       info,
			StagedPayloads: map[model.Stage]json.RawMessage{model.StagePersonalInfo: raw},
		})
		if err != nil {
			return StageResult{}, r.storeError(err, "create identity")
		}
		r.logger.Info("Registration service: registration started",
			"identity_id", created.ID)
		return newStageResult(created), nil
	}

	if existing.Stage.Terminal() || existing.Kind != model.KindIndividual {
		r.logger.Info("Registration service: contact already registered",
			"identity_id", existing.ID,
			"stage", existing.Stage)
		return StageResult{}, apperrors.NewErrDuplicateIdentity()
	}

	updated, err := r.store.Reenter(ctx, existing.ID, model.KindIndividual, model.StagePatch{
		Submitted:    model.StagePersonalInfo,
		To:           model.StagePersonalInfo.Next(),
		StagePayload: raw,
		Personal:     &info,
	})
	if err != nil {
		if errors.Is(err, model.ErrConditionFailed) {
			// The record completed or changed kind in the meantime.
			return StageResult{}, apperrors.NewErrDuplicateIdentity()
		}
		return StageResult{}, r.storeError(err, "reenter registration")
	}

	r.logger.Info("Registration service: registration restarted",
		"identity_id", updated.ID,
		"previous_stage", existing.Stage)
	return newStageResult(updated), nil
}

func (r *Registration) SubmitMedicalHistory(ctx context.Context, contact model.Contact, medical model.MedicalHistory, raw json.RawMessage) (StageResult, error) {
	result, err := r.advance(ctx, contact, model.StageMedicalHistory, model.StagePatch{
		StagePayload: raw,
		Medical:      &medical,
	})
	r.metrics.StageSubmitted(model.StageMedicalHistory, outcome(err))
	return result, err
}

// SubmitAssessment scores answers and stores them with the derived profile.
func (r *Registration) SubmitAssessment(ctx context.Context, contact model.Contact, answers []model.AssessmentAnswer, raw json.RawMessage) (StageResult, error) {
	if answers == nil {
		answers = []model.AssessmentAnswer{}
	}
	profile := scoring.Score(answers)

	result, err := r.advance(ctx, contact, model.StageAssessment, model.StagePatch{
		StagePayload: raw,
		Assessment:   answers,
		Profile:      &profile,
	})
	r.metrics.StageSubmitted(model.StageAssessment, outcome(err))
	return result, err
}

// SubmitCredentials commits the password hash and a verification code in
// one conditional update, then delivers the code.
func (r *Registration) SubmitCredentials(ctx context.Context, contact model.Contact, password string) (StageResult, error) {
	result, err := r.submitCredentials(ctx, contact, password)
	r.metrics.StageSubmitted(model.StageCredentialSetup, outcome(err))
	return result, err
}

func (r *Registration) submitCredentials(ctx context.Context, contact model.Contact, password string) (StageResult, error) {
	identity, err := r.current(ctx, contact, model.StageCredentialSetup)
	if err != nil {
		return StageResult{}, err
	}

	hash, code, err := r.secrets(password)
	if err != nil {
		return StageResult{}, err
	}

	updated, err := r.commit(ctx, identity, model.StageCredentialSetup, model.StagePatch{
		StagePayload: credentialsPayload,
		PasswordHash: &hash,
		Verification: &code,
	})
	if err != nil {
		return StageResult{}, err
	}
	r.metrics.CodeIssued(reasonRegistration)

	result := newStageResult(updated)
	d := r.otp.Deliver(ctx, updated, reasonRegistration)
	result.Delivery = &d
	return result, nil
}

// RegisterOrganization creates an organization record directly at
// contact-verification with its password set and a code issued.
func (r *Registration) RegisterOrganization(ctx context.Context, in OrganizationInput) (StageResult, error) {
	result, err := r.registerOrganization(ctx, in)
	r.metrics.StageSubmitted(model.StageCredentialSetup, outcome(err))
	return result, err
}

func (r *Registration) registerOrganization(ctx context.Context, in OrganizationInput) (StageResult, error) {
	existing, found, err := r.findByContact(ctx, in.Email, in.Phone)
	if err != nil {
		return StageResult{}, err
	}
	if found && (existing.Stage.Terminal() || existing.Kind != model.KindOrganization) {
		return StageResult{}, apperrors.NewErrDuplicateIdentity()
	}

	hash, code, err := r.secrets(in.Password)
	if err != nil {
		return StageResult{}, err
	}

	payload, err := json.Marshal(organizationPayload{
		OrganizationName:   in.Organization.Name,
		RegistrationNumber: in.Organization.RegistrationNumber,
		Email:              in.Email,
		Phone:              in.Phone,
	})
	if err != nil {
		return StageResult{}, fmt.Errorf("failed to encode organization payload: %w", err)
	}

	personal := model.PersonalInfo{Name: in.Organization.Name, Email: in.Email, Phone: in.Phone}
	org := in.Organization

	var saved model.Identity
	if !found {
		saved, err = r.store.Create(ctx, model.Identity{
			Kind:           model.KindOrganization,
			Stage:          model.StageContactVerification,
			Personal:       personal,
			Organization:   &org,
			PasswordHash:   hash,
			Verification:   code,
			StagedPayloads: map[model.Stage]json.RawMessage{model.StageCredentialSetup: payload},
		})
	} else {
		saved, err = r.store.Reenter(ctx, existing.ID, model.KindOrganization, model.StagePatch{
			Submitted:    model.StageCredentialSetup,
			To:           model.StageContactVerification,
			StagePayload: payload,
			Personal:     &personal,
			Organization: &org,
			PasswordHash: &hash,
			Verification: &code,
		})
	}
	if err != nil {
		if errors.Is(err, model.ErrConditionFailed) {
			return StageResult{}, apperrors.NewErrDuplicateIdentity()
		}
		return StageResult{}, r.storeError(err, "save organization")
	}

	r.metrics.CodeIssued(reasonRegistration)
	r.logger.Info("Registration service: organization registered",
		"identity_id", saved.ID,
		"reentered", found)

	result := newStageResult(saved)
	d := r.otp.Deliver(ctx, saved, reasonRegistration)
	result.Delivery = &d
	return result, nil
}

// advance applies patch to the record matching contact when it sits at stage.
func (r *Registration) advance(ctx context.Context, contact model.Contact, stage model.Stage, patch model.StagePatch) (StageResult, error) {
	identity, err := r.current(ctx, contact, stage)
	if err != nil {
		return StageResult{}, err
	}

	updated, err := r.commit(ctx, identity, stage, patch)
	if err != nil {
		return StageResult{}, err
	}
	return newStageResult(updated), nil
}

// current loads the record matching contact and checks it is at stage.
func (r *Registration) current(ctx context.Context, contact model.Contact, stage model.Stage) (model.Identity, error) {
	identity, err := r.store.FindByContact(ctx, contact.Email, contact.Phone)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Identity{}, apperrors.NewErrRecordNotFound()
		}
		return model.Identity{}, r.storeError(err, "get identity")
	}

	if identity.Stage != stage {
		return model.Identity{}, apperrors.NewErrStageMismatch(string(identity.Stage), string(stage))
	}
	return identity, nil
}

// commit moves identity from stage to the next one. Losing a race to
// another submission surfaces as a stage mismatch.
func (r *Registration) commit(ctx context.Context, identity model.Identity, stage model.Stage, patch model.StagePatch) (model.Identity, error) {
	patch.Submitted = stage
	patch.To = stage.Next()

	updated, err := r.store.AdvanceStage(ctx, identity.ID, stage, patch)
	if err == nil {
		r.logger.Info("Registration service: stage submitted",
			"identity_id", updated.ID,
			"stage", stage,
			"next_stage", updated.Stage)
		return updated, nil
	}

	if !errors.Is(err, model.ErrConditionFailed) {
		return model.Identity{}, r.storeError(err, "advance stage")
	}

	current, getErr := r.store.GetByID(ctx, identity.ID)
	if getErr != nil {
		return model.Identity{}, r.storeError(getErr, "get identity")
	}
	return model.Identity{}, apperrors.NewErrStageMismatch(string(current.Stage), string(stage))
}

func (r *Registration) findByContact(ctx context.Context, email, phone string) (model.Identity, bool, error) {
	identity, err := r.store.FindByContact(ctx, email, phone)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Identity{}, false, nil
		}
		return model.Identity{}, false, r.storeError(err, "find identity")
	}
	return identity, true, nil
}

// secrets hashes password and draws a fresh verification code.
func (r *Registration) secrets(password string) (string, model.VerificationCode, error) {
	hash, err := r.hasher.Hash(password)
	if err != nil {
		r.logger.Error("Registration service: failed to hash password",
			"error", err.Error())
		return "", model.VerificationCode{}, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := r.otp.newCode(r.now())
	if err != nil {
		r.logger.Error("Registration service: failed to generate code",
			"error", err.Error())
		return "", model.VerificationCode{}, err
	}
	return hash, code, nil
}

// storeError maps store sentinels to caller errors and wraps the rest.
func (r *Registration) storeError(err error, op string) error {
	switch {
	case errors.Is(err, model.ErrDuplicate):
		return apperrors.NewErrDuplicateIdentity()
	case errors.Is(err, model.ErrNotFound):
		return apperrors.NewErrRecordNotFound()
	}
	r.logger.Error("Registration service: store failure",
		"op", op,
		"error", err.Error())
	return fmt.Errorf("failed to %s: %w", op, err)
}
