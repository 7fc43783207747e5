// Package handler implements the HTTP endpoints of the identity service.
package handler

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/service"
)

// RegistrationService drives registration stages.
type RegistrationService interface {
	SubmitPersonalInfo(ctx context.Context, info model.PersonalInfo, raw json.RawMessage) (service.StageResult, error)
	SubmitMedicalHistory(ctx context.Context, contact model.Contact, medical model.MedicalHistory, raw json.RawMessage) (service.StageResult, error)
	SubmitAssessment(ctx context.Context, contact model.Contact, answers []model.AssessmentAnswer, raw json.RawMessage) (service.StageResult, error)
	SubmitCredentials(ctx context.Context, contact model.Contact, password string) (service.StageResult, error)
	RegisterOrganization(ctx context.Context, in service.OrganizationInput) (service.StageResult, error)
}

// VerificationService checks and resends verification codes.
type VerificationService interface {
	Verify(ctx context.Context, contact model.Contact, code string) (service.Session, error)
	Resend(ctx context.Context, contact model.Contact) (service.StageResult, error)
}

// AuthService logs identities in and resolves the current one.
type AuthService interface {
	Login(ctx context.Context, email, password string) (service.Session, error)
	Me(ctx context.Context, identityID uuid.UUID) (model.Identity, error)
}

// TokenService rotates refresh tokens.
type TokenService interface {
	Rotate(ctx context.Context, refreshToken string) (service.Session, error)
}

// PasswordService handles forgotten passwords.
type PasswordService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (model.Identity, error)
}

var (
	_ RegistrationService = (*service.Registration)(nil)
	_ VerificationService = (*service.OTP)(nil)
	_ AuthService         = (*service.Auth)(nil)
	_ TokenService        = (*service.TokenService)(nil)
	_ PasswordService     = (*service.PasswordReset)(nil)
)
