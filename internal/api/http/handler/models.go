package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/service"
)

type personalInfoRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
}

type medicalHistoryRequest struct {
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Conditions  json.RawMessage `json:"conditions"`
	Medications json.RawMessage `json:"medications"`
	Allergies   json.RawMessage `json:"allergies"`
	Exercise    json.RawMessage `json:"exercise"`
	Lifestyle   json.RawMessage `json:"lifestyle"`
}

type answerRequest struct {
	QuestionID string   `json:"questionId"`
	Category   string   `json:"category"`
	Weight     *float64 `json:"weight"`
}

type assessmentRequest struct {
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Answers []answerRequest `json:"answers"`
}

type credentialsRequest struct {
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type organizationRequest struct {
	OrganizationName   string `json:"organizationName"`
	RegistrationNumber string `json:"registrationNumber"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Password           string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type contactRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type stageResponse struct {
	IdentityID    uuid.UUID   `json:"identityId"`
	NextStage     model.Stage `json:"nextStage"`
	Progress      int         `json:"progress"`
	CodeDelivered *bool       `json:"codeDelivered,omitempty"`
	Warning       string      `json:"warning,omitempty"`
}

type tokensResponse struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type sessionResponse struct {
	Identity identityResponse `json:"identity"`
	Tokens   tokensResponse   `json:"tokens"`
}

// identityResponse is the redacted projection of an identity record.
type identityResponse struct {
	ID                  uuid.UUID                  `json:"id"`
	Kind                model.IdentityKind         `json:"kind"`
	Name                string                     `json:"name"`
	Email               string                     `json:"email"`
	Phone               string                     `json:"phone,omitempty"`
	DateOfBirth         string                     `json:"dateOfBirth,omitempty"`
	Gender              string                     `json:"gender,omitempty"`
	Organization        *model.OrganizationInfo    `json:"organization,omitempty"`
	RegistrationStage   model.Stage                `json:"registrationStage"`
	Active              bool                       `json:"active"`
	ContactVerified     bool                       `json:"contactVerified"`
	MedicalHistory      *model.MedicalHistory      `json:"medicalHistory,omitempty"`
	ConstitutionProfile *model.ConstitutionProfile `json:"constitutionProfile,omitempty"`
	CreatedAt           time.Time                  `json:"createdAt"`
	UpdatedAt           time.Time                  `json:"updatedAt"`
}

func toIdentityResponse(i model.Identity) identityResponse {
	return identityResponse{
		ID:                  i.ID,
		Kind:                i.Kind,
		Name:                i.Personal.Name,
		Email:               i.Personal.Email,
		Phone:               i.Personal.Phone,
		DateOfBirth:         i.Personal.DateOfBirth,
		Gender:              i.Personal.Gender,
		Organization:        i.Organization,
		RegistrationStage:   i.Stage,
		Active:              i.Active,
		ContactVerified:     i.ContactVerified,
		MedicalHistory:      i.Medical,
		ConstitutionProfile: i.Profile,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
	}
}

func toStageResponse(r service.StageResult) stageResponse {
	out := stageResponse{
		IdentityID: r.Identity.ID,
		NextStage:  r.NextStage,
		Progress:   r.Progress,
	}
	if r.Delivery != nil {
		delivered := r.Delivery.Delivered
		out.CodeDelivered = &delivered
		out.Warning = r.Delivery.Warning
	}
	return out
}

func toSessionResponse(s service.Session) sessionResponse {
	return sessionResponse{
		Identity: toIdentityResponse(s.Identity),
		Tokens: tokensResponse{
			AccessToken:      s.Tokens.AccessToken,
			AccessExpiresAt:  s.Tokens.AccessExpiresAt,
			RefreshToken:     s.Tokens.RefreshToken,
			RefreshExpiresAt: s.Tokens.RefreshExpiresAt,
		},
	}
}
