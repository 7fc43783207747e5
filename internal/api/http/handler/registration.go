package handler

import (
	"net/http"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/service"
)

// Registration serves the registration stage and organization endpoints.
type Registration struct {
	registration RegistrationService
	logger       *logger.Logger
}

func NewRegistration(registration RegistrationService, logger *logger.Logger) *Registration {
	return &Registration{registration: registration, logger: logger}
}

func (h *Registration) PersonalInfo(w http.ResponseWriter, r *http.Request) {
	var req personalInfoRequest
	raw, err := decodeJSON(w, r, &req)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	info := model.PersonalInfo{
		Name:        fields.required("name", req.Name),
		Email:       fields.email("email", req.Email),
		Phone:       fields.phone("phone", req.Phone, false),
		DateOfBirth: fields.date("dateOfBirth", req.DateOfBirth),
		Gender:      req.Gender,
	}
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.registration.SubmitPersonalInfo(r.Context(), info, raw)
	h.respondStage(w, r, result, err, "personal information saved")
}

func (h *Registration) MedicalHistory(w http.ResponseWriter, r *http.Request) {
	var req medicalHistoryRequest
	raw, err := decodeJSON(w, r, &req)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	contact := fields.contact(req.Email, req.Phone)
	medical := model.MedicalHistory{
		Conditions:  normalizeListField(&fields, "conditions", req.Conditions),
		Medications: normalizeListField(&fields, "medications", req.Medications),
		Allergies:   normalizeListField(&fields, "allergies", req.Allergies),
		Exercise:    normalizeHabitsField(&fields, "exercise", req.Exercise),
		Lifestyle:   normalizeHabitsField(&fields, "lifestyle", req.Lifestyle),
	}
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.registration.SubmitMedicalHistory(r.Context(), contact, medical, raw)
	h.respondStage(w, r, result, err, "medical history saved")
}

func (h *Registration) Assessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	raw, err := decodeJSON(w, r, &req)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	contact := fields.contact(req.Email, req.Phone)
	answers := normalizeAnswers(req.Answers, &fields)
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.registration.SubmitAssessment(r.Context(), contact, answers, raw)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	data := struct {
		stageResponse
		ConstitutionProfile *model.ConstitutionProfile `json:"constitutionProfile"`
	}{toStageResponse(result), result.Identity.Profile}
	response.OK(w, http.StatusOK, "assessment saved", data)
}

func (h *Registration) Credentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	contact := fields.contact(req.Email, req.Phone)
	fields.password("password", req.Password)
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		fields.add("confirmPassword", "does not match password")
	}
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.registration.SubmitCredentials(r.Context(), contact, req.Password)
	h.respondStage(w, r, result, err, "credentials saved, verification code sent")
}

func (h *Registration) Organization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	var fields fieldErrors
	in := service.OrganizationInput{
		Organization: model.OrganizationInfo{
			Name:               fields.required("organizationName", req.OrganizationName),
			RegistrationNumber: req.RegistrationNumber,
		},
		Email:    fields.email("email", req.Email),
		Phone:    fields.phone("phone", req.Phone, false),
		Password: req.Password,
	}
	fields.password("password", req.Password)
	if err := fields.err(); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.registration.RegisterOrganization(r.Context(), in)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}
	response.OK(w, http.StatusCreated, "organization registered, verification code sent", toStageResponse(result))
}

func (h *Registration) respondStage(w http.ResponseWriter, r *http.Request, result service.StageResult, err error, message string) {
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}
	response.OK(w, http.StatusOK, message, toStageResponse(result))
}

func normalizeListField(fields *fieldErrors, name string, raw []byte) []string {
	items, err := normalizeList(raw)
	if err != nil {
		fields.add(name, "must be a list or a comma separated string")
		return nil
	}
	return items
}

func normalizeHabitsField(fields *fieldErrors, name string, raw []byte) model.Habits {
	h, err := normalizeHabits(raw)
	if err != nil {
		fields.add(name, "must be an object, a list or a string")
		return model.Habits{}
	}
	return h
}
