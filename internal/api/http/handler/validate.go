package handler

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/model"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-().]{5,19}$`)
	// phoneSeparators are dropped from the canonical phone form.
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// fieldErrors collects validation failures of one request.
type fieldErrors []apperrors.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, apperrors.FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewErrValidation(f...)
}

// email normalizes and checks an email address. It returns "" when invalid.
func (f *fieldErrors) email(field, value string) string {
	value = normalizeEmail(value)
	if value == "" {
		f.add(field, "is required")
		return ""
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		f.add(field, "must be a valid email address")
		return ""
	}
	return value
}

// phone checks a phone number and returns its canonical form: digits with an
// optional leading plus. It returns "" when absent or invalid.
func (f *fieldErrors) phone(field, value string, required bool) string {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			f.add(field, "is required")
		}
		return ""
	}
	if !phonePattern.MatchString(value) {
		f.add(field, "must be a valid phone number")
		return ""
	}
	return normalizePhone(value)
}

// contact reads the email or phone that locates a registration in progress.
func (f *fieldErrors) contact(email, phone string) model.Contact {
	if strings.TrimSpace(email) == "" && strings.TrimSpace(phone) == "" {
		f.add("email", "email or phone is required")
		return model.Contact{}
	}

	var c model.Contact
	if strings.TrimSpace(email) != "" {
		c.Email = f.email("email", email)
	}
	c.Phone = f.phone("phone", phone, false)
	return c
}

func (f *fieldErrors) required(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		f.add(field, "is required")
	}
	return value
}

func (f *fieldErrors) password(field, value string) {
	switch {
	case value == "":
		f.add(field, "is required")
	case len([]rune(value)) < minPasswordLen:
		f.add(field, "must be at least 8 characters")
	case len(value) > maxPasswordBytes:
		f.add(field, "must be at most 72 bytes")
	}
}

func (f *fieldErrors) code(field, value string) string {
	value = strings.TrimSpace(value)
	if !codePattern.MatchString(value) {
		f.add(field, "must be a 6 digit code")
	}
	return value
}

func (f *fieldErrors) date(field, value string) string {
	value = strings.TrimSpace(value)
	if value != "" && !datePattern.MatchString(value) {
		f.add(field, "must be a date in YYYY-MM-DD format")
	}
	return value
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizePhone(s string) string {
	return phoneSeparators.Replace(strings.TrimSpace(s))
}
