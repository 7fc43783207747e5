package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/model"
)

func TestFieldErrors_Email(t *testing.T) {
	var fields fieldErrors
	assert.Equal(t, "asha@example.com", fields.email("email", "  Asha@Example.com "))
	assert.Empty(t, fields)

	assert.Empty(t, fields.email("email", ""))
	assert.Empty(t, fields.email("email", "not-an-email"))
	assert.Empty(t, fields.email("email", "Asha <asha@example.com>"))
	require.Len(t, fields, 3)
	assert.Equal(t, "is required", fields[0].Message)
}

func TestFieldErrors_Phone(t *testing.T) {
	var fields fieldErrors
	assert.Equal(t, "+15550001234", fields.phone("phone", " +1 555-000-1234 ", false))
	assert.Equal(t, "+919876543210", fields.phone("phone", "+91 98765 43210", false))
	assert.Equal(t, "+919876543210", fields.phone("phone", "+91 (98765) 432.10", false))
	assert.Equal(t, "5550001", fields.phone("phone", "555-0001", false))
	assert.Empty(t, fields.phone("phone", "", false))
	assert.Empty(t, fields)

	fields.phone("phone", "", true)
	fields.phone("phone", "call me", false)
	assert.Len(t, fields, 2)
}

func TestFieldErrors_Contact(t *testing.T) {
	var fields fieldErrors
	assert.Equal(t, model.Contact{Email: "asha@example.com"}, fields.contact(" Asha@Example.com", ""))
	assert.Equal(t, model.Contact{Phone: "+919876543210"}, fields.contact("", "+91 98765 43210"))
	assert.Equal(t, model.Contact{Email: "asha@example.com", Phone: "+15550001"}, fields.contact("asha@example.com", "+1 555 0001"))
	assert.Empty(t, fields)

	assert.Equal(t, model.Contact{}, fields.contact(" ", ""))
	require.Len(t, fields, 1)
	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "email or phone is required", fields[0].Message)

	fields = nil
	fields.contact("nope", "")
	fields.contact("", "call me")
	require.Len(t, fields, 2)
	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "phone", fields[1].Field)
}

func TestFieldErrors_Password(t *testing.T) {
	var fields fieldErrors
	fields.password("password", "long-enough")
	assert.Empty(t, fields)

	fields.password("password", "")
	fields.password("password", "short")
	fields.password("password", strings.Repeat("x", 73))
	require.Len(t, fields, 3)
	assert.Equal(t, "must be at most 72 bytes", fields[2].Message)
}

func TestFieldErrors_CodeAndDate(t *testing.T) {
	var fields fieldErrors
	assert.Equal(t, "123456", fields.code("code", " 123456 "))
	assert.Equal(t, "1992-04-12", fields.date("dateOfBirth", "1992-04-12"))
	assert.Equal(t, "", fields.date("dateOfBirth", ""))
	assert.Empty(t, fields)

	fields.code("code", "12345")
	fields.code("code", "12a456")
	fields.date("dateOfBirth", "12/04/1992")
	assert.Len(t, fields, 3)
}

func TestFieldErrors_Err(t *testing.T) {
	var fields fieldErrors
	assert.NoError(t, fields.err())

	fields.add("name", "is required")
	err := fields.err()
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	assert.Equal(t, []apperrors.FieldError{{Field: "name", Message: "is required"}}, appErr.Fields)
}
