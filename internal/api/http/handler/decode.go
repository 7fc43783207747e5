package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dtroode/prakriti-server/internal/apperrors"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst and returns the raw bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (json.RawMessage, error) {
	raw, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errMalformedBody("request body is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, errMalformedBody("request body is not valid JSON")
	}
	return raw, nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := readBody(w, r)
	if err != nil || len(raw) == 0 {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errMalformedBody("request body is not valid JSON")
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errMalformedBody("request body is too large")
		}
		return nil, errMalformedBody("request body could not be read")
	}
	return bytes.TrimSpace(raw), nil
}

func errMalformedBody(msg string) error {
	return apperrors.NewErrValidation(apperrors.FieldError{Field: "body", Message: msg})
}
