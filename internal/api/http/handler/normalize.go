package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/scoring"
)

// normalizeList accepts an array of strings or a comma separated string.
func normalizeList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	out := []string{}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return splitList(s), nil
	case '[':
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			s, ok := scalarString(item)
			if !ok {
				return nil, fmt.Errorf("list items must be strings")
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("must be a list or a comma separated string")
}

// normalizeHabits accepts an object, an array, a plain or comma separated
// string, or a string holding JSON, and returns the canonical Habits.
func normalizeHabits(raw json.RawMessage) (model.Habits, error) {
	h := model.Habits{Items: []string{}, Details: map[string]string{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return h, nil
	}

	switch raw[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return h, err
		}
		for k, v := range obj {
			if v == nil {
				continue
			}
			if k == "items" {
				items, err := normalizeList(mustMarshal(v))
				if err != nil {
					return h, err
				}
				h.Items = append(h.Items, items...)
				continue
			}
			h.Details[k] = detailString(v)
		}
		return h, nil
	case '[':
		items, err := normalizeList(raw)
		if err != nil {
			return h, err
		}
		h.Items = items
		return h, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return h, err
		}
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if json.Valid([]byte(trimmed)) {
				return normalizeHabits(json.RawMessage(trimmed))
			}
		}
		h.Items = splitList(s)
		return h, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return h, err
	}
	if s, ok := scalarString(v); ok {
		h.Items = []string{s}
	}
	return h, nil
}

// normalizeAnswers converts questionnaire entries to canonical answers. It
// reports problems per entry through fields.
func normalizeAnswers(entries []answerRequest, fields *fieldErrors) []model.AssessmentAnswer {
	if len(entries) == 0 {
		fields.add("answers", "at least one answer is required")
		return nil
	}

	out := make([]model.AssessmentAnswer, 0, len(entries))
	for i, e := range entries {
		category, err := model.ParseCategory(e.Category)
		if err != nil {
			fields.add(fmt.Sprintf("answers[%d].category", i), "must be one of A, B, C, vata, pitta, kapha")
			continue
		}
		if e.Weight != nil && !scoring.ValidWeight(*e.Weight) {
			fields.add(fmt.Sprintf("answers[%d].weight", i), fmt.Sprintf("must be between 0 and %d", scoring.MaxWeight))
			continue
		}
		out = append(out, model.AssessmentAnswer{
			QuestionID: strings.TrimSpace(e.QuestionID),
			Category:   category,
			Weight:     e.Weight,
		})
	}
	return out
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func detailString(v any) string {
	if s, ok := scalarString(v); ok {
		return s
	}
	return string(mustMarshal(v))
}

// mustMarshal re-encodes a value decoded from JSON, which cannot fail.
func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
