package model

import "fmt"

// Stage is a registration stage.
type Stage string

// Registration stages in the only order they may be traversed.
const (
	StagePersonalInfo        Stage = "personal-info"
	StageMedicalHistory      Stage = "medical-history"
	StageAssessment          Stage = "assessment"
	StageCredentialSetup     Stage = "credential-setup"
	StageContactVerification Stage = "contact-verification"
	StageCompleted           Stage = "completed"
)

var stageOrder = []Stage{
	StagePersonalInfo,
	StageMedicalHistory,
	StageAssessment,
	StageCredentialSetup,
	StageContactVerification,
	StageCompleted,
}

// ParseStage converts s to a known Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range stageOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown registration stage %q", s)
}

// Index returns the position of s in the stage order, or -1.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage following s. Completed has no successor and returns itself.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Terminal reports whether s is the completed stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted
}

// Progress is the share of the pipeline done once a record sits at s, in percent.
func (s Stage) Progress() int {
	i := s.Index()
	if i < 0 {
		return 0
	}
	return i * 100 / (len(stageOrder) - 1)
}
