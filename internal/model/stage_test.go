package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Next(t *testing.T) {
	assert.Equal(t, StageMedicalHistory, StagePersonalInfo.Next())
	assert.Equal(t, StageAssessment, StageMedicalHistory.Next())
	assert.Equal(t, StageCredentialSetup, StageAssessment.Next())
	assert.Equal(t, StageContactVerification, StageCredentialSetup.Next())
	assert.Equal(t, StageCompleted, StageContactVerification.Next())
	assert.Equal(t, StageCompleted, StageCompleted.Next())
}

func TestStage_Progress(t *testing.T) {
	assert.Equal(t, 0, StagePersonalInfo.Progress())
	assert.Equal(t, 20, StageMedicalHistory.Progress())
	assert.Equal(t, 80, StageContactVerification.Progress())
	assert.Equal(t, 100, StageCompleted.Progress())
	assert.Equal(t, 0, Stage("bogus").Progress())
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage("assessment")
	require.NoError(t, err)
	assert.Equal(t, StageAssessment, st)

	_, err = ParseStage("payment")
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{"A": CategoryVata, "b": CategoryPitta, " Kapha ": CategoryKapha} {
		got, err := ParseCategory(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCategory("d")
	assert.Error(t, err)
}

func TestIdentity_IsLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, Identity{}.IsLocked(now))
	assert.True(t, Identity{LockedUntil: &future}.IsLocked(now))
	assert.False(t, Identity{LockedUntil: &past}.IsLocked(now))
}
