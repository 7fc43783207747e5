package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/metrics"
	"github.com/dtroode/prakriti-server/internal/mocks"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/testutil"
)

func archivedIdentity() model.Identity {
	return model.Identity{
		ID:   uuid.New(),
		Kind: model.KindIndividual,
		StagedPayloads: map[model.Stage]json.RawMessage{
			model.StagePersonalInfo:    json.RawMessage(`{"name":"Asha"}`),
			model.StageCredentialSetup: credentialsPayload,
		},
	}
}

func TestArchive_Store(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	t.Run("writes a document", func(t *testing.T) {
		storage := &mocks.Storage{}
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, "application/json").Return(nil).Once()
		a := NewArchive(storage, metrics.New(), testutil.MakeNoopLogger())
		a.now = clock.Now
		identity := archivedIdentity()

		key := a.Store(ctx, identity)

		require.True(t, strings.HasPrefix(key, "registrations/"+identity.ID.String()+"/"))
		assert.True(t, strings.HasSuffix(key, ".json"))

		var doc struct {
			IdentityID string                     `json:"identityId"`
			Kind       string                     `json:"kind"`
			Stages     map[string]json.RawMessage `json:"stages"`
		}
		require.NoError(t, json.Unmarshal(storage.Body, &doc))
		assert.Equal(t, identity.ID.String(), doc.IdentityID)
		assert.Equal(t, "individual", doc.Kind)
		assert.JSONEq(t, `{"name":"Asha"}`, string(doc.Stages["personal-info"]))
		assert.Contains(t, doc.Stages, "credential-setup")
		storage.AssertExpectations(t)
	})

	t.Run("keys are unique", func(t *testing.T) {
		storage := &mocks.Storage{}
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		a := NewArchive(storage, metrics.New(), testutil.MakeNoopLogger())
		a.now = clock.Now
		identity := archivedIdentity()

		assert.NotEqual(t, a.Store(ctx, identity), a.Store(ctx, identity))
	})

	t.Run("nothing staged", func(t *testing.T) {
		storage := &mocks.Storage{}
		a := NewArchive(storage, metrics.New(), testutil.MakeNoopLogger())

		assert.Empty(t, a.Store(ctx, model.Identity{ID: uuid.New()}))
		storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("disabled", func(t *testing.T) {
		a := NewArchive(nil, metrics.New(), testutil.MakeNoopLogger())
		assert.Empty(t, a.Store(ctx, archivedIdentity()))
	})

	t.Run("upload failure", func(t *testing.T) {
		storage := &mocks.Storage{}
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))
		a := NewArchive(storage, metrics.New(), testutil.MakeNoopLogger())

		assert.Empty(t, a.Store(ctx, archivedIdentity()))
	})
}
