package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

const archiveContentType = "application/json"

type archiveDocument struct {
	IdentityID string                          `json:"identityId"`
	Kind       model.IdentityKind              `json:"kind"`
	ArchivedAt time.Time                       `json:"archivedAt"`
	Stages     map[model.Stage]json.RawMessage `json:"stages"`
}

// Archive writes the staged registration payloads of an identity to object
// storage once they are about to be discarded. A nil storage disables it.
type Archive struct {
	storage model.Storage
	metrics model.MetricsRecorder
	logger  *logger.Logger
	now     func() time.Time
}

func NewArchive(storage model.Storage, metrics model.MetricsRecorder, logger *logger.Logger) *Archive {
	return &Archive{
		storage: storage,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Store archives identity.StagedPayloads and returns the object key, or an
// empty key when nothing was written. Failures are logged and counted only.
func (a *Archive) Store(ctx context.Context, identity model.Identity) string {
	if a.storage == nil || len(identity.StagedPayloads) == 0 {
		return ""
	}

	key, err := a.store(ctx, identity)
	if err != nil {
		a.metrics.ArchiveFailed()
		a.logger.Warn("Archive: failed to store registration",
			"identity_id", identity.ID,
			"error", err.Error())
		return ""
	}

	a.logger.Debug("Archive: registration stored",
		"identity_id", identity.ID,
		"key", key)
	return key
}

func (a *Archive) store(ctx context.Context, identity model.Identity) (string, error) {
	now := a.now().UTC()

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate object id: %w", err)
	}
	key := fmt.Sprintf("registrations/%s/%s.json", identity.ID, id)

	body, err := json.Marshal(archiveDocument{
		IdentityID: identity.ID.String(),
		Kind:       identity.Kind,
		ArchivedAt: now,
		Stages:     identity.StagedPayloads,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode archive: %w", err)
	}

	if err := a.storage.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), archiveContentType); err != nil {
		return "", err
	}
	return key, nil
}
