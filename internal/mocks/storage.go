package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/prakriti-server/internal/model"
)

var _ model.Storage = (*Storage)(nil)

// Storage is a testify mock of model.Storage. Upload drains the reader so
// expectations can match on the uploaded bytes through Body.
type Storage struct {
	mock.Mock
	Body []byte
}

func (m *Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.Body = body
	return m.Called(ctx, key, size, contentType).Error(0)
}
