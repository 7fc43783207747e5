package context

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dtroode/prakriti-server/internal/model"
)

func TestManager_PrincipalRoundTrip(t *testing.T) {
	m := NewManager()
	p := model.Principal{IdentityID: uuid.New(), Kind: model.KindOrganization}

	ctx := m.SetPrincipalToContext(context.Background(), p)

	got, ok := m.GetPrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, p, got)
}

func TestManager_GetPrincipalFromContext_Missing(t *testing.T) {
	m := NewManager()

	got, ok := m.GetPrincipalFromContext(context.Background())
	assert.False(t, ok)
	assert.Equal(t, model.Principal{}, got)
}
