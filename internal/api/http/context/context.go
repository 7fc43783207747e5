package context

import (
	"context"

	"github.com/dtroode/prakriti-server/internal/model"
)

type principalKey struct{}

var _ model.ContextManager = (*Manager)(nil)

// Manager stores the authenticated principal of a request in its context.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetPrincipalToContext returns a copy of ctx carrying p.
func (m *Manager) SetPrincipalToContext(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipalFromContext retrieves the principal set by SetPrincipalToContext.
func (m *Manager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	if !ok {
		return model.Principal{}, false
	}
	return p, true
}
