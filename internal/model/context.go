package model

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	IdentityID uuid.UUID
	Kind       IdentityKind
}

type ContextManager interface {
	SetPrincipalToContext(ctx context.Context, p Principal) context.Context
	GetPrincipalFromContext(ctx context.Context) (Principal, bool)
}
