package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

// TokenService resolves bearer access tokens to identities.
type TokenService interface {
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
}

// Authenticate validates bearer tokens and puts the principal into the request context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, contextManager: contextManager, logger: logger}
}

// Handle rejects requests without a valid access token.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			response.Error(w, r, m.logger, apperrors.NewErrInvalidSession())
			return
		}

		identity, err := m.tokenService.Authenticate(r.Context(), token)
		if err != nil {
			response.Error(w, r, m.logger, err)
			return
		}

		ctx := m.contextManager.SetPrincipalToContext(r.Context(), model.Principal{
			IdentityID: identity.ID,
			Kind:       identity.Kind,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireKind admits only principals of kind. It must run after Handle.
func (m *Authenticate) RequireKind(kind model.IdentityKind, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.contextManager.GetPrincipalFromContext(r.Context())
		if !ok {
			response.Error(w, r, m.logger, apperrors.NewErrInvalidSession())
			return
		}
		if p.Kind != kind {
			m.logger.Info("Authenticate middleware: kind not allowed",
				"identity_id", p.IdentityID,
				"kind", p.Kind,
				"required", kind)
			response.Error(w, r, m.logger, apperrors.NewErrForbidden())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
