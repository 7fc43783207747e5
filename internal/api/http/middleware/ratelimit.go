package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/apperrors"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/ratelimit"
)

// Limiter decides whether a keyed request fits its window.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit throttles route groups per client address. A nil limiter admits everything.
type RateLimit struct {
	limiter Limiter
	logger  *logger.Logger
}

func NewRateLimit(limiter Limiter, logger *logger.Logger) *RateLimit {
	return &RateLimit{limiter: limiter, logger: logger}
}

// Limit applies the window of group to next. Limiter failures let the request through.
func (m *RateLimit) Limit(group string, next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := m.limiter.Allow(r.Context(), group+":"+clientIP(r))
		if err != nil {
			if !errors.Is(err, ratelimit.ErrUnavailable) {
				m.logger.Error("Rate limit middleware: unexpected limiter error",
					"group", group,
					"error", err.Error())
			} else {
				m.logger.Warn("Rate limit middleware: limiter unavailable, allowing request",
					"group", group,
					"error", err.Error())
			}
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			response.Error(w, r, m.logger, apperrors.NewErrRateLimited(decision.RetryAfter))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
