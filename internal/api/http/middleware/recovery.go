package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/logger"
)

// Recovery turns handler panics into 500 responses.
type Recovery struct {
	logger *logger.Logger
}

func NewRecovery(logger *logger.Logger) *Recovery {
	return &Recovery{logger: logger}
}

func (m *Recovery) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			m.logger.Error("HTTP server: panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			response.Error(w, r, m.logger, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}
