package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dtroode/prakriti-server/internal/api/http/response"
	"github.com/dtroode/prakriti-server/internal/logger"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves the liveness endpoint.
type Health struct {
	pingers map[string]Pinger
	logger  *logger.Logger
}

func NewHealth(pingers map[string]Pinger, logger *logger.Logger) *Health {
	return &Health{pingers: pingers, logger: logger}
}

func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := make(map[string]string, len(h.pingers))
	healthy := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Health handler: dependency unavailable",
				"dependency", name,
				"error", err.Error())
			status[name] = "unavailable"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		response.JSON(w, http.StatusServiceUnavailable, response.Envelope{Success: false, Message: "unhealthy", Data: status})
		return
	}
	response.OK(w, http.StatusOK, "ok", status)
}
