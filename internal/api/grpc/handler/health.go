// Package handler implements the gRPC services of the ops port.
package handler

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/prakriti-server/internal/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health mirrors dependency reachability into the standard gRPC health
// service. Each dependency is reported under its own name and the overall
// status under the empty service name.
type Health struct {
	server  *health.Server
	pingers map[string]Pinger
	timeout time.Duration
	logger  *logger.Logger

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

func NewHealth(pingers map[string]Pinger, timeout time.Duration, logger *logger.Logger) *Health {
	return &Health{
		server:  health.NewServer(),
		pingers: pingers,
		timeout: timeout,
		logger:  logger,
		last:    make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Server returns the health service to register on a gRPC server.
func (h *Health) Server() healthpb.HealthServer {
	return h.server
}

// Check pings every dependency once and reports whether all are reachable.
func (h *Health) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	healthy := true
	for name, p := range h.pingers {
		st := healthpb.HealthCheckResponse_SERVING
		if err := p.Ping(ctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			healthy = false
			h.logger.Debug("Health: dependency ping failed",
				"dependency", name,
				"error", err.Error())
		}
		h.set(name, st)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set("", overall)
	return healthy
}

// Watch runs Check every interval until ctx is done and then reports every
// service as not serving.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

func (h *Health) set(service string, st healthpb.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	prev, seen := h.last[service]
	h.last[service] = st
	h.mu.Unlock()

	h.server.SetServingStatus(service, st)
	if seen && prev != st {
		h.logger.Warn("Health: status changed",
			"service", service,
			"from", prev.String(),
			"to", st.String())
	}
}
