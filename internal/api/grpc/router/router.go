package router

import (
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/prakriti-server/internal/api/grpc/handler"
	"github.com/dtroode/prakriti-server/internal/api/grpc/middleware"
	"github.com/dtroode/prakriti-server/internal/logger"
)

// Router builds the ops gRPC server.
type Router struct {
	health *handler.Health
	logger *logger.Logger
}

// New creates new gRPC Router instance.
func New(health *handler.Health, logger *logger.Logger) *Router {
	return &Router{health: health, logger: logger}
}

// Register sets up interceptors and services and returns the server.
func (r *Router) Register() *grpc.Server {
	interceptorLogger := middleware.InterceptorLogger(r.logger)
	recoveryOpt := recovery.WithRecoveryHandlerContext(middleware.RecoveryHandler(r.logger))

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(interceptorLogger, middleware.LoggingOptions()...),
			recovery.UnaryServerInterceptor(recoveryOpt),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(interceptorLogger, middleware.LoggingOptions()...),
			recovery.StreamServerInterceptor(recoveryOpt),
		),
	)
	r.registerHealthRoutes(s)

	return s
}

func (r *Router) registerHealthRoutes(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, r.health.Server())
}
