package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/prakriti-server/internal/logger"
)

// RecoveryHandler logs a recovered panic and turns it into codes.Internal.
func RecoveryHandler(l *logger.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorContext(ctx, "gRPC server: panic recovered",
			"panic", fmt.Sprint(p),
			"stack", string(debug.Stack()))
		return status.Error(codes.Internal, "internal error")
	}
}
