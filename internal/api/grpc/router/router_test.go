package router

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dtroode/prakriti-server/internal/api/grpc/handler"
	"github.com/dtroode/prakriti-server/internal/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func dial(t *testing.T, s *grpc.Server) healthpb.HealthClient {
	t.Helper()

	ln := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func TestRouter_Register(t *testing.T) {
	var down bool
	pinger := pingFunc(func(context.Context) error {
		if down {
			return errors.New("connection refused")
		}
		return nil
	})
	health := handler.NewHealth(map[string]handler.Pinger{"database": pinger}, time.Second, testutil.MakeNoopLogger())

	s := New(health, testutil.MakeNoopLogger()).Register()
	require.NotNil(t, s)
	client := dial(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health.Check(ctx)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "database"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	down = true
	health.Check(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
