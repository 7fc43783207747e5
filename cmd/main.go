package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/reflection"

	grpcHandler "github.com/dtroode/prakriti-server/internal/api/grpc/handler"
	grpcRouter "github.com/dtroode/prakriti-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/prakriti-server/internal/api/grpc/server"
	httpcontext "github.com/dtroode/prakriti-server/internal/api/http/context"
	httpHandler "github.com/dtroode/prakriti-server/internal/api/http/handler"
	httpRouter "github.com/dtroode/prakriti-server/internal/api/http/router"
	httpServer "github.com/dtroode/prakriti-server/internal/api/http/server"
	"github.com/dtroode/prakriti-server/internal/config"
	"github.com/dtroode/prakriti-server/internal/delivery"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/metrics"
	"github.com/dtroode/prakriti-server/internal/model"
	"github.com/dtroode/prakriti-server/internal/password"
	"github.com/dtroode/prakriti-server/internal/ratelimit"
	"github.com/dtroode/prakriti-server/internal/repository/memory"
	"github.com/dtroode/prakriti-server/internal/repository/postgres"
	"github.com/dtroode/prakriti-server/internal/server"
	"github.com/dtroode/prakriti-server/internal/service"
	storage "github.com/dtroode/prakriti-server/internal/storage/minio"
	"github.com/dtroode/prakriti-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckTimeout  = 2 * time.Second
	healthCheckInterval = 15 * time.Second
)

// redisPinger adapts a go-redis client to the health checks.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if cfg.IsProduction() && cfg.JWT.Secret == "devsecret" {
		logger.Fatal("JWT_SECRET must be set in production")
	}

	pingers := make(map[string]httpHandler.Pinger)

	var store model.IdentityStore
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory identity store, data is lost on restart")
		store = memory.NewIdentityRepository()
	case "postgres":
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer db.Close()
		store = postgres.NewIdentityRepository(db)
		pingers["database"] = db
	default:
		logger.Fatal("unknown database driver", "driver", cfg.Database.Driver)
	}

	var rateLimiter *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		rateLimiter = ratelimit.New(rdb, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
		pingers["redis"] = redisPinger{client: rdb}
	} else {
		logger.Warn("REDIS_ADDR is empty, rate limiting is disabled")
	}

	// A nil *storage.Client must not reach NewArchive as a non-nil interface.
	var archiveStorage model.Storage
	if cfg.Storage.Enabled {
		storageClient, err := storage.NewFromConfig(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("failed to initialize storage client", "error", err)
		}
		archiveStorage = storageClient
		pingers["storage"] = storageClient
	}

	m := metrics.New()
	sender := delivery.NewFromConfig(cfg.Delivery, logger, cfg.IsProduction())
	hasher := password.NewHasher(cfg.Password.BcryptCost)
	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	tokenService := service.NewTokenService(tokenManager, store, logger)
	archive := service.NewArchive(archiveStorage, m, logger)
	otpService := service.NewOTP(store, sender, sender, tokenService, archive, m, logger, service.OTPPolicy{
		TTL:             cfg.OTP.TTL,
		ResendInterval:  cfg.OTP.ResendInterval,
		MaxResends:      cfg.OTP.MaxResends,
		DisplayAttempts: cfg.OTP.DisplayAttempts,
		DeliveryTimeout: cfg.Delivery.Timeout,
	})
	registrationService := service.NewRegistration(store, hasher, otpService, m, logger)
	lockout := service.NewLockout(store, service.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	}, m, logger)
	authService := service.NewAuth(store, hasher, lockout, tokenService, m, logger)
	resetService := service.NewPasswordReset(store, hasher, sender, m, logger, service.ResetPolicy{
		TTL:             cfg.Reset.TTL,
		LinkURL:         cfg.Reset.LinkURL,
		DeliveryTimeout: cfg.Delivery.Timeout,
	})

	options := httpRouter.Options{
		Cookies: httpHandler.CookiePolicy{
			Name:       cfg.Cookie.Name,
			Domain:     cfg.Cookie.Domain,
			Path:       cfg.Cookie.Path,
			CrossSite:  cfg.Cookie.CrossSite,
			Production: cfg.IsProduction(),
		},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        m,
		Pingers:        pingers,
	}
	if rateLimiter != nil {
		options.Limiter = rateLimiter
	}

	apiRouter := httpRouter.New(httpRouter.Services{
		Registration: registrationService,
		Verification: otpService,
		Auth:         authService,
		Tokens:       tokenService,
		Password:     resetService,
	}, options, httpcontext.NewManager(), logger)

	apiServer := httpServer.NewHTTPServer(
		apiRouter.Register(),
		fmt.Sprintf(":%s", cfg.HTTP.Port),
		cfg.HTTP.ReadTimeout,
		cfg.HTTP.WriteTimeout,
	)

	grpcPingers := make(map[string]grpcHandler.Pinger, len(pingers))
	for name, p := range pingers {
		grpcPingers[name] = p
	}
	health := grpcHandler.NewHealth(grpcPingers, healthCheckTimeout, logger)
	opsServer := registerGRPCServer(health, logger, fmt.Sprintf(":%s", cfg.GRPC.Port))

	servers := []struct {
		server model.Server
		layer  model.SecurityLayer
	}{
		{apiServer, server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)},
		{opsServer, server.NewPlainListener()},
	}

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server, sl model.SecurityLayer) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s.server, s.layer)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Watch(ctx, healthCheckInterval)
	}()

	logAppVersion(logger)

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.server.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.server.Address())
		}
	}

	wg.Wait()
	resetService.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion(logger *logger.Logger) {
	logger.Info("build info",
		"version", buildVersion,
		"date", buildDate,
		"commit", buildCommit)
}

func registerGRPCServer(health *grpcHandler.Health, logger *logger.Logger, addr string) *grpcServer.GRPCServer {
	r := grpcRouter.New(health, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}
