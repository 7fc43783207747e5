package router

import (
	"net/http"

	"github.com/dtroode/prakriti-server/internal/api/http/handler"
	"github.com/dtroode/prakriti-server/internal/api/http/middleware"
	"github.com/dtroode/prakriti-server/internal/logger"
	"github.com/dtroode/prakriti-server/internal/model"
)

// Rate limit groups.
const (
	GroupLogin    = "login"
	GroupPassword = "password"
	GroupVerify   = "verify"
)

// Services are the domain services the routes call.
type Services struct {
	Registration handler.RegistrationService
	Verification handler.VerificationService
	Auth         handler.AuthService
	Tokens       interface {
		handler.TokenService
		middleware.TokenService
	}
	Password handler.PasswordService
}

// Options configure the cross-cutting behavior of the router.
type Options struct {
	Cookies        handler.CookiePolicy
	AllowedOrigins []string
	// Limiter may be nil to disable rate limiting.
	Limiter middleware.Limiter
	Metrics interface {
		middleware.RequestObserver
		Handler() http.Handler
	}
	Pingers map[string]handler.Pinger
}

// Router builds the public HTTP API.
type Router struct {
	services       Services
	options        Options
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates a new Router instance.
func New(services Services, options Options, contextManager model.ContextManager, logger *logger.Logger) *Router {
	return &Router{
		services:       services,
		options:        options,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Register wires every route and returns the root handler.
func (r *Router) Register() http.Handler {
	mux := http.NewServeMux()

	limit := middleware.NewRateLimit(r.options.Limiter, r.logger)
	authenticate := middleware.NewAuthenticate(r.services.Tokens, r.contextManager, r.logger)

	r.registerRegistrationRoutes(mux)
	r.registerVerificationRoutes(mux, limit)
	r.registerAuthRoutes(mux, limit, authenticate)
	r.registerPasswordRoutes(mux, limit)
	r.registerOpsRoutes(mux)

	var h http.Handler = mux
	h = middleware.NewCORS(r.options.AllowedOrigins).Handle(h)
	if r.options.Metrics != nil {
		h = middleware.NewMetrics(r.options.Metrics).Handle(h)
	}
	h = middleware.NewLogging(r.logger).Handle(h)
	h = middleware.NewRecovery(r.logger).Handle(h)
	return h
}

func (r *Router) registerRegistrationRoutes(mux *http.ServeMux) {
	h := handler.NewRegistration(r.services.Registration, r.logger)
	mux.HandleFunc("POST /api/register/personal-info", h.PersonalInfo)
	mux.HandleFunc("POST /api/register/medical-history", h.MedicalHistory)
	mux.HandleFunc("POST /api/register/assessment", h.Assessment)
	mux.HandleFunc("POST /api/register/credentials", h.Credentials)
	mux.HandleFunc("POST /api/register/organization", h.Organization)
}

func (r *Router) registerVerificationRoutes(mux *http.ServeMux, limit *middleware.RateLimit) {
	h := handler.NewVerification(r.services.Verification, r.options.Cookies, r.logger)
	mux.Handle("POST /api/verify/code", limit.Limit(GroupVerify, http.HandlerFunc(h.VerifyCode)))
	mux.Handle("POST /api/verify/resend", limit.Limit(GroupVerify, http.HandlerFunc(h.Resend)))
}

func (r *Router) registerAuthRoutes(mux *http.ServeMux, limit *middleware.RateLimit, authenticate *middleware.Authenticate) {
	h := handler.NewAuth(r.services.Auth, r.services.Tokens, r.contextManager, r.options.Cookies, r.logger)
	mux.Handle("POST /api/auth/login", limit.Limit(GroupLogin, http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /api/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.Handle("GET /api/auth/me", authenticate.Handle(http.HandlerFunc(h.Me)))
	mux.Handle("GET /api/organization/me", authenticate.Handle(
		authenticate.RequireKind(model.KindOrganization, http.HandlerFunc(h.Me)),
	))
}

func (r *Router) registerPasswordRoutes(mux *http.ServeMux, limit *middleware.RateLimit) {
	h := handler.NewPassword(r.services.Password, r.logger)
	mux.Handle("POST /api/password/forgot", limit.Limit(GroupPassword, http.HandlerFunc(h.Forgot)))
	mux.Handle("POST /api/password/reset", limit.Limit(GroupPassword, http.HandlerFunc(h.Reset)))
}

func (r *Router) registerOpsRoutes(mux *http.ServeMux) {
	health := handler.NewHealth(r.options.Pingers, r.logger)
	mux.HandleFunc("GET /healthz", health.Check)
	if r.options.Metrics != nil {
		mux.Handle("GET /metrics", r.options.Metrics.Handler())
	}
}
