package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/safestake/registry/internal/auth"
	"github.com/safestake/registry/internal/compliance"
	"github.com/safestake/registry/internal/guard"
	"github.com/safestake/registry/internal/handler"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Engine         *compliance.Engine
	Health         func(ctx context.Context) error
	JWTMgr         *auth.JWTManager
	RateLimiter    *guard.RateLimiter
	TrustedProxies handler.TrustedProxies
	Idempotency    *guard.IdempotencyGuard
	Metrics        http.Handler
	Logger         *slog.Logger
	CORSOrigin     string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := deps.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	complianceHandler := handler.NewComplianceHandler(deps.Engine, deps.Idempotency)

	r := chi.NewRouter()

	// Global middleware
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(origin))

	// Health and metrics
	r.With(handler.JSONContentType).Get("/health", handler.HealthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		// Public
		if deps.RateLimiter != nil {
			r.With(handler.RateLimit(deps.RateLimiter, deps.TrustedProxies)).Post("/identities/register", complianceHandler.Register)
		} else {
			r.Post("/identities/register", complianceHandler.Register)
		}
		r.Get("/eligibility", complianceHandler.Eligibility)

		// Participant
		r.Route("/me", func(r chi.Router) {
			r.Use(auth.AuthenticateAccount(deps.JWTMgr))
			r.Get("/record", complianceHandler.GetRecord)
			r.Put("/limits", complianceHandler.PutLimits)
			r.Post("/self-exclusion", complianceHandler.PostSelfExclusion)
		})

		// Platform
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticatePlatform(deps.JWTMgr))
			r.Post("/transactions", complianceHandler.PostTransaction)
		})
	})

	return r
}
