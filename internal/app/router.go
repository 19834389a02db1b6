package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/cbhub/internal/config"
	"github.com/noah-isme/cbhub/internal/health"
	"github.com/noah-isme/cbhub/internal/obs"
	"github.com/noah-isme/cbhub/internal/payment"
	"github.com/noah-isme/cbhub/internal/ratelimit"
	"github.com/noah-isme/cbhub/internal/resilience"
	"github.com/noah-isme/cbhub/internal/security"
)

// RouterOptions toggles the observability middleware.
type RouterOptions struct {
	Metrics *obs.HTTPMetrics
	Tracing bool
}

// NewRouter mounts the payment backend routes.
func NewRouter(cfg *config.Config, deps *Dependencies, opts RouterOptions) http.Handler {
	logger := deps.Logger

	verifySvc := &payment.Service{Provider: deps.Provider, Events: deps.Bus, Logger: logger}
	verifyHandler := payment.Handler{Svc: verifySvc, Validate: deps.Validator}
	webhook := payment.Webhook{
		Verifier:  deps.Provider,
		MaxBody:   cfg.BodyLimitBytes,
		ReplayTTL: cfg.WebhookReplayTTL,
		Events:    deps.Bus,
		Logger:    logger,
	}
	if deps.Redis != nil {
		webhook.Replay = deps.Redis
	}

	bodyLimit := security.BodyLimit{Max: cfg.BodyLimitBytes}
	verifyLimit := ratelimit.Handler{
		Limiter: deps.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("verify"),
			Window: time.Minute,
			Max:    cfg.RateLimitVerifyPerMinute,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate_limit_unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Skip: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:  health.RedisChecker{Client: redisOrNil(deps)},
		Breakers: []*resilience.Breaker{deps.Provider.HTTP.Breaker},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.With(bodyLimit.Middleware, verifyLimit.Middleware).Post("/verify-payment", verifyHandler.VerifyPayment)
	r.Post("/webhook", webhook.Handle)

	return r
}

func redisOrNil(deps *Dependencies) redis.UniversalClient {
	if deps.Redis == nil {
		return nil
	}
	return deps.Redis
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
