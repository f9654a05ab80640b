package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/carechat/internal/config"
	"github.com/ehr/carechat/internal/domain/conversation"
	"github.com/ehr/carechat/internal/domain/patient"
	"github.com/ehr/carechat/internal/platform/auth"
	"github.com/ehr/carechat/internal/platform/db"
	"github.com/ehr/carechat/internal/platform/inference"
	"github.com/ehr/carechat/internal/platform/middleware"
	"github.com/ehr/carechat/internal/platform/websocket"
)

type server struct {
	echo    *echo.Echo
	pool    *pgxpool.Pool
	closers []func()
}

func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// assistant is an inference provider that can report whether it has an
// endpoint or key to talk to.
type assistant interface {
	conversation.Assistant
	Configured() bool
}

func newAssistant(cfg *config.Config, logger zerolog.Logger) assistant {
	if cfg.InferenceProvider == config.ProviderOpenAI {
		return inference.NewOpenAIClient(inference.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.InferenceTimeout,
		}, logger)
	}
	return inference.NewHTTPClient(cfg.InferenceURL, cfg.InferenceTimeout, logger)
}

func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	srv := &server{}

	// Storage
	var (
		patientRepo patient.Repository
		store       conversation.Store
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		repo := patient.NewMemoryRepo()
		mem := conversation.NewMemoryStore(repo)
		repo.OnDelete(mem.Forget)
		patientRepo, store = repo, mem
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		srv.pool = pool
		srv.closers = append(srv.closers, pool.Close)
		patientRepo, store = patient.NewRepo(pool), conversation.NewPGStore(pool)
		logger.Info().Msg("connected to database")
	}

	patientSvc := patient.NewService(patientRepo)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			srv.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		srv.closers = append(srv.closers, func() { _ = rdb.Close() })

		cached := conversation.NewCachedStore(store, rdb, cfg.TranscriptCacheTTL, logger)
		patientSvc.AfterDelete(cached.Invalidate)
		store = cached
		logger.Info().Dur("ttl", cfg.TranscriptCacheTTL).Msg("transcript cache enabled")
	}

	// Inference
	ai := newAssistant(cfg, logger)
	if !ai.Configured() {
		logger.Warn().Str("provider", cfg.InferenceProvider).Msg("inference backend not configured; replies use the placeholder text")
	}

	hub := websocket.NewHub(logger)
	gateway := conversation.NewGateway(patientSvc, store, ai, logger, conversation.WithPublisher(hub))
	reader := conversation.NewReader(store)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(authMiddleware(cfg))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	rateLimitCfg.Skipper = func(c echo.Context) bool {
		return auth.AuthSkipper(c) || c.Path() == "/ws"
	}
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.Audit(logger, nil))

	// Operational routes
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Running")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(srv.pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	websocket.NewHandler(hub, cfg.CORSOrigins, func(c echo.Context) string {
		return auth.UserIDFromContext(c.Request().Context())
	}).RegisterRoutes(e)

	// API
	api := e.Group("/api")
	patient.NewHandler(patientSvc, reader.PatientChats).RegisterRoutes(api)
	conversation.NewHandler(gateway, reader).RegisterRoutes(api)

	srv.echo = e
	return srv, nil
}

// authMiddleware verifies bearer tokens. In development, requests without a
// token pass as an admin; tokens that are present are still verified when a
// secret or JWKS source is configured.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	var verify echo.MiddlewareFunc
	if cfg.JWTSecret != "" || cfg.AuthJWKSURL != "" {
		verify = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSecret),
			Skipper:    auth.AuthSkipper,
		})
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(verify)
	}
	if verify == nil {
		// Config.Validate rejects this outside development; fail closed anyway.
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if auth.AuthSkipper(c) {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication is not configured")
			}
		}
	}
	return verify
}
