// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/basementlabs/memberd/internal/admin"
	"github.com/basementlabs/memberd/internal/auth"
	"github.com/basementlabs/memberd/internal/billing"
	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
	"github.com/basementlabs/memberd/internal/export"
	"github.com/basementlabs/memberd/internal/health"
	"github.com/basementlabs/memberd/internal/member"
	"github.com/basementlabs/memberd/internal/middleware"
	"github.com/basementlabs/memberd/internal/notify"
	"github.com/basementlabs/memberd/internal/payment"
	"github.com/basementlabs/memberd/internal/server"
	"github.com/basementlabs/memberd/internal/status"
	"github.com/basementlabs/memberd/internal/tariff"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Local dev convenience; in deployment the env is injected directly.
	//nolint:errcheck // missing .env is the normal case
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}

	bus := event.NewBus()

	memberRepo := member.NewRepository(db.DB)
	memberSvc := member.NewService(memberRepo, bus)
	memberHandler := member.NewHandler(memberSvc)

	tariffRepo := tariff.NewRepository(db.DB)
	tariffHandler := tariff.NewHandler(tariffRepo)

	paymentRepo := payment.NewRepository(db.DB)
	paymentHandler := payment.NewHandler(paymentRepo, bus, cfg.Billing)

	cohortCache := status.NewRedisCache(redis)
	engine := status.NewEngine(
		memberRepo,
		paymentRepo,
		tariffRepo,
		cfg.Policy,
		bus,
		cohortCache,
	)
	statusHandler := status.NewHandler(engine)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, memberSvc, redis.Client)
	authHandler := auth.NewHandler(authSvc)

	exporter := export.NewExporter(memberRepo, tariffRepo, engine)
	exportHandler := export.NewHandler(exporter)

	gateway := billing.NewGateway(cfg.Billing, memberRepo, tariffRepo)
	notifier := notify.NewNotifier(cfg.Notify)

	// Subscription order matters: the suspension transition must see the
	// freshly saved row before the billing adapter runs for it.
	engine.Subscribe(bus)
	gateway.Subscribe(bus)
	notifier.Subscribe(bus)

	healthHandler := health.NewHandler(db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Sweep:      engine.SweepSuspensions,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/members", authHandler.Register)

		memberHandler.RegisterRoutes(r, authenticator)
		memberHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		tariffHandler.RegisterRoutes(r, authenticator, adminOnly)
		paymentHandler.RegisterRoutes(r)
		paymentHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		statusHandler.RegisterRoutes(r, authenticator, adminOnly)
		exportHandler.RegisterRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
