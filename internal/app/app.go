// Package app wires every gateway component together and owns the process
// lifecycle: the HTTP listener, the token-bucket sweeper, and the health
// sampler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nodebridge/rpc-gateway/internal/adminauth"
	"github.com/nodebridge/rpc-gateway/internal/admission"
	"github.com/nodebridge/rpc-gateway/internal/audit"
	"github.com/nodebridge/rpc-gateway/internal/config"
	"github.com/nodebridge/rpc-gateway/internal/health"
	"github.com/nodebridge/rpc-gateway/internal/httpserver"
	"github.com/nodebridge/rpc-gateway/internal/platform"
	"github.com/nodebridge/rpc-gateway/internal/proxy"
	"github.com/nodebridge/rpc-gateway/internal/ratelimit"
	"github.com/nodebridge/rpc-gateway/internal/telemetry"
	appmodel "github.com/nodebridge/rpc-gateway/pkg/app"
	"github.com/nodebridge/rpc-gateway/pkg/alerting"
	"github.com/nodebridge/rpc-gateway/pkg/chain"
	"github.com/nodebridge/rpc-gateway/pkg/defaultsettings"
	"github.com/nodebridge/rpc-gateway/pkg/user"
)

const serviceName = "rpc-gateway"

// Run is the main application entry point. It reads no further config itself
// beyond what's passed in, connects to infrastructure, wires every component,
// and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting rpc gateway", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	_, shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	if cfg.Mode == "migrate" {
		return nil
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	// --- Chain registry (C1) ---
	registry := chain.NewRegistry(db, logger)
	registry.Reload(ctx)

	// --- Slack alerting, wired into metrics before the registry is built ---
	notifier := alerting.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
	if notifier.IsEnabled() {
		logger.Info("slack alerting enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("slack alerting disabled (SLACK_BOT_TOKEN not set)")
	}

	metricsReg := telemetry.NewMetricsRegistry(notifier.Collector())

	// --- Auth: session manager, OIDC, login rate limiter ---
	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = adminauth.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set GATEWAY_SESSION_SECRET in production)")
	}
	sessionMaxAge, err := time.ParseDuration(cfg.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("parsing session max age %q: %w", cfg.SessionMaxAge, err)
	}
	sessionMgr, err := adminauth.NewSessionManager(sessionSecret, sessionMaxAge)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	var oidcAuth *adminauth.OIDCAuthenticator
	if cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "" {
		oidcAuth, err = adminauth.NewOIDCAuthenticator(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return fmt.Errorf("initializing OIDC authenticator: %w", err)
		}
		logger.Info("OIDC authentication enabled", "issuer", cfg.OIDCIssuerURL)
	} else {
		logger.Info("OIDC authentication disabled (OIDC_ISSUER_URL not set)")
	}

	loginRateLimiter := adminauth.NewRateLimiter(rdb, 10, 15*time.Minute)

	// --- Audit log writer (async, buffered) ---
	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	// --- Core domain stores/handlers ---
	userHandler := user.NewHandler(logger, auditWriter, db)
	loginHandler := adminauth.NewLoginHandler(sessionMgr, db, logger, oidcAuth != nil, loginRateLimiter)
	chainHandler := chain.NewHandler(logger, auditWriter, db, registry)
	appStore := appmodel.NewStore(db)
	appHandler := appmodel.NewHandler(logger, auditWriter, db, cfg.MaxAppsPerUser, cfg.DefaultMaxRPS, cfg.DefaultDailyRequests)
	defaultSettingsHandler := defaultsettings.NewHandler(logger, auditWriter, db)
	auditHandler := audit.NewHandler(db, logger)

	// --- Token-bucket limiter (C4) ---
	evictionInterval, err := time.ParseDuration(cfg.BucketEvictionInterval)
	if err != nil {
		return fmt.Errorf("parsing bucket eviction interval %q: %w", cfg.BucketEvictionInterval, err)
	}
	evictionIdleAfter, err := time.ParseDuration(cfg.BucketEvictionIdleAfter)
	if err != nil {
		return fmt.Errorf("parsing bucket eviction idle threshold %q: %w", cfg.BucketEvictionIdleAfter, err)
	}
	limiter := ratelimit.NewLimiter(evictionInterval, evictionIdleAfter)
	limiter.Start()
	defer limiter.Stop()

	// --- Reverse proxy (C5) ---
	proxyHandler := proxy.NewHandler(registry, logger)

	// --- Health aggregator (C7) ---
	healthCacheTTL, err := time.ParseDuration(cfg.HealthCacheTTL)
	if err != nil {
		return fmt.Errorf("parsing health cache TTL %q: %w", cfg.HealthCacheTTL, err)
	}
	healthSampleInterval, err := time.ParseDuration(cfg.HealthSampleInterval)
	if err != nil {
		return fmt.Errorf("parsing health sample interval %q: %w", cfg.HealthSampleInterval, err)
	}
	aggregator := health.NewAggregator(registry, rdb, healthCacheTTL)
	healthHandler := health.NewHandler(aggregator)
	sampler := health.NewSampler(aggregator, registry.Names, healthSampleInterval, logger, func(report health.Report) {
		notifier.Observe(context.Background(), report)
	})
	sampler.Start(ctx)
	defer sampler.Stop()

	// --- HTTP edge ---
	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)

	srv.Router.Mount("/auth/register", userHandler.Routes())
	srv.Router.Post("/auth/login", loginHandler.HandleLogin)
	srv.Router.Get("/auth/me", loginHandler.HandleMe)
	srv.Router.Post("/auth/logout", loginHandler.HandleLogout)
	srv.Router.Get("/auth/config", loginHandler.HandleAuthConfig)

	srv.Router.Route("/admin", func(r chi.Router) {
		r.Use(adminauth.Middleware(sessionMgr, oidcAuth, logger))
		r.Use(adminauth.RequireAuth)

		r.Mount("/apps", appHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(adminauth.RequireRole(adminauth.RoleAdmin))
			r.Mount("/chains", chainHandler.Routes())
			r.Mount("/default-app-settings", defaultSettingsHandler.Routes())
			r.Mount("/audit-log", auditHandler.Routes())
		})

		srv.AdminRouter = r
	})

	srv.Router.Mount("/health", healthHandler.Routes())

	// Data-plane routes: /{chain}/{exec|cons}/{key}/<tail...>. Order matters:
	// admission (C3) resolves the App, the token bucket (C4) enforces the
	// per-key rate, then the proxy (C5) forwards upstream.
	srv.Router.With(
		admission.Middleware(appStore, logger),
		limiter.Middleware(),
	).Handle("/{chain}/{section}/{key}/*", proxyHandler)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
