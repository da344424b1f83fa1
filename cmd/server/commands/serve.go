package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/motion-coach/internal/analysis"
	"github.com/ashureev/motion-coach/internal/api"
	"github.com/ashureev/motion-coach/internal/coaching"
	"github.com/ashureev/motion-coach/internal/config"
	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/identity"
	"github.com/ashureev/motion-coach/internal/live"
	"github.com/ashureev/motion-coach/internal/middleware"
	"github.com/ashureev/motion-coach/internal/quota"
	"github.com/ashureev/motion-coach/internal/store"
	"github.com/ashureev/motion-coach/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket coaching server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := slog.Default()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "db_driver", cfg.DBDriver, "analyzer", cfg.Analysis.Backend)

	repo, err := openRepository(parent, cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected")

	policy, policyViper, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("load coaching policy: %w", err)
	}
	if cfg.PolicyFile == "" {
		policy.AnalysisTimeout = cfg.Analysis.Timeout
		policy = policy.Normalized()
	}
	policySrc := coaching.NewPolicySource(policy)
	config.WatchPolicy(policyViper, policySrc, logger)

	backend, err := analysis.New(cfg.Analysis, logger)
	if err != nil {
		slog.Warn("Analysis backend unavailable, coaching will use heuristic feedback", "error", err)
		backend, _ = analysis.New(config.AnalysisConfig{Backend: config.AnalyzerNone}, logger)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Warn("Failed to close analysis backend", "error", closeErr)
		}
	}()

	orch := coaching.NewOrchestrator(backend.Analyzer, coaching.OrchestratorConfig{
		Timeout:       policy.AnalysisTimeout,
		MaxConcurrent: int64(cfg.Analysis.MaxConcurrent),
	}, logger)
	orch.UsePolicyTimeout(policySrc)

	limiter := quota.NewLimiter(repo, domain.QuotaLimits{
		Daily:      cfg.Quota.DailyLimit,
		Hourly:     cfg.Quota.HourlyLimit,
		MinSpacing: cfg.Quota.MinSpacing,
	}, logger)

	engine := coaching.NewEngine(coaching.NewSessionStore(logger), policySrc, orch, logger,
		coaching.WithAdmitter(limiter))

	conns := live.NewConnManager(logger)
	startLimiter := api.NewRateLimiter(cfg.StartRateLimit, time.Minute)
	defer startLimiter.Stop()

	var analyzerHealth api.ReadyChecker
	if backend.Analyzer != nil {
		analyzerHealth = backend
	}

	coachingHandler := api.NewCoachingHandler(engine, limiter, startLimiter, logger)
	healthHandler := api.NewHealthHandler(repo, analyzerHealth, backend.Name, engine.Sessions().Len)
	liveHandler := live.NewHandler(engine, conns, originHosts(cfg), logger)

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 && cfg.IsDevelopment() {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(corsOrigins))

	healthHandler.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		coachingHandler.RegisterRoutes(r)
		r.Get("/ws/coaching", liveHandler.ServeHTTP)
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", web.SPAHandler(os.DirFS(cfg.StaticDir)))
		slog.Info("Serving web client", "dir", cfg.StaticDir)
	}

	// WebSocket connections are long lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coaching.StartSweeper(ctx, engine, cfg.SessionIdleTTL, coaching.DefaultSweepInterval, func(userID string) {
		conns.CloseUser(userID, "session expired")
	})

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	var (
		repo store.Repository
		err  error
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		repo, err = store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		repo, err = store.NewSQLite(cfg.DBPath)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	return repo, nil
}

// originHosts converts configured CORS origins into WebSocket origin
// patterns, which match on host only.
func originHosts(cfg *config.Config) []string {
	if cfg.IsDevelopment() && len(cfg.CORSOrigins) == 0 {
		return nil
	}
	var hosts []string
	for _, o := range cfg.CORSOrigins {
		if o == "*" {
			return nil
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
