package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"advisor-dashboard/internal/analysis"
	"advisor-dashboard/internal/config"
	"advisor-dashboard/internal/middleware"
	"advisor-dashboard/internal/observability"
	"advisor-dashboard/internal/server"
	"advisor-dashboard/internal/services"
	"advisor-dashboard/internal/store"
	"advisor-dashboard/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	startupTimeout  = 60 * time.Second
	sweepInterval   = 5 * time.Minute
	dashboardTitle  = "理财师业绩看板"
	pageCacheMaxAge = "no-cache"
)

func dashboardHandler(dashboard *services.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		page := templates.Page{
			Title:    dashboardTitle,
			Datasets: dashboard.Datasets(),
			Filters:  dashboard.FilterOptions(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", pageCacheMaxAge)
		if err := templates.Dashboard(page).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func analysisOptions(cfg config.AnalysisConfig) analysis.Options {
	opts := analysis.DefaultOptions()
	if len(cfg.TierRank) > 0 {
		opts.TierRank = analysis.NewTierRank(cfg.TierRank)
	}
	opts.ExcludedAdvisors = cfg.ExcludedAdvisors
	return opts
}

// openSnapshotter builds the configured snapshot backend. The returned
// closer is nil when the backend holds no connection.
func openSnapshotter(ctx context.Context, cfg config.StoreConfig) (store.Snapshotter, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.StoreBackendMongo:
		m, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case config.StoreBackendNone:
		return store.NopSnapshotter{}, nil, nil
	default:
		return store.NewFileSnapshotter(cfg.File), nil, nil
	}
}

func newHandler(cfg *config.Config, dashboard *services.Dashboard, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(dashboard),
	}
	srv := server.NewServer(dashboard, logger, templateHandlers)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
		middleware.OriginCheck(cfg.Security, logger),
		middleware.UploadLimit(cfg.Data.UploadMaxBytes, logger),
	)
	return middlewareChain(srv)
}

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLog := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"store_backend", cfg.Store.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, startupTimeout)
	defer startCancel()

	snapshotter, closeStore, err := openSnapshotter(startCtx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}

	dashboard := services.NewDashboard(store.New(), snapshotter, analysisOptions(cfg.Analysis), logger)

	start := time.Now()
	if err := dashboard.Restore(startCtx); err != nil {
		logger.Warn("failed to restore snapshot", "error", err)
	}
	seeds := services.SeedFiles{
		Transactions: cfg.Data.TransactionsFile,
		Customers:    cfg.Data.CustomersFile,
		Strategies:   cfg.Data.StrategiesFile,
	}
	if err := dashboard.LoadFromFiles(startCtx, seeds); err != nil {
		return fmt.Errorf("failed to load seed files: %w", err)
	}
	logger.Info("datasets ready", "duration", time.Since(start), "datasets", dashboard.Datasets())

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(ctx, sweepInterval)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, dashboard, rateLimiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook("flush-snapshot", dashboard.FlushSnapshot)
	if closeStore != nil {
		gracefulServer.RegisterShutdownHook("close-store", closeStore)
	}
	gracefulServer.RegisterShutdownHook("close-log", func(ctx context.Context) error {
		return closeLog()
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}
