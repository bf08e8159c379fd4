package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/medblog/internal/adapters/assistant"
	"github.com/okian/medblog/internal/adapters/cache"
	"github.com/okian/medblog/internal/adapters/http/api"
	"github.com/okian/medblog/internal/adapters/http/site"
	"github.com/okian/medblog/internal/adapters/http/swagger"
	"github.com/okian/medblog/internal/adapters/repository"
	service "github.com/okian/medblog/internal/app"
	"github.com/okian/medblog/internal/config"
	"github.com/okian/medblog/internal/domain/ranking"
	"github.com/okian/medblog/internal/scheduler"
	"github.com/okian/medblog/pkg/auth"
	"github.com/okian/medblog/pkg/logger"
	"github.com/okian/medblog/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 30 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "medblog exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	// Apply configured log level and format (fallback to info/text on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; keeping text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}

	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "close store", logger.Error(err))
		}
	}()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithStore(store),
		service.WithRanker(ranking.NewRanker(
			ranking.WithJitterMax(cfg.JitterMax),
			ranking.WithSeed(cfg.JitterSeed),
		)),
		service.WithAssistant(assistant.NewClient(cfg.AssistantURL, assistant.WithTimeout(cfg.AssistantTimeout()))),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	}

	if cfg.RedisAddr != "" && cfg.FeedCacheTTL() > 0 {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		opts = append(opts, service.WithFeedCache(cache.NewRedisFeedCache(client, cfg.FeedCacheTTL())))
		log.Info(ctx, "feed cache enabled", logger.String("redis", cfg.RedisAddr), logger.Duration("ttl", cfg.FeedCacheTTL()))
	}

	var authMgr *auth.Manager
	if cfg.JWTSecret != "" {
		if authMgr, err = auth.NewManager(cfg.JWTSecret); err != nil {
			return err
		}
	} else {
		log.Warn(ctx, "jwt_secret not set; write endpoints are disabled")
	}

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "stop service", logger.Error(err))
		}
	}()

	if cfg.FeedRefreshSchedule != "" {
		job, err := scheduler.New("feed-refresh", cfg.FeedRefreshSchedule, svc.RefreshFeed)
		if err != nil {
			return err
		}
		job.Start(ctx)
		defer func() { _ = job.Stop(context.Background()) }()
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, authMgr, cfg.MaxFeedLimit),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers docs, landing pages and the API on one mux.
func newMux(ctx context.Context, svc *service.Service, authMgr *auth.Manager, maxFeedLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	apiOpts := []api.Option{api.WithMaxFeedLimit(maxFeedLimit)}
	if authMgr != nil {
		apiOpts = append(apiOpts, api.WithAuth(authMgr))
	}
	api.NewServer(svc, svc, apiOpts...).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
