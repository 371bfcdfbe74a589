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

	"github.com/okian/verdict/internal/adapters/http/api"
	"github.com/okian/verdict/internal/adapters/http/swagger"
	"github.com/okian/verdict/internal/adapters/mq/queue"
	"github.com/okian/verdict/internal/adapters/mq/worker"
	"github.com/okian/verdict/internal/adapters/repository"
	"github.com/okian/verdict/internal/adapters/scheduler"
	service "github.com/okian/verdict/internal/app"
	"github.com/okian/verdict/internal/config"
	"github.com/okian/verdict/internal/domain/memo"
	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 30 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "verdict exited", logger.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(cfg.DBPath, repository.WithLogger(log.Named("store")))
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newService(cfg, store, log)
	if err != nil {
		return err
	}

	jobs := queue.NewInMemoryQueue(queue.WithCapacity(cfg.RollupQueueCapacity))
	pool := worker.NewPool(cfg.RollupWorkers, jobs, svc, log.Named("rollup"))
	pool.Start(ctx)

	sched := scheduler.New(store, jobs, scheduler.WithLogger(log.Named("scheduler")))
	if cfg.RollupSchedule != "" {
		if err := sched.Start(cfg.RollupSchedule); err != nil {
			return err
		}
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("db_path", cfg.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if stopErr := sched.Stop(shutdownCtx); stopErr != nil {
		log.Warn(ctx, "scheduler stop timed out", logger.Error(stopErr))
	}
	if shutErr := srv.Shutdown(shutdownCtx); shutErr != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(shutErr))
	}
	if poolErr := pool.Shutdown(shutdownCtx); poolErr != nil {
		log.Warn(ctx, "rollup workers did not drain", logger.Error(poolErr))
	}

	log.Info(ctx, "server stopped")
	return err
}

// newService wires the forecast engine from cfg.
func newService(cfg *config.Config, store service.Store, log logger.Logger) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(log.Named("forecast")),
		service.WithFetchConcurrency(cfg.FetchConcurrency),
		service.WithRateLimit(cfg.FetchRatePerSecond),
		service.WithDefaults(cfg.Probabilities()),
		service.WithThresholds(cfg.Thresholds()),
		service.WithChannelOptions(cfg.ChannelOptions()),
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, service.WithCache(memo.NewInMemory[*service.Report](
			memo.WithMaxSize(cfg.CacheSize),
			memo.WithTTL(cfg.CacheTTL()),
		)))
	}
	return service.New(store, opts...)
}

// newMux registers the API, docs, health and metrics routes.
func newMux(ctx context.Context, svc *service.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, log).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
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

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
