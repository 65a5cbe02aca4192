// Package worker parses worker command flags and launches the outbox
// processing runtime.
package worker

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/generyand/sinag-sub000/internal/jobs"
	entrypoint "github.com/generyand/sinag-sub000/internal/platform/cmd"
	platformgrpc "github.com/generyand/sinag-sub000/internal/platform/grpc"
	"github.com/generyand/sinag-sub000/internal/storage/sqlite"
)

// Config holds worker command configuration.
type Config struct {
	Port         int           `env:"SINAG_WORKER_PORT" envDefault:"8081"`
	MetricsPort  int           `env:"SINAG_WORKER_METRICS_PORT" envDefault:"9090"`
	DBPath       string        `env:"SINAG_WORKER_DB_PATH" envDefault:"data/assessment.db"`
	PollInterval time.Duration `env:"SINAG_WORKER_POLL_INTERVAL" envDefault:"5s"`
	LeaseTTL     time.Duration `env:"SINAG_WORKER_LEASE_TTL" envDefault:"1m"`
	BatchSize    int           `env:"SINAG_WORKER_BATCH_SIZE" envDefault:"10"`
	MaxAttempts  int           `env:"SINAG_WORKER_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff time.Duration `env:"SINAG_WORKER_RETRY_BACKOFF" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "The worker Prometheus metrics port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The assessment SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Outbox poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Outbox claim lease duration")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum jobs claimed per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum processing attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open assessment store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close assessment store: %v", closeErr)
		}
	}()

	registry := prometheus.NewRegistry()
	metrics := jobs.NewMetrics(registry)
	handlers := jobs.Handlers(jobs.LogSummaryGenerator{}, jobs.LogNotifier{})
	loop := jobs.NewWorker(store, handlers, jobs.WorkerConfig{
		PollInterval: cfg.PollInterval,
		Lease:        cfg.LeaseTTL,
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
		BaseBackoff:  cfg.RetryBackoff,
	}, metrics)

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Printf("metrics server: %v", serveErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("shutdown metrics server: %v", shutdownErr)
		}
	}()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	srv, healthSrv := platformgrpc.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus("worker.runtime", grpc_health_v1.HealthCheckResponse_SERVING)
	defer healthSrv.Shutdown()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- platformgrpc.Serve(ctx, srv, listener)
	}()

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	if err := <-serveErr; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
