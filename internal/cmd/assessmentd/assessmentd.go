// Package assessmentd parses assessment daemon flags and launches its
// runtime: the SQLite store, the indicator catalog, the deadline
// sweeper, and a health gRPC server.
package assessmentd

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/generyand/sinag-sub000/internal/assessment/service"
	"github.com/generyand/sinag-sub000/internal/jobs"
	entrypoint "github.com/generyand/sinag-sub000/internal/platform/cmd"
	platformgrpc "github.com/generyand/sinag-sub000/internal/platform/grpc"
	"github.com/generyand/sinag-sub000/internal/schema"
	"github.com/generyand/sinag-sub000/internal/schema/defaults"
	"github.com/generyand/sinag-sub000/internal/snapshot"
	"github.com/generyand/sinag-sub000/internal/storage/sqlite"
)

// Config holds assessment daemon configuration.
type Config struct {
	Port           int           `env:"SINAG_ASSESSMENT_PORT" envDefault:"8080"`
	DBPath         string        `env:"SINAG_ASSESSMENT_DB_PATH" envDefault:"data/assessment.db"`
	CatalogDir     string        `env:"SINAG_ASSESSMENT_CATALOG_DIR"`
	DeadlineWindow time.Duration `env:"SINAG_ASSESSMENT_DEADLINE_WINDOW" envDefault:"168h"`
	SweepSchedule  string        `env:"SINAG_ASSESSMENT_SWEEP_SCHEDULE" envDefault:"0 * * * *"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The assessment health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The assessment SQLite database path")
	fs.StringVar(&cfg.CatalogDir, "catalog-dir", cfg.CatalogDir, "Indicator catalog directory (embedded defaults when empty)")
	fs.DurationVar(&cfg.DeadlineWindow, "deadline-window", cfg.DeadlineWindow, "Correction window granted on rework and calibration")
	fs.StringVar(&cfg.SweepSchedule, "sweep-schedule", cfg.SweepSchedule, "Cron schedule for the deadline sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the assessment daemon runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAssessment, func(ctx context.Context) error {
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

	catalog, err := loadCatalog(cfg.CatalogDir)
	if err != nil {
		return err
	}
	log.Printf("catalog loaded: year %d, %d indicators", catalog.Year, len(catalog.IndicatorIDs()))

	dispatcher := jobs.NewOutboxDispatcher(store)
	svc := service.New(store, catalog, snapshot.New(catalog), dispatcher, service.Config{
		DeadlineWindow: cfg.DeadlineWindow,
	})

	sweeper := jobs.NewSweeper(cfg.SweepSchedule, svc.LockExpired, dispatcher)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start deadline sweeper: %w", err)
	}
	defer sweeper.Stop()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	srv, healthSrv := platformgrpc.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus("assessment.runtime", grpc_health_v1.HealthCheckResponse_SERVING)
	defer healthSrv.Shutdown()

	log.Printf("serving health on :%d", cfg.Port)
	if err := platformgrpc.Serve(ctx, srv, listener); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func loadCatalog(dir string) (*schema.Catalog, error) {
	var fsys fs.FS = defaults.FS
	if strings.TrimSpace(dir) != "" {
		fsys = os.DirFS(dir)
	}
	catalog, err := schema.LoadCatalog(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("load indicator catalog: %w", err)
	}
	return catalog, nil
}
