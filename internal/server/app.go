// Package server initializes and runs the ingestor server: database and
// object-store clients, migrations, the worker pool, and the HTTP API, with
// graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/ingestor/internal/logging"
	"github.com/dmitrijs2005/ingestor/internal/server/config"
	"github.com/dmitrijs2005/ingestor/internal/server/ingest"
	"github.com/dmitrijs2005/ingestor/internal/server/objectstore"
	"github.com/dmitrijs2005/ingestor/internal/server/query"
	"github.com/dmitrijs2005/ingestor/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ingestor/internal/server/rest"
	"github.com/dmitrijs2005/ingestor/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	pool   *ingest.Pool
	rest   *rest.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, objectstore.Options{
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		BaseEndpoint:    cfg.S3BaseEndpoint,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}
	for _, bucket := range []string{cfg.UploadBucket, cfg.ProcessedBucket} {
		if err := store.EnsureBucket(ctx, bucket); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
	}

	records := rm.FileRecords(db)

	pipeline := ingest.NewPipeline(store, records, cfg.ProcessedBucket, cfg.ProcessedPrefix, logger)
	pool := ingest.NewPool(cfg.IngestWorkers, cfg.OperationTimeout, pipeline, logger)

	restServer := rest.NewServer(cfg,
		services.NewUserService(db, rm, cfg),
		services.NewFileService(store, cfg.UploadBucket),
		query.NewService(records),
		pool, db, logger)

	return &App{config: cfg, logger: logger, db: db, pool: pool, rest: restServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until the context is cancelled or a signal arrives, then stops
// accepting requests, drains the worker pool, and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app",
		"addr", app.config.EndpointAddr, "workers", app.config.IngestWorkers)

	app.initSignalHandler(cancelFunc)
	app.pool.Start()

	err := app.rest.Run(ctx)

	app.pool.Shutdown()
	if dbErr := app.db.Close(); dbErr != nil {
		app.logger.Error(ctx, "closing database", "error", dbErr)
	}
	app.logger.Info(ctx, "app stopped")
	return err
}
