package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/bulkdata"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/repository"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/service"
	"github.com/FACorreiaa/patentgrant/pkg/config"
	"github.com/FACorreiaa/patentgrant/pkg/db"
	"github.com/FACorreiaa/patentgrant/pkg/metrics"
	"github.com/FACorreiaa/patentgrant/pkg/storage"
)

// Dependencies holds the wired application components
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *db.DB

	Storage        storage.Storage
	Metrics        *metrics.Metrics
	Client         *bulkdata.Client
	PatentRepo     repository.PatentRepository
	ConvertService *service.ConvertService
}

// InitDependencies wires storage, metrics and the conversion service. The
// database is connected (and migrated) only when withDB is set.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, withDB bool) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if withDB {
		if err := deps.initDatabase(ctx); err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Debug("dependencies initialized", slog.Bool("database", withDB))
	return deps, nil
}

// initDatabase connects to PostgreSQL and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        8,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     10 * time.Second,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := repository.Migrate(ctx, d.DB.SQL()); err != nil {
		return err
	}

	d.PatentRepo = repository.NewPostgresPatentRepository(d.DB.Pool)
	d.Logger.Info("database connected and migrations completed")
	return nil
}

// initServices initializes storage, the download client and the service
func (d *Dependencies) initServices() error {
	fileStorage, err := storage.New(&storage.Config{
		Type:      storage.StorageType(d.Config.Storage.Type),
		LocalPath: d.Config.Storage.LocalPath,
	})
	if err != nil {
		return fmt.Errorf("failed to init archive storage: %w", err)
	}
	d.Storage = fileStorage

	d.Metrics = metrics.New()
	d.Client = bulkdata.NewClient(bulkdata.ClientConfig{
		BaseURL:           d.Config.BulkData.BaseURL,
		Timeout:           d.Config.BulkData.Timeout,
		RequestsPerSecond: d.Config.BulkData.RequestsPerSecond,
	}, d.Logger)

	d.ConvertService = service.NewConvertService(d.Client, d.Storage, d.Logger).
		WithMetrics(d.Metrics).
		WithWorkers(d.Config.BulkData.PrefetchWorkers).
		WithEncoding(parser.Encoding(d.Config.Input.Encoding))
	if d.PatentRepo != nil {
		d.ConvertService.WithRepository(d.PatentRepo)
	}
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
}
