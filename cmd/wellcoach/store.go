package main

import (
	"context"
	"fmt"

	"wellcoach/internal/audit"
	"wellcoach/internal/config"
	"wellcoach/internal/observability"
	"wellcoach/internal/storage"
	"wellcoach/internal/storage/records"
)

// backend bundles the stores one driver provides.
type backend struct {
	store storage.Store
	recs  storage.RecommendationStore
	audit audit.Logger
}

// openBackend selects storage by cfg.Storage.Driver. The SQL drivers are
// only available in binaries built with the matching tag (see store_*.go).
func openBackend(ctx context.Context, cfg *config.Config, logger observability.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		mem := storage.NewMemoryStore()
		logger.Info("using in-memory store")
		return &backend{
			store: mem,
			recs:  storage.NewMemoryRecommendationStore(mem),
			audit: audit.NewMemoryLogger(),
		}, nil
	case config.DriverRecords:
		rc := cfg.Storage.Records
		c, err := records.New(records.Config{
			BaseURL:           rc.BaseURL,
			ProjectID:         rc.ProjectID,
			APIKey:            rc.APIKey,
			RequestsPerSecond: rc.RequestsPerSecond,
			Burst:             rc.Burst,
			Timeout:           rc.Timeout,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using hosted record store", "base_url", rc.BaseURL, "project", rc.ProjectID)
		// The hosted tables have no audit table; events are kept in memory.
		return &backend{store: c, recs: c, audit: audit.NewMemoryLogger()}, nil
	case config.DriverSQLite:
		return openSQLite(cfg.Storage.SQLiteDSN, logger)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.Storage.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func migrationStatus(ctx context.Context, cfg *config.Config) (string, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return sqliteStatus(cfg.Storage.SQLiteDSN)
	case config.DriverPostgres:
		return postgresStatus(ctx, cfg.Storage.PostgresURL)
	default:
		return "no migrations for driver " + cfg.Storage.Driver, nil
	}
}
