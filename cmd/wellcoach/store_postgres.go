//go:build postgres

package main

import (
	"context"
	"errors"

	"wellcoach/internal/audit"
	"wellcoach/internal/observability"
	pgstore "wellcoach/internal/storage/postgres"
)

// openPostgres connects to PostgreSQL; migrations run on connect.
func openPostgres(ctx context.Context, url string, logger observability.Logger) (*backend, error) {
	if url == "" {
		return nil, errors.New("storage.postgres_url is required for the postgres driver")
	}
	st, err := pgstore.New(ctx, url)
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres store")
	return &backend{store: st, recs: st, audit: audit.NewPostgresLogger(st.Pool())}, nil
}

func postgresStatus(ctx context.Context, url string) (string, error) {
	return pgstore.Status(ctx, url)
}
