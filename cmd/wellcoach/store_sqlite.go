//go:build sqlite

package main

import (
	"wellcoach/internal/audit"
	"wellcoach/internal/observability"
	sqlitestore "wellcoach/internal/storage/sqlite"
)

// openSQLite opens the SQLite store; migrations run on open.
func openSQLite(dsn string, logger observability.Logger) (*backend, error) {
	st, err := sqlitestore.New(dsn)
	if err != nil {
		return nil, err
	}
	logger.Info("using sqlite store", "dsn", dsn)
	return &backend{store: st, recs: st, audit: audit.NewSQLiteLogger(st.DB())}, nil
}

func sqliteStatus(dsn string) (string, error) {
	return sqlitestore.Status(dsn)
}
