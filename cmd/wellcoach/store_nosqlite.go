//go:build !sqlite

package main

import (
	"errors"

	"wellcoach/internal/observability"
)

var errNoSQLite = errors.New("sqlite driver not compiled in; rebuild with -tags sqlite")

func openSQLite(string, observability.Logger) (*backend, error) { return nil, errNoSQLite }

func sqliteStatus(string) (string, error) { return "", errNoSQLite }
