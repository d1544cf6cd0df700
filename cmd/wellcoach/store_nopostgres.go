//go:build !postgres

package main

import (
	"context"
	"errors"

	"wellcoach/internal/observability"
)

var errNoPostgres = errors.New("postgres driver not compiled in; rebuild with -tags postgres")

func openPostgres(context.Context, string, observability.Logger) (*backend, error) {
	return nil, errNoPostgres
}

func postgresStatus(context.Context, string) (string, error) { return "", errNoPostgres }
