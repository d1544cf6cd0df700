package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the storage layer.
// HTTP handlers should use errors.Is() to map these to appropriate HTTP status codes.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation conflicts with existing state
	// (e.g., a duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates the input failed validation
	// (e.g., missing required fields or a dangling reference).
	ErrValidation = errors.New("validation error")

	// ErrUpstream indicates the backing service failed for infrastructure
	// reasons (network, 5xx, malformed response).
	ErrUpstream = errors.New("upstream error")
)

// Invalid wraps a domain validation error as ErrValidation.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// WrapIfConflict wraps a database error as ErrConflict if it represents a
// unique constraint violation, or as ErrValidation if it is a foreign key
// violation. Both SQLite and PostgreSQL driver messages are recognised.
func WrapIfConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "FOREIGN KEY") || strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}
