package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound             = errors.New("requested resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrBadRequest           = errors.New("bad request")
	ErrForbidden            = errors.New("forbidden access")
	ErrInternalServer       = errors.New("internal server error")
	ErrVersionConflict      = errors.New("record was modified concurrently")
	ErrConcurrencyExhausted = errors.New("conditional write retries exhausted")
	ErrUpstreamUnavailable  = errors.New("upstream data source unavailable")
	ErrProcessingFailed     = errors.New("unit processing failed")
	ErrStoreUnavailable     = errors.New("record store unavailable")
	ErrInvalidMessage       = errors.New("malformed queue message")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidMessage) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrConcurrencyExhausted) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}

	// Check for pgx specific errors (example for unique constraint)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
