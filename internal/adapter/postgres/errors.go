package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// MapError converts pgx/pgconn errors to domain errors.
// context.DeadlineExceeded and context.Canceled are NOT mapped: they pass through.
func MapError(err error, entity string, id string) error {
	if err == nil {
		return nil
	}

	label := entity
	if id != "" {
		label = entity + " " + id
	}

	// context errors pass through as-is
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", label, err)
	}

	// pgx.ErrNoRows → domain.ErrNotFound
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", label, domain.ErrNotFound)
	}

	// PgError codes
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%s: %w", label, domain.ErrAlreadyExists)
		case pgErr.Code == "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", label, domain.ErrNotFound)
		case pgErr.Code == "23514", pgErr.Code == "22P02": // check_violation, invalid_text_representation
			return fmt.Errorf("%s: %w", label, domain.ErrValidation)
		case pgErr.Code == "55000": // append-only trigger
			return fmt.Errorf("%s: %w: %s", label, domain.ErrConflict, pgErr.Message)
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01", pgErr.Code == "53300",
			pgErr.Code == "55P03", pgErr.Code == "57014", // lock_timeout, statement_timeout
			strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%s: %w: %s", label, domain.ErrUnavailable, pgErr.Message)
		}
		return fmt.Errorf("%s: %w", label, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", label, domain.ErrUnavailable, err)
	}

	// Everything else: wrap with context
	return fmt.Errorf("%s: %w", label, err)
}
