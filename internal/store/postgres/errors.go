package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gosuda/tenantgraph/internal/domain"
)

// mapError maps PostgreSQL error codes to domain sentinels. Unique
// violations become domain.ErrConflict so callers can recognize the
// concurrent-bootstrap race and retry.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("constraint %s: %w", pgErr.ConstraintName, domain.ErrConflict)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("constraint %s: %w", pgErr.ConstraintName, domain.ErrNotFound)
	default:
		return err
	}
}
