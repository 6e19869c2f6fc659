package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/taskflow/internal/store"
)

// constraintErrors maps constraint names from the migrations to sentinel errors.
var constraintErrors = map[string]error{
	"users_pkey":                   store.ErrUserAlreadyExists,
	"users_email_key":              store.ErrUserAlreadyExists,
	"organizations_pkey":           store.ErrOrganizationAlreadyExists,
	"organizations_slug_key":       store.ErrOrganizationAlreadyExists,
	"organizations_db_address_key": store.ErrOrganizationAlreadyExists,
	"organizations_owner_id_fkey":  store.ErrUserNotFound,
	"memberships_pkey":             store.ErrMembershipAlreadyExists,
	"memberships_user_id_fkey":     store.ErrUserNotFound,
	"memberships_org_id_fkey":      store.ErrOrganizationNotFound,
}

// mapPostgresError maps PostgreSQL-specific errors to sentinel errors.
// Returns the original error if it's not a PostgreSQL error or doesn't match known patterns.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation, pgerrcode.ForeignKeyViolation:
		if sentinel, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %s", sentinel, pgErr.ConstraintName)
		}
		return fmt.Errorf("constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict (retryable): %w", err)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)

	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)

	default:
		return fmt.Errorf("postgres error [%s]: %s (detail: %s, hint: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.Hint, err)
	}
}
