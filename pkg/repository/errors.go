package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode   = "23505"
	pgForeignKeyCode     = "23503"
	pgSerializationCode  = "40001"
	pgDeadlockCode       = "40P01"
	pgAdminShutdownCode  = "57P01"
	pgCannotConnectCode  = "57P03"
	pgTooManyConnections = "53300"
	pgConnectionClass    = "08"
)

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows to notFoundErr and PostgreSQL unique violation (23505)
// to duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if pgCode(err) == pgDuplicateKeyCode {
		return duplicateErr
	}

	return err
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (23503), i.e. the row references a parent that does not exist.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyCode
}

// IsTransient reports whether err is worth retrying: lost or refused
// connections, serialization failures, deadlocks, and per-attempt timeouts.
// Cancellation of the caller's context is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	switch code := pgCode(err); {
	case code == "":
	case strings.HasPrefix(code, pgConnectionClass),
		code == pgSerializationCode,
		code == pgDeadlockCode,
		code == pgAdminShutdownCode,
		code == pgCannotConnectCode,
		code == pgTooManyConnections:
		return true
	default:
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return pgconn.SafeToRetry(err)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
