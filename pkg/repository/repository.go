// Package repository provides database helper functions for transaction management,
// query execution, and bounded retries of transient failures.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/JaimeStill/pulse/pkg/retry"
)

// Querier is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner abstracts row scanning for use with query helpers.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc converts a Scanner into a typed value.
// Domain packages define their own scan functions for entity types.
type ScanFunc[T any] func(Scanner) (T, error)

// WithTx executes fn within a database transaction.
// It handles Begin, Commit, and Rollback automatically.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, err
	}

	return result, nil
}

// Attempt runs fn under policy, giving each attempt its own timeout.
// Only transient failures are retried; see IsTransient.
func Attempt(ctx context.Context, policy retry.Policy, timeout time.Duration, fn func(ctx context.Context) error) error {
	policy.Retryable = IsTransient
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		if timeout <= 0 {
			return fn(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(attemptCtx)
	})
}

// QueryOne executes a query expected to return a single row.
func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	var zero T
	row := q.QueryRowContext(ctx, query, args...)
	result, err := scan(row)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// QueryMany executes a query expected to return multiple rows.
// Returns an empty slice if no rows are found.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// ExecCount executes a statement and returns the number of affected rows.
func ExecCount(ctx context.Context, e Executor, query string, args ...any) (int64, error) {
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExecExpectOne executes a statement expected to affect exactly one row.
// Returns sql.ErrNoRows if no rows were affected.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	rows, err := ExecCount(ctx, e, query, args...)
	if err != nil {
		return err
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Retrier binds a retry policy and per-attempt timeout for repeated use.
type Retrier struct {
	Policy  retry.Policy
	Timeout time.Duration
}

// Do runs fn through Attempt with the bound policy and timeout.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Attempt(ctx, r.Policy, r.Timeout, fn)
}
