package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studytrack/backend/internal/db"
)

var ErrNotFound = errors.New("not found")

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// base holds the handle and dialect shared by every repository. Queries are
// written with ? placeholders and rebound here.
type base struct {
	db      *sql.DB
	dialect db.Dialect
}

func (b base) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (b base) exec(ctx context.Context, q Querier, query string, args ...interface{}) (sql.Result, error) {
	return q.ExecContext(ctx, b.dialect.Rebind(query), args...)
}

func (b base) query(ctx context.Context, q Querier, query string, args ...interface{}) (*sql.Rows, error) {
	return q.QueryContext(ctx, b.dialect.Rebind(query), args...)
}

func (b base) queryRow(ctx context.Context, q Querier, query string, args ...interface{}) *sql.Row {
	return q.QueryRowContext(ctx, b.dialect.Rebind(query), args...)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
