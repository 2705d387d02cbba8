package store

import (
	"context"
	"database/sql"
)

// DBTX is what the Postgres stores run their statements on. Both *sql.DB
// and *sql.Tx satisfy it, so a store built on a transaction takes part in
// it and a store built on the pool opens its own when it needs one.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is a DBTX that can open transactions, i.e. the pool.
type TxBeginner interface {
	DBTX
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
