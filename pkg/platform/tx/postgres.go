package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "cliquey/pkg/domain-errors"
)

// PostgresRunner runs fn inside a database/sql transaction.
type PostgresRunner struct {
	db      *sql.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

type PostgresOption func(*PostgresRunner)

func WithTimeout(d time.Duration) PostgresOption {
	return func(r *PostgresRunner) { r.timeout = d }
}

func WithTxOptions(opts *sql.TxOptions) PostgresOption {
	return func(r *PostgresRunner) { r.opts = opts }
}

func NewPostgresRunner(db *sql.DB, opts ...PostgresOption) *PostgresRunner {
	r := &PostgresRunner{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PostgresRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested boundaries join the outer transaction.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, r.opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
