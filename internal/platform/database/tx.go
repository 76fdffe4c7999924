package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Executor is the subset of *sql.DB and *sql.Tx used by repositories.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Transactor runs functions inside a single database transaction. The open
// transaction travels on the context so every repository that resolves its
// executor through Conn joins it.
type Transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor { return &Transactor{db: db} }

// RunInTx begins a transaction, runs fn and commits when fn returns nil.
// Calls nested inside an active transaction join it instead of opening a new one.
func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithinTx(ctx, t.db, fn)
}

// WithinTx is RunInTx for callers holding a bare *sql.DB.
func WithinTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Conn returns the transaction bound to ctx, or db when there is none.
func Conn(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
