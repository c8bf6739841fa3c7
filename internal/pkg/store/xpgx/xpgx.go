// Package xpgx склеивает squirrel-билдеры с pgx: запрос строится билдером,
// а выполняется на пуле или внутри транзакции.
package xpgx

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Pool struct {
	*pgxpool.Pool
}

func New(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// InTx runs fn in a transaction that is committed when fn returns nil and
// rolled back otherwise.
func (p *Pool) InTx(ctx context.Context, fn func(tx DB) error) error {
	return pgx.BeginFunc(ctx, p.Pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

func Execx(ctx context.Context, db DB, query sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("ToSql: %w", err)
	}

	return db.Exec(ctx, sql, args...)
}

// Selectx maps every row onto T by `db` struct tags.
func Selectx[T any](ctx context.Context, db DB, query sq.Sqlizer) ([]T, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ToSql: %w", err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

// Getx returns pgx.ErrNoRows when the query yields nothing.
func Getx[T any](ctx context.Context, db DB, query sq.Sqlizer) (T, error) {
	var zero T

	sql, args, err := query.ToSql()
	if err != nil {
		return zero, fmt.Errorf("ToSql: %w", err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return zero, err
	}

	return pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
}
