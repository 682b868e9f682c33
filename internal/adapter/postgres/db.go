package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/user/crawl-tracker/internal/entity"
)

// driverName selects dollar placeholders for sqlx.Rebind.
const driverName = "pgx"

const uniqueViolation = "23505"

// DB is a sqlx handle backed by a pgx connection pool.
type DB struct {
	*sqlx.DB
	pool *pgxpool.Pool
}

// Open creates the pgx pool and wraps it for database/sql access.
func Open(ctx context.Context, dsn string, maxConns int) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return &DB{
		DB:   sqlx.NewDb(stdlib.OpenDBFromPool(pool), driverName),
		pool: pool,
	}, nil
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	err := db.DB.Close()
	db.pool.Close()
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// getOrCreate runs an insert-or-return upsert. When the statement yields no
// row, because a concurrent insert won but is not visible to this statement's
// snapshot, or fails with a unique violation, the row is re-fetched by key
// exactly once.
func getOrCreate[T any](ctx context.Context, db sqlx.QueryerContext, op, upsert string, args []any, refetch string, key any) (*T, error) {
	var row T
	err := sqlx.GetContext(ctx, db, &row, upsert, args...)
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !isUniqueViolation(err) {
		return nil, &entity.StoreError{Op: op, Err: err}
	}

	if err := sqlx.GetContext(ctx, db, &row, refetch, key); err != nil {
		return nil, &entity.StoreError{Op: op, Err: fmt.Errorf("re-fetch after conflict: %w", err)}
	}
	return &row, nil
}

func storeErr(op string, err error) error {
	return &entity.StoreError{Op: op, Err: err}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
