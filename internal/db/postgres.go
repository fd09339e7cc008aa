// Package db owns the Postgres connection pool.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sitesmithapp/sitesmith/config"
)

const (
	minConns        = 2
	maxConnLifetime = time.Hour
	maxConnIdleTime = 30 * time.Minute
	connectTimeout  = 10 * time.Second
)

type (
	Row  = pgx.Row
	Rows = pgx.Rows
)

// Querier runs statements on the pool or inside a transaction. Exec
// returns the number of affected rows.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
}

// pgxQuerier is what *pgxpool.Pool and pgx.Tx have in common.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier struct {
	q pgxQuerier
}

func (c querier) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return c.q.QueryRow(ctx, query, args...)
}

func (c querier) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return c.q.Query(ctx, query, args...)
}

func (c querier) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	tag, err := c.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type PostgresClient struct {
	querier
	Pool *pgxpool.Pool
}

// PoolConfig turns the app config into pool settings.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	// Prepared statements break behind transaction-mode poolers (pgbouncer, Neon).
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	poolConfig.MaxConns = int32(max(cfg.DBMaxConns, minConns))
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	return poolConfig, nil
}

// NewPostgresClient opens the pool and checks the database answers.
func NewPostgresClient(cfg *config.Config) (*PostgresClient, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresClient{querier: querier{q: pool}, Pool: pool}, nil
}

func (c *PostgresClient) Close() {
	c.Pool.Close()
}

// Ping reports whether the database answers. The health endpoint uses it.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// SQLDB exposes the pool as a *sql.DB for tools that need database/sql,
// such as the migration runner. Closing it does not close the pool.
func (c *PostgresClient) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(c.Pool)
}

// Tx is an open transaction. Rollback after Commit is a no-op.
type Tx struct {
	querier
	tx pgx.Tx
}

func (c *PostgresClient) Begin(ctx context.Context) (*Tx, error) {
	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{querier: querier{q: tx}, tx: tx}, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
