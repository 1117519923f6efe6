// Package database owns the PostgreSQL pool behind the tutor portal store and
// applies the embedded schema.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// migrationLock is the advisory lock key held while the schema is applied,
// so replicas starting together run the DDL one at a time.
const migrationLock int64 = 0x7475746f72 // "tutor"

const (
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
)

// Options configures the pool. Zero durations take the defaults above.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DB holds the pool shared by the progress store and the quiz attempt log.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

func poolConfig(opts Options) (*pgxpool.Config, error) {
	cfg, err := ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		cfg.MinConns = int32(opts.MinConns)
	}
	if cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", cfg.MinConns, cfg.MaxConns)
	}

	cfg.MaxConnLifetime = opts.MaxConnLifetime
	if cfg.MaxConnLifetime <= 0 {
		cfg.MaxConnLifetime = defaultMaxConnLifetime
	}
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	if cfg.MaxConnIdleTime <= 0 {
		cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	return cfg, nil
}

// New opens the pool and verifies it with a ping.
func New(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := poolConfig(opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate applies the embedded schema inside one transaction under the
// migration advisory lock. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLock); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Schema returns the embedded DDL.
func Schema() string {
	return schema
}

// Close shuts down the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck pings the database and confirms the progress table exists, so
// readiness fails on an unmigrated database.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return err
	}
	var ok bool
	if err := db.Pool.QueryRow(ctx, "SELECT to_regclass('progress') IS NOT NULL").Scan(&ok); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if !ok {
		return fmt.Errorf("schema not applied: progress table missing")
	}
	return nil
}
