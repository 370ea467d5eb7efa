package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id                TEXT PRIMARY KEY,
			kind              TEXT NOT NULL DEFAULT 'product',
			email             TEXT NOT NULL,
			unit_amount       NUMERIC(12,2) NOT NULL DEFAULT 0,
			quantity          BIGINT NOT NULL DEFAULT 1,
			line_items        JSONB,
			active            BOOLEAN NOT NULL DEFAULT TRUE,
			next_billing_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_due
			ON subscriptions(active, next_billing_date);

		CREATE TABLE IF NOT EXISTS payment_profiles (
			email             TEXT PRIMARY KEY,
			customer_id       TEXT NOT NULL,
			payment_method_id TEXT NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
