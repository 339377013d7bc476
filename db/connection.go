package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Connect opens the Postgres pool, retrying while the database container starts.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration, log *logrus.Logger) (*sqlx.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var (
		conn *sqlx.DB
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = sqlx.ConnectContext(ctx, "postgres", url)
		if err == nil {
			break
		}
		log.WithError(err).Warnf("database connection attempt %d failed", i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(30 * time.Minute)
	return conn, nil
}

// Migrate creates the schema. Statements are idempotent.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	schema := `
		CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			username VARCHAR(20) NOT NULL,
			email VARCHAR(254) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			display_name VARCHAR(60) NOT NULL DEFAULT '',
			bio TEXT,
			avatar_url VARCHAR(500),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		-- Handles and emails are stored lowercase; the indexes enforce it case-insensitively anyway.
		CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (LOWER(username));
		CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email));

		CREATE TABLE IF NOT EXISTS projects (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(140) NOT NULL,
			summary VARCHAR(280) NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'draft',
			cover_url VARCHAR(500),
			cover_blurhash VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			published_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_projects_creator ON projects (creator_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS tiers (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(80) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
			currency CHAR(3) NOT NULL,
			benefits TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tiers_creator ON tiers (creator_id);

		CREATE TABLE IF NOT EXISTS memberships (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tier_id UUID NOT NULL REFERENCES tiers(id) ON DELETE CASCADE,
			creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			supporter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			tier_name VARCHAR(80) NOT NULL,
			price_cents BIGINT NOT NULL,
			currency CHAR(3) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			cancelled_at TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS memberships_active_key
			ON memberships (supporter_id, creator_id) WHERE status = 'active';
		CREATE INDEX IF NOT EXISTS idx_memberships_creator ON memberships (creator_id, status);

		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(120) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
			currency CHAR(3) NOT NULL,
			stock INTEGER NOT NULL CHECK (stock >= 0),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			image_url VARCHAR(500),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_products_creator ON products (creator_id);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			product_id UUID REFERENCES products(id) ON DELETE SET NULL,
			buyer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			seller_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			product_name VARCHAR(120) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price_cents BIGINT NOT NULL,
			total_cents BIGINT NOT NULL,
			currency CHAR(3) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders (buyer_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders (seller_id, created_at DESC);
	`

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
