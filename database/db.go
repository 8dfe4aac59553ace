package database

import (
	"context"
	"database/sql"
	"fmt"

	"candle-shop/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(cfg config.DBConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
	)
	return db, nil
}

// Migrate creates the storefront tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	logger.Info("Database schema up to date", zap.Int("statements", len(schema)))
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price DECIMAL(10, 2) NOT NULL CHECK (price >= 0),
		images TEXT[] NOT NULL CHECK (cardinality(images) >= 1),
		category VARCHAR(32) NOT NULL,
		scent VARCHAR(255) NOT NULL DEFAULT '',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		num_reviews INTEGER NOT NULL DEFAULT 0,
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		height DOUBLE PRECISION NOT NULL DEFAULT 0,
		width DOUBLE PRECISION NOT NULL DEFAULT 0,
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		burn_time INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id SERIAL PRIMARY KEY,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (product_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		address VARCHAR(255) NOT NULL,
		city VARCHAR(255) NOT NULL,
		postal_code VARCHAR(32) NOT NULL,
		country VARCHAR(255) NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		payment_id VARCHAR(255) NOT NULL DEFAULT '',
		gateway_order_id VARCHAR(255) NOT NULL DEFAULT '',
		payment_signature VARCHAR(255) NOT NULL DEFAULT '',
		payment_status VARCHAR(64) NOT NULL DEFAULT '',
		payer_email VARCHAR(255) NOT NULL DEFAULT '',
		items_price DECIMAL(10, 2) NOT NULL,
		tax_price DECIMAL(10, 2) NOT NULL,
		shipping_price DECIMAL(10, 2) NOT NULL,
		total_price DECIMAL(10, 2) NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMP,
		is_delivered BOOLEAN NOT NULL DEFAULT FALSE,
		delivered_at TIMESTAMP,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		tracking_number VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		image TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_created_at ON products (created_at DESC)`,
}
