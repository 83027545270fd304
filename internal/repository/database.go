package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

// NewPostgresDB creates a new PostgreSQL database connection pool
func NewPostgresDB(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConnections)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connected successfully",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database),
		zap.Int("max_connections", cfg.Database.MaxConnections))

	if cfg.Database.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database schema up to date")
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS list_entries (
	id            UUID PRIMARY KEY,
	kind          TEXT NOT NULL,
	number_hash   CHAR(64) NOT NULL,
	display_label TEXT NOT NULL DEFAULT '',
	added_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (kind, number_hash)
);

CREATE TABLE IF NOT EXISTS prefix_rules (
	id         UUID PRIMARY KEY,
	pattern    TEXT NOT NULL,
	match_type TEXT NOT NULL,
	action     TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	added_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS seed_entries (
	number_hash      CHAR(64) PRIMARY KEY,
	confidence_score DOUBLE PRECISION NOT NULL,
	category         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS seed_snapshots (
	version     BIGSERIAL PRIMARY KEY,
	entry_count INTEGER NOT NULL,
	replaced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS call_history (
	id          UUID PRIMARY KEY,
	number_hash TEXT NOT NULL DEFAULT '',
	label       TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	category    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_call_history_hash_action ON call_history (number_hash, action);
CREATE INDEX IF NOT EXISTS idx_call_history_recorded_at ON call_history (recorded_at DESC);

CREATE TABLE IF NOT EXISTS screening_settings (
	id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the schema if it does not exist
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
