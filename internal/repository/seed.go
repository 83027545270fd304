package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// SeedRepository stores the curated seed snapshot
type SeedRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSeedRepository creates a new seed repository
func NewSeedRepository(db *pgxpool.Pool, logger *zap.Logger) *SeedRepository {
	return &SeedRepository{db: db, logger: logger}
}

// LoadSnapshot reads the whole current snapshot
func (r *SeedRepository) LoadSnapshot(ctx context.Context) ([]models.SeedEntry, error) {
	start := time.Now()

	rows, err := r.db.Query(ctx, `SELECT number_hash, confidence_score, category FROM seed_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed snapshot: %w", err)
	}
	defer rows.Close()

	var entries []models.SeedEntry
	for rows.Next() {
		var e models.SeedEntry
		if err := rows.Scan(&e.NumberHash, &e.ConfidenceScore, &e.Category); err != nil {
			return nil, fmt.Errorf("failed to scan seed entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seed entries: %w", err)
	}

	r.logger.Debug("seed snapshot loaded",
		zap.Int("entries", len(entries)),
		zap.Duration("duration", time.Since(start)))

	return entries, nil
}

// ReplaceSnapshot stages entries with COPY, verifies the staged row count and
// swaps the live table inside one transaction. Readers see the old snapshot
// until commit.
func (r *SeedRepository) ReplaceSnapshot(ctx context.Context, entries []models.SeedEntry) error {
	start := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE seed_staging (
			number_hash      CHAR(64) PRIMARY KEY,
			confidence_score DOUBLE PRECISION NOT NULL,
			category         TEXT NOT NULL
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"seed_staging"},
		[]string{"number_hash", "confidence_score", "category"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.NumberHash, e.ConfidenceScore, e.Category}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy seed entries: %w", err)
	}

	var staged int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM seed_staging`).Scan(&staged); err != nil {
		return fmt.Errorf("failed to verify staged seed entries: %w", err)
	}
	if err := verifyStaged(staged, copied, len(entries)); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM seed_entries`); err != nil {
		return fmt.Errorf("failed to clear seed entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO seed_entries SELECT number_hash, confidence_score, category FROM seed_staging`); err != nil {
		return fmt.Errorf("failed to swap seed entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO seed_snapshots (entry_count) VALUES ($1)`, len(entries)); err != nil {
		return fmt.Errorf("failed to record seed snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed snapshot: %w", err)
	}

	r.logger.Info("seed snapshot replaced",
		zap.Int("entries", len(entries)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// verifyStaged rejects a snapshot unless COPY and the staging table both hold every entry
func verifyStaged(staged, copied int64, expected int) error {
	if staged != copied || staged != int64(expected) {
		return fmt.Errorf("%w: staged %d, copied %d of %d entries", ErrSnapshotRejected, staged, copied, expected)
	}
	return nil
}
