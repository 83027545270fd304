package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// ListRepository handles database operations for one hash list
type ListRepository struct {
	db     *pgxpool.Pool
	kind   models.ListKind
	logger *zap.Logger
}

// NewListRepository creates a repository for the given list kind
func NewListRepository(db *pgxpool.Pool, kind models.ListKind, logger *zap.Logger) *ListRepository {
	return &ListRepository{
		db:     db,
		kind:   kind,
		logger: logger.With(zap.String("list", string(kind))),
	}
}

// Contains reports whether hash is on the list
func (r *ListRepository) Contains(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	defer func() {
		r.logger.Debug("list lookup completed", zap.Duration("duration", time.Since(start)))
	}()

	query := `SELECT EXISTS (SELECT 1 FROM list_entries WHERE kind = $1 AND number_hash = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, r.kind, hash).Scan(&exists); err != nil {
		r.logger.Error("failed to lookup list entry", zap.Error(err))
		return false, fmt.Errorf("failed to lookup %s entry: %w", r.kind, err)
	}
	return exists, nil
}

// Add inserts hash or refreshes its label
func (r *ListRepository) Add(ctx context.Context, hash, label string) (*models.ListEntry, error) {
	entry := &models.ListEntry{
		ID:           uuid.New(),
		NumberHash:   hash,
		DisplayLabel: label,
		AddedAt:      time.Now().UTC(),
	}

	query := `
		INSERT INTO list_entries (id, kind, number_hash, display_label, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, number_hash)
		DO UPDATE SET display_label = EXCLUDED.display_label
		RETURNING id, added_at`

	err := r.db.QueryRow(ctx, query,
		entry.ID, r.kind, entry.NumberHash, entry.DisplayLabel, entry.AddedAt,
	).Scan(&entry.ID, &entry.AddedAt)
	if err != nil {
		r.logger.Error("failed to add list entry", zap.Error(err))
		return nil, fmt.Errorf("failed to add %s entry: %w", r.kind, err)
	}

	return entry, nil
}

// Remove deletes hash from the list
func (r *ListRepository) Remove(ctx context.Context, hash string) error {
	query := `DELETE FROM list_entries WHERE kind = $1 AND number_hash = $2`

	if _, err := r.db.Exec(ctx, query, r.kind, hash); err != nil {
		r.logger.Error("failed to remove list entry", zap.Error(err))
		return fmt.Errorf("failed to remove %s entry: %w", r.kind, err)
	}
	return nil
}

// List returns a page of entries, newest first, and the total count
func (r *ListRepository) List(ctx context.Context, limit, offset int) ([]*models.ListEntry, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM list_entries WHERE kind = $1`
	if err := r.db.QueryRow(ctx, countQuery, r.kind).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s entries: %w", r.kind, err)
	}

	query := `
		SELECT id, number_hash, display_label, added_at
		FROM list_entries
		WHERE kind = $1
		ORDER BY added_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, r.kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s entries: %w", r.kind, err)
	}
	defer rows.Close()

	var entries []*models.ListEntry
	for rows.Next() {
		var entry models.ListEntry
		if err := rows.Scan(&entry.ID, &entry.NumberHash, &entry.DisplayLabel, &entry.AddedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s entry: %w", r.kind, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate %s entries: %w", r.kind, err)
	}

	return entries, total, nil
}

// Clear removes every entry of this list
func (r *ListRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM list_entries WHERE kind = $1`, r.kind); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.kind, err)
	}
	r.logger.Info("list cleared")
	return nil
}
