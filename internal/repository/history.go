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

// HistoryRepository records screened calls
type HistoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *pgxpool.Pool, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Record inserts one history row
func (r *HistoryRepository) Record(ctx context.Context, record *models.HistoryRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO call_history (id, number_hash, label, action, score, category, source, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.NumberHash, record.Label, record.Action,
		record.Score, record.Category, record.Source, record.RecordedAt,
	)
	if err != nil {
		r.logger.Error("failed to record call history", zap.Error(err))
		return fmt.Errorf("failed to record call history: %w", err)
	}
	return nil
}

// CountByAction counts every history row for hash with the given action
func (r *HistoryRepository) CountByAction(ctx context.Context, hash string, action models.DecisionAction) (int, error) {
	query := `SELECT COUNT(*) FROM call_history WHERE number_hash = $1 AND action = $2`

	var count int
	if err := r.db.QueryRow(ctx, query, hash, action).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count call history: %w", err)
	}
	return count, nil
}

// Recent returns history rows, newest first
func (r *HistoryRepository) Recent(ctx context.Context, limit, offset int) ([]*models.HistoryRecord, error) {
	query := `
		SELECT id, number_hash, label, action, score, category, source, recorded_at
		FROM call_history
		ORDER BY recorded_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list call history: %w", err)
	}
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		if err := rows.Scan(
			&rec.ID, &rec.NumberHash, &rec.Label, &rec.Action,
			&rec.Score, &rec.Category, &rec.Source, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call history: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call history: %w", err)
	}
	return records, nil
}

// Clear removes all history
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM call_history`); err != nil {
		return fmt.Errorf("failed to clear call history: %w", err)
	}
	return nil
}
