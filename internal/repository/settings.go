package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// SettingsRepository stores the settings document as a single JSONB row
type SettingsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *pgxpool.Pool, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// Load returns the stored document or nil
func (r *SettingsRepository) Load(ctx context.Context) (*models.SettingsDocument, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM screening_settings WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var doc models.SettingsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &doc, nil
}

// Save upserts the document
func (r *SettingsRepository) Save(ctx context.Context, doc *models.SettingsDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO screening_settings (id, document, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, raw, doc.UpdatedAt); err != nil {
		r.logger.Error("failed to save settings", zap.Error(err))
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Clear deletes the document so defaults apply again
func (r *SettingsRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM screening_settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}
