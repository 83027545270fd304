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

// PrefixRuleRepository handles database operations for prefix rules
type PrefixRuleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPrefixRuleRepository creates a new prefix rule repository
func NewPrefixRuleRepository(db *pgxpool.Pool, logger *zap.Logger) *PrefixRuleRepository {
	return &PrefixRuleRepository{db: db, logger: logger}
}

// ListRules returns every rule in insertion order
func (r *PrefixRuleRepository) ListRules(ctx context.Context) ([]models.PrefixRule, error) {
	query := `
		SELECT id, pattern, match_type, action, label, added_at
		FROM prefix_rules
		ORDER BY added_at, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list prefix rules: %w", err)
	}
	defer rows.Close()

	var rules []models.PrefixRule
	for rows.Next() {
		var rule models.PrefixRule
		if err := rows.Scan(&rule.ID, &rule.Pattern, &rule.MatchType, &rule.Action, &rule.Label, &rule.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prefix rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prefix rules: %w", err)
	}
	return rules, nil
}

// CreateRule stores rule, assigning ID and AddedAt when unset
func (r *PrefixRuleRepository) CreateRule(ctx context.Context, rule *models.PrefixRule) error {
	if !rule.Valid() {
		return ErrInvalidInput
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.AddedAt.IsZero() {
		rule.AddedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO prefix_rules (id, pattern, match_type, action, label, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query, rule.ID, rule.Pattern, rule.MatchType, rule.Action, rule.Label, rule.AddedAt)
	if err != nil {
		r.logger.Error("failed to create prefix rule", zap.Error(err), zap.String("pattern", rule.Pattern))
		return fmt.Errorf("failed to create prefix rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule by ID
func (r *PrefixRuleRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM prefix_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prefix rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearRules removes every rule
func (r *PrefixRuleRepository) ClearRules(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM prefix_rules`); err != nil {
		return fmt.Errorf("failed to clear prefix rules: %w", err)
	}
	return nil
}
