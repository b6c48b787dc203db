package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"webscout/internal/domain"
	"webscout/internal/ports"
)

var _ ports.CategoryRepository = (*CategoryRepo)(nil)

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// EnsureDefaults seeds the configured profiles. Existing rows keep
// their base weight, learned adjustment, and counters; only the
// descriptive fields follow the config.
func (r *CategoryRepo) EnsureDefaults(ctx context.Context, cats []domain.CategoryProfile) error {
	for _, c := range cats {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO categories (key, ordinal, name, keywords, base_weight, boost)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (key) DO UPDATE SET
				ordinal = EXCLUDED.ordinal,
				name = EXCLUDED.name,
				keywords = EXCLUDED.keywords,
				boost = EXCLUDED.boost`,
			c.Key, c.Ordinal, c.Name, pq.Array(c.Keywords), c.BaseWeight, c.Boost); err != nil {
			return fmt.Errorf("ensure category %s: %w", c.Key, err)
		}
	}
	return nil
}

// List returns every profile in configured ordinal order.
func (r *CategoryRepo) List(ctx context.Context) ([]domain.CategoryProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, ordinal, name, keywords, base_weight, learning_adjustment,
			boost, positive_count, negative_count
		FROM categories
		ORDER BY ordinal ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.CategoryProfile
	for rows.Next() {
		var c domain.CategoryProfile
		var keywords pq.StringArray
		if err := rows.Scan(&c.Key, &c.Ordinal, &c.Name, &keywords,
			&c.BaseWeight, &c.LearningAdjustment, &c.Boost,
			&c.PositiveCount, &c.NegativeCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Keywords = keywords
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

func (r *CategoryRepo) UpdateLearning(ctx context.Context, key string, adjustment float64, posDelta, negDelta int) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET learning_adjustment = $2,
			positive_count = positive_count + $3,
			negative_count = negative_count + $4
		WHERE key = $1`,
		key, adjustment, posDelta, negDelta); err != nil {
		return fmt.Errorf("update learning for %s: %w", key, err)
	}
	return nil
}

func (r *CategoryRepo) SetBaseWeight(ctx context.Context, key string, weight float64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE categories SET base_weight = $2 WHERE key = $1`, key, weight); err != nil {
		return fmt.Errorf("set base weight for %s: %w", key, err)
	}
	return nil
}
