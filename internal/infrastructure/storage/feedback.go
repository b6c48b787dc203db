package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"webscout/internal/domain"
	"webscout/internal/ports"
)

var (
	_ ports.FeedbackRepository = (*FeedbackRepo)(nil)
	_ ports.FlagRepository     = (*FlagRepo)(nil)
)

type FeedbackRepo struct {
	db *sql.DB
}

func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

func (r *FeedbackRepo) Insert(ctx context.Context, ev domain.FeedbackEvent) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback_events (id, document_id, type, score, category, source_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		ev.ID, ev.DocumentID, string(ev.Type), ev.Score, ev.Category, ev.SourceURL); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListSince returns events created at or after t, oldest first.
func (r *FeedbackRepo) ListSince(ctx context.Context, t time.Time) ([]domain.FeedbackEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_id, type, score, COALESCE(category, ''),
			COALESCE(source_url, ''), created_at
		FROM feedback_events
		WHERE created_at >= $1
		ORDER BY created_at ASC`, t)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var events []domain.FeedbackEvent
	for rows.Next() {
		var ev domain.FeedbackEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.DocumentID, &typ, &ev.Score,
			&ev.Category, &ev.SourceURL, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		ev.Type = domain.FeedbackType(typ)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return events, nil
}

type FlagRepo struct {
	db *sql.DB
}

func NewFlagRepo(db *sql.DB) *FlagRepo {
	return &FlagRepo{db: db}
}

func (r *FlagRepo) Insert(ctx context.Context, rec domain.FlagRecord) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO flagged_content (document_id, reason, severity, category, source_url)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))`,
		rec.DocumentID, rec.Reason, rec.Severity, rec.Category, rec.SourceURL); err != nil {
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}

// PatternsSince aggregates flags inside the window by category and
// reason. Flags without a category snapshot are left out since the
// learner cannot attribute them.
func (r *FlagRepo) PatternsSince(ctx context.Context, t time.Time) ([]domain.FlagPattern, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, reason, COUNT(*)
		FROM flagged_content
		WHERE created_at >= $1 AND category IS NOT NULL
		GROUP BY category, reason
		ORDER BY category, reason`, t)
	if err != nil {
		return nil, fmt.Errorf("query flag patterns: %w", err)
	}
	defer rows.Close()

	var patterns []domain.FlagPattern
	for rows.Next() {
		var p domain.FlagPattern
		if err := rows.Scan(&p.Category, &p.Reason, &p.Count); err != nil {
			return nil, fmt.Errorf("scan flag pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flag patterns: %w", err)
	}
	return patterns, nil
}
