package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"webscout/internal/domain"
	"webscout/internal/ports"
)

var _ ports.SourceRepository = (*SourceRepo)(nil)

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

const sourceColumns = `url, platform, strategy, discovery, parent_url, trust,
	active, last_crawled_at, total_docs, high_value_docs`

// Upsert registers a source keyed by its normalized URL. A URL already
// known is a no-op and reports false, so rediscovery never resets
// earned trust.
func (r *SourceRepo) Upsert(ctx context.Context, src domain.Source) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (url, platform, strategy, discovery, parent_url, trust, active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (url) DO NOTHING`,
		src.URL, src.Platform, src.Strategy, string(src.Discovery),
		src.ParentURL, src.Trust, src.Active)
	if err != nil {
		return false, fmt.Errorf("upsert source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert source rows: %w", err)
	}
	return n > 0, nil
}

func (r *SourceRepo) Get(ctx context.Context, url string) (domain.Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE url = $1`, url)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

func (r *SourceRepo) ListActive(ctx context.Context) ([]domain.Source, error) {
	return r.list(ctx, psql.Select(sourceColumns).From("sources").
		Where(sq.Eq{"active": true}).OrderBy("url ASC"))
}

func (r *SourceRepo) ListAll(ctx context.Context) ([]domain.Source, error) {
	return r.list(ctx, psql.Select(sourceColumns).From("sources").OrderBy("url ASC"))
}

func (r *SourceRepo) list(ctx context.Context, q sq.SelectBuilder) ([]domain.Source, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

func (r *SourceRepo) SetTrust(ctx context.Context, url string, trust float64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE sources SET trust = $2 WHERE url = $1`, url, trust); err != nil {
		return fmt.Errorf("set trust: %w", err)
	}
	return nil
}

func (r *SourceRepo) SetActive(ctx context.Context, url string, active bool) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE sources SET active = $2 WHERE url = $1`, url, active); err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

func (r *SourceRepo) MarkCrawled(ctx context.Context, url string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE sources SET last_crawled_at = $2 WHERE url = $1`, url, at); err != nil {
		return fmt.Errorf("mark crawled: %w", err)
	}
	return nil
}

// RefreshCounts re-derives per-source document counters from the
// documents table. Only scored documents count toward the totals.
func (r *SourceRepo) RefreshCounts(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE sources s
		SET total_docs = d.total, high_value_docs = d.high
		FROM (
			SELECT source_url,
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE high_value) AS high
			FROM documents
			WHERE value_score IS NOT NULL
			GROUP BY source_url
		) d
		WHERE s.url = d.source_url`); err != nil {
		return fmt.Errorf("refresh counts: %w", err)
	}
	return nil
}

func scanSource(row rowScanner) (domain.Source, error) {
	var (
		src       domain.Source
		discovery string
		parent    sql.NullString
		crawled   sql.NullTime
	)
	err := row.Scan(&src.URL, &src.Platform, &src.Strategy, &discovery,
		&parent, &src.Trust, &src.Active, &crawled,
		&src.TotalDocs, &src.HighValueDocs)
	if err != nil {
		return domain.Source{}, err
	}
	src.Discovery = domain.DiscoveryMethod(discovery)
	src.ParentURL = parent.String
	src.LastCrawledAt = crawled.Time
	return src, nil
}
