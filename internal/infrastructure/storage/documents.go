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
	"webscout/internal/scoring"
)

var _ ports.DocumentRepository = (*DocumentRepo)(nil)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `id, title, url, content, summary, source_url, topic,
	interest_score, value_score, novelty_score, high_value, feedback, favorite,
	embedding, published_at, created_at, updated_at`

// Insert stores a new document. A duplicate id is a no-op and reports
// false, so replayed crawls never clobber scored rows.
func (r *DocumentRepo) Insert(ctx context.Context, doc domain.Document) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, url, content, source_url, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Title, doc.URL, doc.Content, doc.SourceURL, nullTime(doc.PublishedAt))
	if err != nil {
		return false, fmt.Errorf("insert document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert document rows: %w", err)
	}
	return n > 0, nil
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListUnscored returns documents with content awaiting a scoring pass,
// oldest first.
func (r *DocumentRepo) ListUnscored(ctx context.Context) ([]domain.Document, error) {
	q := psql.Select(documentColumns).
		From("documents").
		Where("value_score IS NULL").
		Where("content IS NOT NULL AND content <> ''").
		OrderBy("created_at ASC")
	return r.queryDocuments(ctx, q)
}

// ListUnsummarized returns scored documents without a summary whose
// content is long enough to summarize, newest first.
func (r *DocumentRepo) ListUnsummarized(ctx context.Context, minContentLen, limit int) ([]domain.Document, error) {
	q := psql.Select(documentColumns).
		From("documents").
		Where("summary IS NULL").
		Where("value_score IS NOT NULL").
		Where(sq.Expr("LENGTH(content) > ?", minContentLen)).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	return r.queryDocuments(ctx, q)
}

// TopScored returns the highest-value scored documents for the digest.
func (r *DocumentRepo) TopScored(ctx context.Context, limit int) ([]domain.Document, error) {
	q := psql.Select(documentColumns).
		From("documents").
		Where("value_score IS NOT NULL").
		OrderBy("value_score DESC", "created_at DESC").
		Limit(uint64(limit))
	return r.queryDocuments(ctx, q)
}

// ListVectors returns summarized documents carrying a cached embedding,
// for the daily similarity-index build.
func (r *DocumentRepo) ListVectors(ctx context.Context) ([]domain.Document, error) {
	q := psql.Select(documentColumns).
		From("documents").
		Where("summary IS NOT NULL").
		Where("embedding IS NOT NULL").
		OrderBy("created_at ASC")
	return r.queryDocuments(ctx, q)
}

func (r *DocumentRepo) queryDocuments(ctx context.Context, q sq.SelectBuilder) ([]domain.Document, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepo) SaveVector(ctx context.Context, id string, vec []float32) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE documents SET embedding = $2, updated_at = NOW() WHERE id = $1`,
		id, scoring.EncodeVector(vec)); err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// ApplyScores writes topic and every score field in one statement so
// readers never observe a partially scored document.
func (r *DocumentRepo) ApplyScores(ctx context.Context, id, topic string, interest, value, novelty float64, highValue bool) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET topic = $2, interest_score = $3, value_score = $4,
			novelty_score = $5, high_value = $6, updated_at = NOW()
		WHERE id = $1`,
		id, topic, interest, value, novelty, highValue); err != nil {
		return fmt.Errorf("apply scores: %w", err)
	}
	return nil
}

func (r *DocumentRepo) SaveSummary(ctx context.Context, id, summary string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE documents SET summary = $2, updated_at = NOW() WHERE id = $1`,
		id, summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (r *DocumentRepo) SetFeedback(ctx context.Context, id string, fb domain.FeedbackType) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET feedback = $2, updated_at = NOW() WHERE id = $1`,
		id, string(fb))
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	return requireRow(res, id)
}

func (r *DocumentRepo) SetFavorite(ctx context.Context, id string, favorite bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET favorite = $2, updated_at = NOW() WHERE id = $1`,
		id, favorite)
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return requireRow(res, id)
}

// ApplyFlagPenalty multiplies a scored document's value by factor and
// rederives the high-value marker against threshold. Unscored
// documents are left untouched.
func (r *DocumentRepo) ApplyFlagPenalty(ctx context.Context, id string, factor, threshold float64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET value_score = LEAST(1.0, value_score * $2),
			high_value = LEAST(1.0, value_score * $2) >= $3,
			updated_at = NOW()
		WHERE id = $1 AND value_score IS NOT NULL`,
		id, factor, threshold); err != nil {
		return fmt.Errorf("apply flag penalty: %w", err)
	}
	return nil
}

// DeleteLowValue removes old documents below the threshold, keeping
// favorites and anything with feedback. Operator-invoked only.
func (r *DocumentRepo) DeleteLowValue(ctx context.Context, threshold float64, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE value_score IS NOT NULL AND value_score < $1
			AND created_at < $2
			AND NOT favorite
			AND feedback IS NULL`,
		threshold, before)
	if err != nil {
		return 0, fmt.Errorf("delete low value: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete low value rows: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc       domain.Document
		content   sql.NullString
		summary   sql.NullString
		topic     sql.NullString
		feedback  sql.NullString
		interest  sql.NullFloat64
		value     sql.NullFloat64
		novelty   sql.NullFloat64
		published sql.NullTime
		raw       []byte
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.URL, &content, &summary,
		&doc.SourceURL, &topic, &interest, &value, &novelty,
		&doc.HighValue, &feedback, &doc.Favorite, &raw, &published,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return domain.Document{}, err
	}
	if published.Valid {
		doc.PublishedAt = &published.Time
	}
	doc.Content = content.String
	doc.Summary = summary.String
	doc.Topic = topic.String
	if feedback.Valid {
		fb := domain.FeedbackType(feedback.String)
		doc.Feedback = &fb
	}
	if interest.Valid {
		doc.InterestScore = &interest.Float64
	}
	if value.Valid {
		doc.ValueScore = &value.Float64
	}
	if novelty.Valid {
		doc.NoveltyScore = &novelty.Float64
	}
	doc.Vector, err = scoring.DecodeVector(raw)
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return doc, nil
}
