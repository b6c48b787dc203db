package ports

import (
	"context"
	"time"

	"webscout/internal/domain"
)

// Embedder maps text into the shared semantic vector space. The
// provider is expected to be deterministic for identical input, which
// is what justifies caching one vector per document permanently.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces human-readable text (summaries) from a prompt.
// Callers truncate input to the configured limit before calling.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Fetcher retrieves raw page bytes. Errors are always recoverable at
// the calling stage, never pipeline-fatal.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SummaryCache memoizes generated summaries keyed by content hash so
// identical content is never resubmitted to the provider.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, summary string)
}

// DocumentRepository persists documents and their derived scores.
type DocumentRepository interface {
	// Insert stores a new document; it reports false when the
	// identifier already exists (re-crawls are no-ops).
	Insert(ctx context.Context, doc domain.Document) (bool, error)
	Get(ctx context.Context, id string) (domain.Document, error)
	// ListUnscored returns documents with content but no scores yet.
	ListUnscored(ctx context.Context) ([]domain.Document, error)
	SaveVector(ctx context.Context, id string, vec []float32) error
	// ApplyScores writes topic and all three scores in one statement.
	ApplyScores(ctx context.Context, id, topic string, interest, value, novelty float64, highValue bool) error
	ListUnsummarized(ctx context.Context, minContentLen, limit int) ([]domain.Document, error)
	SaveSummary(ctx context.Context, id, summary string) error
	// ListVectors returns summarized documents with their cached
	// vectors for the daily similarity-index build.
	ListVectors(ctx context.Context) ([]domain.Document, error)
	TopScored(ctx context.Context, limit int) ([]domain.Document, error)
	SetFeedback(ctx context.Context, id string, fb domain.FeedbackType) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
	// ApplyFlagPenalty scales the document's value score and
	// re-derives the high-value flag against the threshold.
	ApplyFlagPenalty(ctx context.Context, id string, factor, threshold float64) error
	// DeleteLowValue is operator-invoked cleanup; the automatic loop
	// never calls it.
	DeleteLowValue(ctx context.Context, threshold float64, before time.Time) (int64, error)
}

// SourceRepository persists sources. Sources are deactivated, never
// deleted.
type SourceRepository interface {
	// Upsert inserts a source keyed by normalized URL; duplicate
	// inserts are no-ops and report false.
	Upsert(ctx context.Context, src domain.Source) (bool, error)
	Get(ctx context.Context, url string) (domain.Source, error)
	ListActive(ctx context.Context) ([]domain.Source, error)
	ListAll(ctx context.Context) ([]domain.Source, error)
	SetTrust(ctx context.Context, url string, trust float64) error
	SetActive(ctx context.Context, url string, active bool) error
	MarkCrawled(ctx context.Context, url string, at time.Time) error
	// RefreshCounts re-derives total and high-value document counts
	// from the documents table.
	RefreshCounts(ctx context.Context) error
}

// CategoryRepository persists interest profiles.
type CategoryRepository interface {
	EnsureDefaults(ctx context.Context, cats []domain.CategoryProfile) error
	// List returns profiles in configured ordinal order.
	List(ctx context.Context) ([]domain.CategoryProfile, error)
	UpdateLearning(ctx context.Context, key string, adjustment float64, posDelta, negDelta int) error
	SetBaseWeight(ctx context.Context, key string, weight float64) error
}

// FeedbackRepository stores append-only feedback events.
type FeedbackRepository interface {
	Insert(ctx context.Context, ev domain.FeedbackEvent) error
	ListSince(ctx context.Context, t time.Time) ([]domain.FeedbackEvent, error)
}

// FlagRepository stores flagged-content records and aggregates
// recurring patterns for the learner.
type FlagRepository interface {
	Insert(ctx context.Context, rec domain.FlagRecord) error
	PatternsSince(ctx context.Context, t time.Time) ([]domain.FlagPattern, error)
}

// TaskStateRepository remembers per-task last-success timestamps for
// the crash-tolerant scheduler.
type TaskStateRepository interface {
	LastRun(ctx context.Context, name string) (time.Time, bool, error)
	MarkRun(ctx context.Context, name string, at time.Time) error
}

// NeighborRepository stores the similarity index produced by the
// daily index task.
type NeighborRepository interface {
	Replace(ctx context.Context, docID string, neighbors []domain.Neighbor) error
	// ListFor returns a document's neighbors ordered by similarity.
	ListFor(ctx context.Context, docID string) ([]domain.Neighbor, error)
}
