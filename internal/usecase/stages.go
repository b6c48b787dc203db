// Package usecase orchestrates the pipeline stages and their schedule.
// Each stage is an in-process run-to-completion pass; per-document
// failures are logged and skipped so one bad item never poisons a
// cycle.
package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/ports"
	"webscout/internal/scoring"
)

// FeedbackLearner is the learning pass that runs ahead of scoring so
// fresh feedback shapes the weights used in the same cycle.
type FeedbackLearner interface {
	Run(ctx context.Context) error
}

// embedInputChars bounds the text sent to the embedding provider.
const embedInputChars = 2000

// ScoreDeps wires the scoring stage.
type ScoreDeps struct {
	Config     config.Config
	Documents  ports.DocumentRepository
	Sources    ports.SourceRepository
	Categories ports.CategoryRepository
	Embedder   ports.Embedder
	Relevance  *scoring.Relevance
	Extractor  *scoring.Extractor
	Classifier *scoring.Classifier
	Learner    FeedbackLearner
	Logger     *slog.Logger
}

// ScoreStage assigns topic, interest, value, and novelty to every
// unscored document.
type ScoreStage struct {
	cfg        config.Config
	documents  ports.DocumentRepository
	sources    ports.SourceRepository
	categories ports.CategoryRepository
	embedder   ports.Embedder
	relevance  *scoring.Relevance
	extractor  *scoring.Extractor
	classifier *scoring.Classifier
	learner    FeedbackLearner
	logger     *slog.Logger
}

func NewScoreStage(deps ScoreDeps) *ScoreStage {
	return &ScoreStage{
		cfg:        deps.Config,
		documents:  deps.Documents,
		sources:    deps.Sources,
		categories: deps.Categories,
		embedder:   deps.Embedder,
		relevance:  deps.Relevance,
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		learner:    deps.Learner,
		logger:     deps.Logger,
	}
}

// Run executes one scoring pass. The learner goes first so the weights
// already reflect the latest feedback; a learner failure is logged and
// scoring proceeds on the previous weights.
func (s *ScoreStage) Run(ctx context.Context) error {
	if s.learner != nil {
		if err := s.learner.Run(ctx); err != nil {
			s.warn("learner pass failed", "error", err)
		}
	}

	cats, err := s.categories.List(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	if err := s.relevance.Refresh(ctx, cats); err != nil {
		return fmt.Errorf("refresh relevance profiles: %w", err)
	}

	docs, err := s.documents.ListUnscored(ctx)
	if err != nil {
		return fmt.Errorf("list unscored: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	sources, err := s.sources.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	byURL := make(map[string]domain.Source, len(sources))
	for _, src := range sources {
		byURL[src.URL] = src
	}

	scored := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.scoreOne(ctx, doc, byURL); err != nil {
			s.warn("scoring skipped document", "document", doc.ID, "error", err)
			continue
		}
		scored++
	}

	if s.logger != nil {
		s.logger.Info("scoring pass finished", "candidates", len(docs), "scored", scored)
	}
	return nil
}

func (s *ScoreStage) scoreOne(ctx context.Context, doc domain.Document, sources map[string]domain.Source) error {
	src, ok := sources[doc.SourceURL]
	if !ok {
		return fmt.Errorf("unknown source %s", doc.SourceURL)
	}

	features := s.extractor.Extract(doc.Title, doc.Content, s.cfg.SourceWeight(src.Platform))
	if features.Empty() {
		return fmt.Errorf("empty content")
	}

	vec := doc.Vector
	if len(vec) == 0 {
		var err error
		vec, err = s.embedder.Embed(ctx, embedText(doc.Title, doc.Content))
		if err != nil {
			return fmt.Errorf("embed document: %w", err)
		}
		if err := s.documents.SaveVector(ctx, doc.ID, vec); err != nil {
			return fmt.Errorf("save vector: %w", err)
		}
	}

	match, err := s.relevance.Score(vec, s.cfg.SourceWeight(src.Platform), src.Trust)
	if err != nil {
		return err
	}

	profile, _ := s.relevance.Category(match.Topic)
	valuation := s.classifier.Classify(match.Interest, features, doc.Content,
		profile.LearningAdjustment, profile.Boost, src.Trust)

	if err := s.documents.ApplyScores(ctx, doc.ID, match.Topic,
		match.Interest, valuation.Value, valuation.Novelty, valuation.HighValue); err != nil {
		return fmt.Errorf("apply scores: %w", err)
	}
	return nil
}

func embedText(title, content string) string {
	return truncate(title+"\n"+content, embedInputChars)
}

// truncate cuts text to at most max bytes, backing off to the nearest
// rune boundary so a multibyte character is never split.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

func (s *ScoreStage) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// SummarizeDeps wires the summarization stage.
type SummarizeDeps struct {
	Config    config.GenerationConfig
	Documents ports.DocumentRepository
	Generator ports.Generator
	Cache     ports.SummaryCache
	Logger    *slog.Logger
}

// SummarizeStage generates summaries for scored documents in batches.
// Summaries are memoized by content hash so identical content crawled
// twice is never submitted to the provider again.
type SummarizeStage struct {
	cfg       config.GenerationConfig
	documents ports.DocumentRepository
	generator ports.Generator
	cache     ports.SummaryCache
	logger    *slog.Logger
}

func NewSummarizeStage(deps SummarizeDeps) *SummarizeStage {
	return &SummarizeStage{
		cfg:       deps.Config,
		documents: deps.Documents,
		generator: deps.Generator,
		cache:     deps.Cache,
		logger:    deps.Logger,
	}
}

func (s *SummarizeStage) Run(ctx context.Context) error {
	docs, err := s.documents.ListUnsummarized(ctx, s.cfg.MinContentLen, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list unsummarized: %w", err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.summarizeOne(ctx, doc); err != nil {
			if s.logger != nil {
				s.logger.Warn("summarize skipped document", "document", doc.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *SummarizeStage) summarizeOne(ctx context.Context, doc domain.Document) error {
	content := truncate(doc.Content, s.cfg.MaxInputChars)

	key := contentKey(content)
	if summary, ok := s.cache.Get(ctx, key); ok {
		return s.documents.SaveSummary(ctx, doc.ID, summary)
	}

	prompt := "Summarize this in 3-5 clear bullet points:\n\n" + content
	summary, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	s.cache.Set(ctx, key, summary)
	return s.documents.SaveSummary(ctx, doc.ID, summary)
}

func contentKey(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// IndexDeps wires the similarity-index stage.
type IndexDeps struct {
	NeighborK int
	Documents ports.DocumentRepository
	Neighbors ports.NeighborRepository
	Logger    *slog.Logger
}

// IndexStage rebuilds the per-document nearest-neighbor lists from the
// cached vectors. Runs once per day.
type IndexStage struct {
	k         int
	documents ports.DocumentRepository
	neighbors ports.NeighborRepository
	logger    *slog.Logger
}

func NewIndexStage(deps IndexDeps) *IndexStage {
	return &IndexStage{
		k:         deps.NeighborK,
		documents: deps.Documents,
		neighbors: deps.Neighbors,
		logger:    deps.Logger,
	}
}

func (s *IndexStage) Run(ctx context.Context) error {
	docs, err := s.documents.ListVectors(ctx)
	if err != nil {
		return fmt.Errorf("list vectors: %w", err)
	}
	if len(docs) < 2 {
		return nil
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates := make([]domain.Neighbor, 0, len(docs)-1)
		for j, other := range docs {
			if i == j {
				continue
			}
			candidates = append(candidates, domain.Neighbor{
				DocumentID: doc.ID,
				NeighborID: other.ID,
				Similarity: scoring.Cosine(doc.Vector, other.Vector),
			})
		}
		sort.Slice(candidates, func(a, b int) bool {
			return candidates[a].Similarity > candidates[b].Similarity
		})
		if len(candidates) > s.k {
			candidates = candidates[:s.k]
		}

		if err := s.neighbors.Replace(ctx, doc.ID, candidates); err != nil {
			return fmt.Errorf("replace neighbors for %s: %w", doc.ID, err)
		}
	}

	if s.logger != nil {
		s.logger.Info("similarity index rebuilt", "documents", len(docs), "k", s.k)
	}
	return nil
}
