package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"webscout/internal/domain"
	"webscout/internal/ports"
)

// ErrNoVector signals that a document has no semantic vector yet. The
// caller skips the document this cycle instead of failing the batch.
var ErrNoVector = errors.New("document has no semantic vector")

// ErrNoCategories signals a scorer refreshed with an empty profile set.
var ErrNoCategories = errors.New("no category profiles loaded")

// Relevance fuses a document's semantic vector with category profiles
// and source trust into an interest score and topic label.
type Relevance struct {
	embedder ports.Embedder
	logger   *slog.Logger

	cats []domain.CategoryProfile
	vecs [][]float32

	// Interest texts are embedded once and reused across refreshes;
	// only the weights move between cycles.
	textCache map[string][]float32
}

// NewRelevance builds a scorer around the embedding provider.
func NewRelevance(embedder ports.Embedder, logger *slog.Logger) *Relevance {
	return &Relevance{
		embedder:  embedder,
		logger:    logger,
		textCache: map[string][]float32{},
	}
}

// Refresh loads the current category profiles, embedding any interest
// text not seen before. Profiles must arrive in ordinal order; that
// order is the tie-break at scoring time.
func (r *Relevance) Refresh(ctx context.Context, cats []domain.CategoryProfile) error {
	if len(cats) == 0 {
		return ErrNoCategories
	}

	vecs := make([][]float32, len(cats))
	for i, cat := range cats {
		text := cat.InterestText()
		if vec, ok := r.textCache[text]; ok {
			vecs[i] = vec
			continue
		}
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed category %s: %w", cat.Key, err)
		}
		r.textCache[text] = vec
		vecs[i] = vec
	}

	r.cats = cats
	r.vecs = vecs
	return nil
}

// Match is the outcome of relevance scoring for one document.
type Match struct {
	Topic    string
	Ordinal  int
	Interest float64
}

// Score selects the topic for a document vector and computes its
// interest score from the winning weighted similarity, the source's
// static weight, and its current trust. Strict greater-than while
// walking profiles in ordinal order makes ties resolve to the lowest
// configured ordinal.
func (r *Relevance) Score(docVec []float32, sourceWeight, trust float64) (Match, error) {
	if len(r.cats) == 0 {
		return Match{}, ErrNoCategories
	}
	if len(docVec) == 0 {
		return Match{}, ErrNoVector
	}

	best := Match{Ordinal: -1}
	var bestWeighted float64

	for i, cat := range r.cats {
		weighted := Cosine(docVec, r.vecs[i]) * cat.EffectiveWeight()
		if best.Ordinal == -1 || weighted > bestWeighted {
			bestWeighted = weighted
			best = Match{Topic: cat.Key, Ordinal: cat.Ordinal}
		}
	}

	best.Interest = domain.ClampScore(bestWeighted * sourceWeight * trust)
	return best, nil
}

// Category returns the refreshed profile for a key, if present.
func (r *Relevance) Category(key string) (domain.CategoryProfile, bool) {
	for _, cat := range r.cats {
		if cat.Key == key {
			return cat, true
		}
	}
	return domain.CategoryProfile{}, false
}
