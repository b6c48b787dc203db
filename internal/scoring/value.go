package scoring

import (
	"webscout/internal/config"
	"webscout/internal/domain"
)

// Valuation carries the classifier output for one document.
type Valuation struct {
	Value     float64
	Novelty   float64
	HighValue bool
}

// Classifier combines the interest score with heuristic features into
// value and novelty scores plus the high-value flag.
type Classifier struct {
	cfg config.ScoringConfig
}

// NewClassifier builds a classifier from the configured constants.
func NewClassifier(cfg config.ScoringConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify computes the value score from the interest score, feature
// boosts and penalties, source authority, the winning category's
// learning adjustment and boost, and source trust, applied in that
// order before clamping. Novelty is computed independently.
func (c *Classifier) Classify(interest float64, f Features, content string, adjustment, boost, trust float64) Valuation {
	value := interest
	value += capped(float64(f.QualityCount)*c.cfg.QualityRate, c.cfg.QualityCap)
	value += capped(float64(f.NoveltyCount)*c.cfg.NoveltyRate, c.cfg.NoveltyCap)
	value -= float64(f.JunkCount) * c.cfg.JunkRate
	value += capped(f.Depth*c.cfg.DepthRate, c.cfg.DepthCap)
	value += f.Readability * c.cfg.ReadabilityRate
	value *= f.Authority
	value += adjustment
	value *= trust
	value *= boost
	value = domain.ClampScore(value)

	novelty := 0.0
	if HasRecentMarkers(content) {
		novelty += c.cfg.RecentMarkerBonus
	}
	novelty += capped(float64(f.NoveltyCount)*c.cfg.NovIndicatorRate, c.cfg.NovIndicatorCap)
	novelty += capped(float64(f.QualityCount)*c.cfg.NovQualityRate, c.cfg.NovQualityCap)
	novelty = domain.ClampScore(novelty)

	return Valuation{
		Value:     value,
		Novelty:   novelty,
		HighValue: value >= c.cfg.ValueThreshold,
	}
}

func capped(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}
