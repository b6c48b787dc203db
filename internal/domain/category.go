package domain

import "strings"

// CategoryProfile is a configured interest bucket. Identity is the
// stable key plus a fixed ordinal taken from configuration order; the
// ordinal only matters for deterministic tie-breaking at scoring time.
//
// BaseWeight and LearningAdjustment are kept apart on purpose: the
// adjustment accumulates from recent feedback every learner pass while
// the base weight only moves on stronger, pattern-triggered corrections.
type CategoryProfile struct {
	Key                string
	Ordinal            int
	Name               string
	Keywords           []string
	BaseWeight         float64
	LearningAdjustment float64
	Boost              float64
	PositiveCount      int
	NegativeCount      int
}

// EffectiveWeight is the weight applied at scoring time.
func (c CategoryProfile) EffectiveWeight() float64 {
	return (c.BaseWeight + c.LearningAdjustment) * c.Boost
}

// InterestText builds the text that gets embedded to represent this
// category in the semantic space.
func (c CategoryProfile) InterestText() string {
	return c.Name + ": " + strings.Join(c.Keywords, ", ")
}
