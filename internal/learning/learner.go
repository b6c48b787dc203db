// Package learning folds accumulated feedback events into category
// weights and source trust. The learner runs once per scheduler cycle
// over a rolling window; events are never consumed or deleted, only
// re-read, so a crash between passes loses nothing.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/ports"
)

// Nudger is the reputation manager's feedback path.
type Nudger interface {
	ApplyNudge(ctx context.Context, sourceURL string, net int) error
}

// Learner converts feedback events into category-weight and
// source-trust adjustments.
type Learner struct {
	cfg        config.LearningConfig
	feedback   ports.FeedbackRepository
	flags      ports.FlagRepository
	categories ports.CategoryRepository
	reputation Nudger
	logger     *slog.Logger
	now        func() time.Time
}

// NewLearner wires the learner to its repositories and the reputation
// nudge path.
func NewLearner(cfg config.LearningConfig, feedback ports.FeedbackRepository, flags ports.FlagRepository,
	categories ports.CategoryRepository, reputation Nudger, logger *slog.Logger) *Learner {
	return &Learner{
		cfg:        cfg,
		feedback:   feedback,
		flags:      flags,
		categories: categories,
		reputation: reputation,
		logger:     logger,
		now:        time.Now,
	}
}

type catDelta struct {
	net int
	pos int
	neg int
}

// Run executes one learner pass: per-category accumulation, per-source
// nudges, and the stronger pattern-triggered correction for recurring
// flags. Malformed events are logged and skipped; the pass continues.
func (l *Learner) Run(ctx context.Context) error {
	since := l.now().Add(-l.cfg.Window())

	events, err := l.feedback.ListSince(ctx, since)
	if err != nil {
		return fmt.Errorf("load feedback window: %w", err)
	}

	cats, err := l.categories.List(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	profiles := make(map[string]domain.CategoryProfile, len(cats))
	for _, c := range cats {
		profiles[c.Key] = c
	}

	byCategory := map[string]catDelta{}
	bySource := map[string]int{}
	for _, ev := range events {
		if _, ok := profiles[ev.Category]; !ok {
			l.warn("feedback references unknown category", "event", ev.ID, "category", ev.Category)
			continue
		}
		d := byCategory[ev.Category]
		if ev.Type.PositiveEquivalent() {
			d.net++
			d.pos++
		} else {
			d.net--
			d.neg++
		}
		byCategory[ev.Category] = d

		if ev.SourceURL != "" {
			if ev.Type.PositiveEquivalent() {
				bySource[ev.SourceURL]++
			} else {
				bySource[ev.SourceURL]--
			}
		}
	}

	for _, cat := range cats {
		d, hasEvents := byCategory[cat.Key]
		adjustment := cat.LearningAdjustment * l.cfg.AdjustmentDecay
		adjustment += float64(d.net) * l.cfg.LearningRate

		if !hasEvents && adjustment == cat.LearningAdjustment {
			continue
		}
		if err := l.categories.UpdateLearning(ctx, cat.Key, adjustment, d.pos, d.neg); err != nil {
			return fmt.Errorf("update category %s: %w", cat.Key, err)
		}
	}

	for sourceURL, net := range bySource {
		if err := l.reputation.ApplyNudge(ctx, sourceURL, net); err != nil {
			l.warn("source nudge failed", "source", sourceURL, "error", err)
		}
	}

	return l.applyFlagPatterns(ctx, since, profiles)
}

// applyFlagPatterns applies the multiplicative penalty for categories
// whose content keeps getting flagged for the same reason. This is a
// stronger correction than the per-event nudge and moves the slower
// base weight, not the learning adjustment.
func (l *Learner) applyFlagPatterns(ctx context.Context, since time.Time, profiles map[string]domain.CategoryProfile) error {
	patterns, err := l.flags.PatternsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("load flag patterns: %w", err)
	}

	penalized := map[string]float64{}
	for _, p := range patterns {
		if p.Count <= l.cfg.PatternThreshold {
			continue
		}
		profile, ok := profiles[p.Category]
		if !ok {
			l.warn("flag pattern references unknown category", "category", p.Category)
			continue
		}
		base, already := penalized[p.Category]
		if !already {
			base = profile.BaseWeight
		}
		penalized[p.Category] = base * l.cfg.PatternPenalty
		l.warn("recurring flagged pattern penalized category",
			"category", p.Category, "reason", p.Reason, "count", p.Count)
	}

	for key, weight := range penalized {
		if err := l.categories.SetBaseWeight(ctx, key, weight); err != nil {
			return fmt.Errorf("penalize category %s: %w", key, err)
		}
	}
	return nil
}

func (l *Learner) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
