// Package reputation maintains the per-source trust score. Trust lives
// in [0.1, 1.0]; the floor keeps a penalized source recoverable. Three
// independent update paths exist: direct flagging, the periodic quality
// recompute, and feedback-driven nudges. Recovery happens only through
// new high-value documents or positive feedback; there is no decay-based
// healing.
package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/ports"
)

// Manager applies trust updates and the activity policy for sources.
type Manager struct {
	cfg            config.ReputationConfig
	learningRate   float64
	valueThreshold float64

	sources   ports.SourceRepository
	documents ports.DocumentRepository
	flags     ports.FlagRepository

	logger *slog.Logger
	now    func() time.Time
}

// NewManager wires the manager to its repositories.
func NewManager(cfg config.ReputationConfig, learningRate, valueThreshold float64,
	sources ports.SourceRepository, documents ports.DocumentRepository, flags ports.FlagRepository,
	logger *slog.Logger) *Manager {
	return &Manager{
		cfg:            cfg,
		learningRate:   learningRate,
		valueThreshold: valueThreshold,
		sources:        sources,
		documents:      documents,
		flags:          flags,
		logger:         logger,
		now:            time.Now,
	}
}

// FlagDocument records a flag against a document. Severity 2 and up is
// the fast punitive path: the document's own value score is scaled down
// and the source's trust drops straight to the configured flagged value.
func (m *Manager) FlagDocument(ctx context.Context, docID, reason string, severity int) error {
	if severity < 1 || severity > 3 {
		return fmt.Errorf("severity %d out of range 1..3", severity)
	}

	doc, err := m.documents.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", docID, err)
	}

	rec := domain.FlagRecord{
		DocumentID: docID,
		Reason:     reason,
		Severity:   severity,
		Category:   doc.Topic,
		SourceURL:  doc.SourceURL,
		CreatedAt:  m.now(),
	}
	if err := m.flags.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record flag: %w", err)
	}

	if severity < 2 {
		return nil
	}

	if err := m.documents.ApplyFlagPenalty(ctx, docID, m.cfg.FlagScorePenalty, m.valueThreshold); err != nil {
		return fmt.Errorf("penalize document %s: %w", docID, err)
	}
	if err := m.sources.SetTrust(ctx, doc.SourceURL, domain.ClampTrust(m.cfg.FlaggedTrust)); err != nil {
		return fmt.Errorf("penalize source %s: %w", doc.SourceURL, err)
	}

	if m.logger != nil {
		m.logger.Warn("source penalized by flag",
			"source", doc.SourceURL, "document", docID, "severity", severity, "reason", reason)
	}
	return nil
}

// RecomputeQuality re-derives trust from each source's accumulated
// high-value ratio and applies the activity policy. Sources with fewer
// than the minimum sample keep their current trust. Idle sources past
// the staleness window are deactivated regardless of trust.
func (m *Manager) RecomputeQuality(ctx context.Context) error {
	if err := m.sources.RefreshCounts(ctx); err != nil {
		return fmt.Errorf("refresh source counts: %w", err)
	}

	all, err := m.sources.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	now := m.now()
	for _, src := range all {
		trust := src.Trust
		recomputed := src.TotalDocs >= m.cfg.MinSample
		if recomputed {
			ratio := float64(src.HighValueDocs) / float64(src.TotalDocs)
			trust = domain.ClampTrust(ratio * m.cfg.Amplification)
			if trust != src.Trust {
				if err := m.sources.SetTrust(ctx, src.URL, trust); err != nil {
					return fmt.Errorf("set trust %s: %w", src.URL, err)
				}
			}
		}

		// The trust threshold only applies once a source has earned a
		// real sample. A new source still sitting at seed trust stays
		// crawlable, otherwise it could never accumulate the documents
		// that drive the recompute.
		active := src.Active
		if recomputed {
			active = trust >= m.cfg.ActivationThreshold
		}
		if !src.LastCrawledAt.IsZero() && now.Sub(src.LastCrawledAt) > m.cfg.StalenessWindow() {
			active = false
		}
		if active != src.Active {
			if err := m.sources.SetActive(ctx, src.URL, active); err != nil {
				return fmt.Errorf("set active %s: %w", src.URL, err)
			}
			if m.logger != nil {
				m.logger.Info("source activity changed", "source", src.URL, "active", active, "trust", trust)
			}
		}
	}
	return nil
}

// ApplyNudge folds a net feedback count for one source into its trust.
// The nudge is damped harder than the category adjustment because
// source-level samples are sparser and noisier.
func (m *Manager) ApplyNudge(ctx context.Context, sourceURL string, net int) error {
	if net == 0 {
		return nil
	}

	src, err := m.sources.Get(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("load source %s: %w", sourceURL, err)
	}

	delta := float64(net) * m.learningRate / m.cfg.SourceDamping
	trust := domain.ClampTrust(src.Trust + delta)
	if trust == src.Trust {
		return nil
	}
	if err := m.sources.SetTrust(ctx, sourceURL, trust); err != nil {
		return fmt.Errorf("set trust %s: %w", sourceURL, err)
	}
	return nil
}
