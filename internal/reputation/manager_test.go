package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/ports"
)

type fakeSources struct {
	ports.SourceRepository
	sources map[string]*domain.Source
}

func (f *fakeSources) Get(_ context.Context, url string) (domain.Source, error) {
	return *f.sources[url], nil
}

func (f *fakeSources) ListAll(_ context.Context) ([]domain.Source, error) {
	var out []domain.Source
	for _, s := range f.sources {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSources) SetTrust(_ context.Context, url string, trust float64) error {
	f.sources[url].Trust = trust
	return nil
}

func (f *fakeSources) SetActive(_ context.Context, url string, active bool) error {
	f.sources[url].Active = active
	return nil
}

func (f *fakeSources) RefreshCounts(context.Context) error { return nil }

type fakeDocs struct {
	ports.DocumentRepository
	docs      map[string]domain.Document
	penalized map[string]float64
}

func (f *fakeDocs) Get(_ context.Context, id string) (domain.Document, error) {
	return f.docs[id], nil
}

func (f *fakeDocs) ApplyFlagPenalty(_ context.Context, id string, factor, _ float64) error {
	f.penalized[id] = factor
	return nil
}

type fakeFlags struct {
	ports.FlagRepository
	records []domain.FlagRecord
}

func (f *fakeFlags) Insert(_ context.Context, rec domain.FlagRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func defaultRepCfg() config.ReputationConfig {
	return config.ReputationConfig{
		MinSample:           5,
		Amplification:       1.2,
		ActivationThreshold: 0.6,
		StalenessHours:      720,
		SourceDamping:       2.0,
		FlagScorePenalty:    0.7,
		FlaggedTrust:        0.8,
		SeedTrust:           0.5,
	}
}

func newTestManager(sources *fakeSources, docs *fakeDocs, flags *fakeFlags) *Manager {
	return NewManager(defaultRepCfg(), 0.1, 0.6, sources, docs, flags, nil)
}

func TestFlagDocumentSeverePath(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{sources: map[string]*domain.Source{
		"https://spam.example": {URL: "https://spam.example", Trust: 1.0, Active: true},
	}}
	score := 0.80
	docs := &fakeDocs{
		docs: map[string]domain.Document{
			"d1": {ID: "d1", SourceURL: "https://spam.example", Topic: "ai_tech", ValueScore: &score},
		},
		penalized: map[string]float64{},
	}
	flags := &fakeFlags{}

	m := newTestManager(sources, docs, flags)
	require.NoError(t, m.FlagDocument(context.Background(), "d1", "spam", 3))

	// Document score scaled by 0.7, source trust pinned to 0.8.
	assert.InDelta(t, 0.7, docs.penalized["d1"], 1e-9)
	assert.InDelta(t, 0.8, sources.sources["https://spam.example"].Trust, 1e-9)

	require.Len(t, flags.records, 1)
	assert.Equal(t, "ai_tech", flags.records[0].Category)
	assert.Equal(t, "https://spam.example", flags.records[0].SourceURL)
}

func TestFlagDocumentMildSeverityOnlyRecords(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{sources: map[string]*domain.Source{
		"s": {URL: "s", Trust: 0.9},
	}}
	docs := &fakeDocs{
		docs:      map[string]domain.Document{"d1": {ID: "d1", SourceURL: "s"}},
		penalized: map[string]float64{},
	}
	flags := &fakeFlags{}

	m := newTestManager(sources, docs, flags)
	require.NoError(t, m.FlagDocument(context.Background(), "d1", "dull", 1))

	assert.Empty(t, docs.penalized)
	assert.InDelta(t, 0.9, sources.sources["s"].Trust, 1e-9)
	assert.Len(t, flags.records, 1)
}

func TestFlagDocumentRejectsBadSeverity(t *testing.T) {
	t.Parallel()

	m := newTestManager(&fakeSources{}, &fakeDocs{}, &fakeFlags{})
	assert.Error(t, m.FlagDocument(context.Background(), "d1", "spam", 0))
	assert.Error(t, m.FlagDocument(context.Background(), "d1", "spam", 4))
}

func TestRecomputeQuality(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sources := &fakeSources{sources: map[string]*domain.Source{
		// 7 of 10 high value: trust = min(1.0, 0.7*1.2) = 0.84, stays active.
		"good": {URL: "good", Trust: 0.5, Active: true, TotalDocs: 10, HighValueDocs: 7, LastCrawledAt: now},
		// 1 of 10: trust = 0.12, below the 0.6 threshold, deactivated.
		"bad": {URL: "bad", Trust: 0.9, Active: true, TotalDocs: 10, HighValueDocs: 1, LastCrawledAt: now},
		// Below minimum sample: trust untouched.
		"fresh": {URL: "fresh", Trust: 0.7, Active: true, TotalDocs: 2, HighValueDocs: 2, LastCrawledAt: now},
		// Idle beyond the staleness window: deactivated despite trust.
		"stale": {URL: "stale", Trust: 0.9, Active: true, TotalDocs: 10, HighValueDocs: 9, LastCrawledAt: now.Add(-1000 * time.Hour)},
	}}

	m := newTestManager(sources, &fakeDocs{}, &fakeFlags{})
	require.NoError(t, m.RecomputeQuality(context.Background()))

	assert.InDelta(t, 0.84, sources.sources["good"].Trust, 1e-9)
	assert.True(t, sources.sources["good"].Active)

	assert.InDelta(t, 0.12, sources.sources["bad"].Trust, 1e-9)
	assert.False(t, sources.sources["bad"].Active)

	assert.InDelta(t, 0.7, sources.sources["fresh"].Trust, 1e-9)
	assert.True(t, sources.sources["fresh"].Active)

	assert.False(t, sources.sources["stale"].Active)
}

func TestRecomputeQualityKeepsNewSourcesCrawlable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sources := &fakeSources{sources: map[string]*domain.Source{
		// Seed trust 0.5 sits below the 0.6 activation threshold, but a
		// source without a minimum sample has no recomputed trust yet and
		// must keep crawling to earn one.
		"seeded": {URL: "seeded", Trust: 0.5, Active: true, TotalDocs: 0},
		// Same for a freshly discovered source with a couple of documents.
		"young": {URL: "young", Trust: 0.5, Active: true, TotalDocs: 2, HighValueDocs: 0, LastCrawledAt: now},
		// A previously deactivated below-sample source does not flip back
		// on without recomputed trust clearing the threshold.
		"benched": {URL: "benched", Trust: 0.5, Active: false, TotalDocs: 1},
	}}

	m := newTestManager(sources, &fakeDocs{}, &fakeFlags{})
	require.NoError(t, m.RecomputeQuality(context.Background()))

	assert.True(t, sources.sources["seeded"].Active)
	assert.InDelta(t, 0.5, sources.sources["seeded"].Trust, 1e-9)
	assert.True(t, sources.sources["young"].Active)
	assert.False(t, sources.sources["benched"].Active)
}

func TestRecomputeQualityClampsToFloor(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{sources: map[string]*domain.Source{
		"zero": {URL: "zero", Trust: 0.5, Active: true, TotalDocs: 20, HighValueDocs: 0},
	}}

	m := newTestManager(sources, &fakeDocs{}, &fakeFlags{})
	require.NoError(t, m.RecomputeQuality(context.Background()))

	// Never allowed to reach zero.
	assert.InDelta(t, domain.TrustFloor, sources.sources["zero"].Trust, 1e-9)
}

func TestApplyNudge(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{sources: map[string]*domain.Source{
		"s": {URL: "s", Trust: 0.5},
	}}
	m := newTestManager(sources, &fakeDocs{}, &fakeFlags{})

	// net +4 at rate 0.1 damped by 2.0 -> +0.2
	require.NoError(t, m.ApplyNudge(context.Background(), "s", 4))
	assert.InDelta(t, 0.7, sources.sources["s"].Trust, 1e-9)

	// Large negative nudge clamps at the floor.
	require.NoError(t, m.ApplyNudge(context.Background(), "s", -100))
	assert.InDelta(t, domain.TrustFloor, sources.sources["s"].Trust, 1e-9)

	// Large positive nudge clamps at the ceiling.
	require.NoError(t, m.ApplyNudge(context.Background(), "s", 100))
	assert.InDelta(t, domain.TrustCeil, sources.sources["s"].Trust, 1e-9)
}
