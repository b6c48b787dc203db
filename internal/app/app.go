// Package app wires configuration, storage, providers, and the
// pipeline components into a runnable process.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"webscout/internal/config"
	"webscout/internal/crawler"
	"webscout/internal/discovery"
	"webscout/internal/domain"
	"webscout/internal/infrastructure/cache"
	"webscout/internal/infrastructure/embedding"
	"webscout/internal/infrastructure/llm"
	"webscout/internal/infrastructure/storage"
	"webscout/internal/learning"
	"webscout/internal/logging"
	"webscout/internal/ports"
	"webscout/internal/reputation"
	"webscout/internal/scoring"
	"webscout/internal/server"
	"webscout/internal/usecase"
)

// Application owns the scheduler loop and the review API for one
// process lifetime.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db         *sql.DB
	redisCache *cache.Redis

	scheduler *usecase.Scheduler
	server    *server.Server
}

// New connects storage, applies migrations, seeds sources and
// categories, and wires every stage. Any failure here is fatal; the
// caller exits non-zero.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	documents := storage.NewDocumentRepo(db)
	sources := storage.NewSourceRepo(db)
	categories := storage.NewCategoryRepo(db)
	feedback := storage.NewFeedbackRepo(db)
	flags := storage.NewFlagRepo(db)
	taskState := storage.NewTaskStateRepo(db)
	neighbors := storage.NewNeighborRepo(db)

	if err := seed(ctx, cfg, sources, categories); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &Application{cfg: cfg, logger: logger, db: db}

	summaryCache := ports.SummaryCache(cache.NewLRU(cfg.Cache.Size))
	if cfg.Cache.Backend == "redis" {
		redis := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.TTL(), logger.With("component", "cache"))
		app.redisCache = redis
		summaryCache = redis
	}

	embedder := embedding.NewClient(cfg.Embedding)
	generator := llm.NewGenerator(cfg.Generation)

	registry := crawler.NewRegistry()
	registry.Register(crawler.NewHTMLStrategy())
	registry.Register(crawler.NewRSSStrategy())

	discoverer := discovery.NewDiscoverer(sources, cfg.Reputation.SeedTrust,
		logger.With("component", "discovery"))
	fetcher := crawler.NewHTTPFetcher(cfg.Crawler.FetchTimeout())
	crawl := crawler.NewCrawler(cfg.Crawler, fetcher, registry, sources, documents,
		discoverer, logger.With("component", "crawler"))

	manager := reputation.NewManager(cfg.Reputation, cfg.Learning.LearningRate,
		cfg.Scoring.ValueThreshold, sources, documents, flags,
		logger.With("component", "reputation"))
	learner := learning.NewLearner(cfg.Learning, feedback, flags, categories, manager,
		logger.With("component", "learning"))

	score := usecase.NewScoreStage(usecase.ScoreDeps{
		Config:     cfg,
		Documents:  documents,
		Sources:    sources,
		Categories: categories,
		Embedder:   embedder,
		Relevance:  scoring.NewRelevance(embedder, logger.With("component", "relevance")),
		Extractor:  scoring.NewExtractor(cfg.Vocabulary, cfg.Scoring.DepthWordCap),
		Classifier: scoring.NewClassifier(cfg.Scoring),
		Learner:    learner,
		Logger:     logger.With("component", "scoring"),
	})
	summarize := usecase.NewSummarizeStage(usecase.SummarizeDeps{
		Config:    cfg.Generation,
		Documents: documents,
		Generator: generator,
		Cache:     summaryCache,
		Logger:    logger.With("component", "summarize"),
	})
	index := usecase.NewIndexStage(usecase.IndexDeps{
		NeighborK: cfg.Scoring.NeighborK,
		Documents: documents,
		Neighbors: neighbors,
		Logger:    logger.With("component", "index"),
	})

	sched := usecase.NewScheduler(cfg.Scheduler.Tick(), taskState, logger.With("component", "scheduler"))
	sched.Register(usecase.Task{Name: "crawl", Interval: minutes(cfg.Scheduler.CrawlMinutes), Run: crawl.Run})
	sched.Register(usecase.Task{Name: "score", Interval: minutes(cfg.Scheduler.ScoreMinutes), Run: score.Run})
	sched.Register(usecase.Task{Name: "summarize", Interval: minutes(cfg.Scheduler.SummarizeMinutes), Run: summarize.Run})
	sched.Register(usecase.Task{Name: "reputation", Interval: minutes(cfg.Scheduler.ReputationMinutes), Run: manager.RecomputeQuality})
	sched.RegisterDaily(usecase.Task{Name: "index", Run: index.Run}, cfg.Scheduler.IndexHour, cfg.Scheduler.Location())
	app.scheduler = sched

	app.server = server.New(server.Deps{
		Config:          cfg.Server,
		Documents:       documents,
		Feedback:        feedback,
		Neighbors:       neighbors,
		Reputation:      manager,
		FeedbackOptions: cfg.Feedback,
		Logger:          logger.With("component", "server"),
	})

	return app, nil
}

// Run serves the API and drives the scheduler until the context is
// cancelled, then releases storage connections.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting", "addr", a.cfg.Server.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.scheduler.Run(ctx) })
	err := g.Wait()

	if a.redisCache != nil {
		_ = a.redisCache.Close()
	}
	if closeErr := a.db.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	a.logger.Info("stopped")
	return err
}

// seed registers configured seed sources and category profiles.
// Existing rows keep their earned trust and learned weights.
func seed(ctx context.Context, cfg config.Config, sources ports.SourceRepository, categories ports.CategoryRepository) error {
	for _, s := range cfg.Sources.Seeds {
		src := domain.Source{
			URL:       s.URL,
			Platform:  s.Platform,
			Strategy:  s.Strategy,
			Discovery: domain.DiscoverySeed,
			Trust:     cfg.Reputation.SeedTrust,
			Active:    true,
		}
		if _, err := sources.Upsert(ctx, src); err != nil {
			return fmt.Errorf("seed source %s: %w", s.URL, err)
		}
	}

	profiles := make([]domain.CategoryProfile, len(cfg.Categories))
	for i, c := range cfg.Categories {
		profiles[i] = domain.CategoryProfile{
			Key:        c.Key,
			Ordinal:    i,
			Name:       c.Name,
			Keywords:   c.Keywords,
			BaseWeight: c.Weight,
			Boost:      c.Boost,
		}
	}
	if err := categories.EnsureDefaults(ctx, profiles); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
