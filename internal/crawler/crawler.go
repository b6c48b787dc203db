// Package crawler implements the crawl stage: a bounded worker pool
// fetching active sources with per-host politeness, parsing them via
// registered strategies, and handing fetched pages to the discoverer.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/ports"
)

// LinkFollower is the discoverer hook invoked for every fetched page.
type LinkFollower interface {
	Discover(ctx context.Context, pageURL string, body []byte) (int, error)
}

// Crawler drives one crawl pass over all active sources.
type Crawler struct {
	cfg        config.CrawlerConfig
	fetcher    ports.Fetcher
	registry   *Registry
	sources    ports.SourceRepository
	documents  ports.DocumentRepository
	discoverer LinkFollower
	throttle   *hostThrottle
	logger     *slog.Logger
	now        func() time.Time
}

// NewCrawler wires the crawl stage.
func NewCrawler(cfg config.CrawlerConfig, fetcher ports.Fetcher, registry *Registry,
	sources ports.SourceRepository, documents ports.DocumentRepository,
	discoverer LinkFollower, logger *slog.Logger) *Crawler {
	return &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		registry:   registry,
		sources:    sources,
		documents:  documents,
		discoverer: discoverer,
		throttle:   newHostThrottle(cfg.PolitenessDelay()),
		logger:     logger,
		now:        time.Now,
	}
}

// Run crawls every active source once. Each source is handled start to
// finish by a single worker, so documents from one source keep their
// discovery order. Per-source failures are logged and skipped; only a
// repository failure listing sources aborts the pass. On cancellation
// the pool drains: in-flight sources finish, queued ones are dropped.
func (c *Crawler) Run(ctx context.Context) error {
	active, err := c.sources.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active sources: %w", err)
	}
	if len(active) == 0 {
		c.debug("no active sources to crawl")
		return nil
	}

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	queue := make(chan domain.Source)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range queue {
				if err := c.crawlSource(ctx, src); err != nil {
					c.warn("crawl source failed", "source", src.URL, "error", err)
				}
			}
		}()
	}

feed:
	for _, src := range active {
		select {
		case <-ctx.Done():
			break feed
		case queue <- src:
		}
	}
	close(queue)
	wg.Wait()

	return nil
}

func (c *Crawler) crawlSource(ctx context.Context, src domain.Source) error {
	if err := c.throttle.Wait(ctx, src.URL); err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout())
	body, err := c.fetcher.Fetch(fetchCtx, src.URL)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	strategy, err := c.registry.Resolve(src.Strategy)
	if err != nil {
		return err
	}

	items, err := strategy.Parse(src.URL, body)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	saved := 0
	for _, item := range items {
		if c.cfg.DocumentsPerSource > 0 && saved >= c.cfg.DocumentsPerSource {
			break
		}
		if item.URL == "" || item.Title == "" {
			continue
		}
		doc := domain.Document{
			ID:        domain.DocumentID(src.URL, item.URL),
			Title:     item.Title,
			URL:       item.URL,
			Content:   buildContent(item),
			SourceURL: src.URL,
		}
		if !item.PublishedAt.IsZero() {
			published := item.PublishedAt
			doc.PublishedAt = &published
		}
		inserted, err := c.documents.Insert(ctx, doc)
		if err != nil {
			c.warn("save document failed", "source", src.URL, "url", item.URL, "error", err)
			continue
		}
		if inserted {
			saved++
		}
	}

	if c.discoverer != nil && src.Strategy == "html" {
		if _, err := c.discoverer.Discover(ctx, src.URL, body); err != nil {
			c.warn("discovery failed", "source", src.URL, "error", err)
		}
	}

	if err := c.sources.MarkCrawled(ctx, src.URL, c.now()); err != nil {
		return fmt.Errorf("mark crawled: %w", err)
	}

	c.debug("crawled source", "source", src.URL, "items", len(items), "saved", saved)
	return nil
}

func buildContent(item Item) string {
	if item.Content == "" {
		return item.Title
	}
	return item.Title + "\n\n" + item.Content
}

func (c *Crawler) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Crawler) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
