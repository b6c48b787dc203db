package crawler

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSStrategy parses RSS/Atom feeds, one item per entry, in feed order.
type RSSStrategy struct {
	parser *gofeed.Parser
}

// NewRSSStrategy builds the feed strategy.
func NewRSSStrategy() *RSSStrategy {
	return &RSSStrategy{parser: gofeed.NewParser()}
}

// Name identifies the strategy inside the registry.
func (r *RSSStrategy) Name() string {
	return "rss"
}

// Parse converts feed entries into items. Entries without a link are
// skipped; content falls back to the description.
func (r *RSSStrategy) Parse(pageURL string, body []byte) ([]Item, error) {
	feed, err := r.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", pageURL, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}
		content := entry.Content
		if strings.TrimSpace(content) == "" {
			content = entry.Description
		}
		var published time.Time
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		}
		items = append(items, Item{
			Title:       strings.TrimSpace(entry.Title),
			URL:         entry.Link,
			Content:     strings.TrimSpace(content),
			PublishedAt: published,
		})
	}
	return items, nil
}
