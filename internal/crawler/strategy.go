package crawler

import (
	"fmt"
	"time"
)

// Item is one piece of content extracted from a fetched page or feed.
type Item struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// Strategy turns a fetched payload into items. Implementations must
// preserve the order items appear in on the page or feed; the crawl
// stage relies on that order per source.
type Strategy interface {
	Name() string
	Parse(pageURL string, body []byte) ([]Item, error)
}

// Registry keeps a mapping from strategy names to implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[s.Name()] = s
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("strategy %s is not registered", name)
}
