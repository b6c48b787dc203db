// Package cache provides summary caches keyed by content hash so
// identical content is never resubmitted to the generation provider.
// Both backends are bounded: the in-memory one by entry count, the
// Redis one by TTL.
package cache

import (
	"container/list"
	"context"
	"sync"

	"webscout/internal/ports"
)

// LRU is a bounded in-memory cache evicting the least recently used
// entry once full.
type LRU struct {
	mu      sync.Mutex
	cap     int
	order   *list.List
	entries map[string]*list.Element
}

type lruEntry struct {
	key   string
	value string
}

var _ ports.SummaryCache = (*LRU)(nil)

// NewLRU builds a cache holding at most capacity entries.
func NewLRU(capacity int) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU{
		cap:     capacity,
		order:   list.New(),
		entries: map[string]*list.Element{},
	}
}

// Get returns the cached summary for a key, refreshing its recency.
func (c *LRU) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

// Set stores a summary, evicting the oldest entry when full.
func (c *LRU) Set(_ context.Context, key, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).value = summary
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: summary})

	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}

// Len reports the current entry count.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
