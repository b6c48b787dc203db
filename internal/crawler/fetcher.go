package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"webscout/internal/ports"
)

const userAgent = "Mozilla/5.0 (compatible; WebScout/1.0)"

// Reject pages larger than this; listing pages and articles fit well
// under it.
const maxBodyBytes = 4 << 20

// HTTPFetcher retrieves raw page bytes. Fetch errors are recoverable
// at the calling stage by contract.
type HTTPFetcher struct {
	client *http.Client
}

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher wires an HTTP client; timeout bounds a single fetch.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads one URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// hostThrottle enforces a politeness delay between successive requests
// to the same host. Safe for concurrent use by the worker pool.
type hostThrottle struct {
	mu    sync.Mutex
	delay time.Duration
	last  map[string]time.Time
}

func newHostThrottle(delay time.Duration) *hostThrottle {
	return &hostThrottle{delay: delay, last: map[string]time.Time{}}
}

// Wait blocks until the host's politeness window has passed or the
// context is cancelled. It reserves the slot before sleeping so two
// workers cannot hit the same host back to back.
func (t *hostThrottle) Wait(ctx context.Context, rawURL string) error {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	t.mu.Lock()
	now := time.Now()
	next := t.last[host].Add(t.delay)
	if next.Before(now) {
		next = now
	}
	t.last[host] = next
	t.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
