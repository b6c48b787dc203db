// Package discovery extracts outbound links from fetched pages and
// registers unseen ones as candidate sources.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"webscout/internal/domain"
	"webscout/internal/ports"
)

// Non-content extensions discarded during normalization.
var skipExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".css": {}, ".js": {}, ".mjs": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".rar": {}, ".7z": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

// Coarse platform classification by hostname suffix. Order matters for
// nothing here; every entry is a distinct suffix. Unmatched hosts are
// "unknown".
var platformHosts = []struct {
	suffix   string
	platform string
}{
	{"news.ycombinator.com", "hackernews"},
	{"reddit.com", "reddit"},
	{"arxiv.org", "arxiv"},
	{"lobste.rs", "lobsters"},
	{"indiehackers.com", "indiehackers"},
	{"lesswrong.com", "lesswrong"},
	{"twitter.com", "twitter"},
	{"x.com", "twitter"},
	{"substack.com", "newsletter"},
	{"medium.com", "blog"},
}

// Discoverer registers candidate sources found while crawling.
type Discoverer struct {
	sources   ports.SourceRepository
	seedTrust float64
	logger    *slog.Logger
}

// NewDiscoverer wires the discoverer to the source repository.
func NewDiscoverer(sources ports.SourceRepository, seedTrust float64, logger *slog.Logger) *Discoverer {
	return &Discoverer{sources: sources, seedTrust: seedTrust, logger: logger}
}

// Discover parses a fetched page, normalizes its outbound links, and
// inserts each unseen one as a candidate source with the seed trust.
// Duplicate URLs are no-ops. Returns how many new sources were added.
func (d *Discoverer) Discover(ctx context.Context, pageURL string, body []byte) (int, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return 0, fmt.Errorf("parse page url %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	seen := map[string]struct{}{}
	added := 0

	var loopErr error
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		normalized, ok := Normalize(base, href)
		if !ok {
			return true
		}
		if _, dup := seen[normalized]; dup {
			return true
		}
		seen[normalized] = struct{}{}

		host := hostOf(normalized)
		src := domain.Source{
			URL:       normalized,
			Platform:  ClassifyPlatform(host),
			Strategy:  "html",
			Discovery: domain.DiscoveryLinkFollow,
			ParentURL: pageURL,
			Trust:     d.seedTrust,
			Active:    true,
		}
		inserted, err := d.sources.Upsert(ctx, src)
		if err != nil {
			loopErr = fmt.Errorf("register source %s: %w", normalized, err)
			return false
		}
		if inserted {
			added++
			if d.logger != nil {
				d.logger.Debug("discovered source", "url", normalized, "platform", src.Platform, "parent", pageURL)
			}
		}
		return true
	})
	if loopErr != nil {
		return added, loopErr
	}
	return added, nil
}

// Normalize resolves href against the page URL and strips fragment and
// query. It reports false for non-http schemes, unresolvable refs, and
// obvious non-content extensions.
func Normalize(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}

	ext := strings.ToLower(path.Ext(abs.Path))
	if _, skip := skipExtensions[ext]; skip {
		return "", false
	}

	abs.Fragment = ""
	abs.RawQuery = ""
	abs.Host = strings.ToLower(abs.Host)
	return abs.String(), true
}

// ClassifyPlatform maps a hostname onto the known-platform table,
// defaulting to "unknown".
func ClassifyPlatform(host string) string {
	host = strings.ToLower(host)
	for _, entry := range platformHosts {
		if host == entry.suffix || strings.HasSuffix(host, "."+entry.suffix) {
			return entry.platform
		}
	}
	return "unknown"
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
