package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webscout/internal/config"
	"webscout/internal/domain"
	"webscout/internal/ports"
)

func TestHTMLStrategyPrefersArticle(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title>Page Title</title></head><body>
		<p>Intro paragraph.</p>
		<article>The article body text.</article>
	</body></html>`)

	items, err := NewHTMLStrategy().Parse("https://example.org/post", body)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Page Title", items[0].Title)
	assert.Equal(t, "https://example.org/post", items[0].URL)
	assert.Equal(t, "The article body text.", items[0].Content)
}

func TestHTMLStrategyFallsBackToParagraphs(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head>
		<title>Fallback</title>
		<meta property="og:title" content="OG Title"/>
	</head><body><p>First.</p><div><p>Second.</p></div></body></html>`)

	items, err := NewHTMLStrategy().Parse("https://example.org/", body)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "OG Title", items[0].Title)
	assert.Equal(t, "First.\nSecond.", items[0].Content)
}

func TestHTMLStrategyParsesListingRows(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title>Front Page</title></head><body><table>
		<tr class="athing"><td class="title"><span class="titleline">
			<a href="https://example.org/story-1">First story</a></span></td></tr>
		<tr class="athing"><td class="title"><span class="titleline">
			<a href="item?id=2">Second story</a></span></td></tr>
		<tr class="athing"><td class="title"><span class="titleline">
			<a href="https://example.org/story-1">First story again</a></span></td></tr>
	</table></body></html>`)

	items, err := NewHTMLStrategy().Parse("https://news.example/", body)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "First story", items[0].Title)
	assert.Equal(t, "https://example.org/story-1", items[0].URL)
	assert.Equal(t, "Second story", items[1].Title)
	assert.Equal(t, "https://news.example/item?id=2", items[1].URL)
}

func TestHTMLStrategyParsesHeadingListing(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title>Blog</title></head><body>
		<h2><a href="/posts/a">Post A</a></h2>
		<h2><a href="/posts/b">Post B</a></h2>
		<h3><a href="/posts/c">Post C</a></h3>
		<h3><a href="mailto:author@example.org">Mail me</a></h3>
	</body></html>`)

	items, err := NewHTMLStrategy().Parse("https://blog.example/", body)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "https://blog.example/posts/a", items[0].URL)
	assert.Equal(t, "https://blog.example/posts/b", items[1].URL)
	assert.Equal(t, "https://blog.example/posts/c", items[2].URL)
}

func TestHTMLStrategyHeadingLinksBelowListingCutoff(t *testing.T) {
	t.Parallel()

	// Two section links inside an article are not a listing.
	body := []byte(`<html><head><title>Deep Dive</title></head><body>
		<h2><a href="/related">Related work</a></h2>
		<h3><a href="/refs">References</a></h3>
		<article>The long form body.</article>
	</body></html>`)

	items, err := NewHTMLStrategy().Parse("https://blog.example/deep", body)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "https://blog.example/deep", items[0].URL)
	assert.Equal(t, "The long form body.", items[0].Content)
}

func TestRSSStrategyKeepsFeedOrder(t *testing.T) {
	t.Parallel()

	feed := []byte(`<?xml version="1.0"?>
	<rss version="2.0"><channel><title>Feed</title>
		<item><title>One</title><link>https://example.org/1</link><description>first body</description>
			<pubDate>Fri, 28 Aug 2026 09:30:00 GMT</pubDate></item>
		<item><title>Two</title><link>https://example.org/2</link><description>second body</description></item>
		<item><title>No link</title><description>skipped</description></item>
	</channel></rss>`)

	items, err := NewRSSStrategy().Parse("https://example.org/feed.xml", feed)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "One", items[0].Title)
	assert.Equal(t, "first body", items[0].Content)
	assert.Equal(t, time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC), items[0].PublishedAt.UTC())
	assert.Equal(t, "Two", items[1].Title)
	assert.True(t, items[1].PublishedAt.IsZero())
}

func TestCrawlerStoresPublicationTime(t *testing.T) {
	t.Parallel()

	feed := []byte(`<?xml version="1.0"?>
	<rss version="2.0"><channel><title>Feed</title>
		<item><title>Dated</title><link>https://example.org/dated</link>
			<description>body</description>
			<pubDate>Fri, 28 Aug 2026 09:30:00 GMT</pubDate></item>
		<item><title>Undated</title><link>https://example.org/undated</link>
			<description>body</description></item>
	</channel></rss>`)
	fetcher := &fetchStub{pages: map[string][]byte{
		"https://feed.example/rss": feed,
	}}
	sources := &sourceRepoStub{
		active:  []domain.Source{{URL: "https://feed.example/rss", Strategy: "rss", Active: true}},
		crawled: map[string]time.Time{},
	}
	docs := &docRepoStub{rows: map[string]domain.Document{}}

	registry := NewRegistry()
	registry.Register(NewRSSStrategy())

	c := NewCrawler(testCrawlerConfig(), fetcher, registry, sources, docs, nil, nil)
	require.NoError(t, c.Run(context.Background()))

	dated := docs.rows[domain.DocumentID("https://feed.example/rss", "https://example.org/dated")]
	require.NotNil(t, dated.PublishedAt)
	assert.Equal(t, time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC), dated.PublishedAt.UTC())

	undated := docs.rows[domain.DocumentID("https://feed.example/rss", "https://example.org/undated")]
	assert.Nil(t, undated.PublishedAt)
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "WebScout")
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	body, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestHostThrottleSpacesRequests(t *testing.T) {
	t.Parallel()

	th := newHostThrottle(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, th.Wait(ctx, "https://a.example/page1"))
	require.NoError(t, th.Wait(ctx, "https://a.example/page2"))
	sameHost := time.Since(start)
	assert.GreaterOrEqual(t, sameHost, 50*time.Millisecond)

	// A different host is not delayed by the first one.
	start = time.Now()
	require.NoError(t, th.Wait(ctx, "https://b.example/page"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHostThrottleCancellation(t *testing.T) {
	t.Parallel()

	th := newHostThrottle(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, th.Wait(ctx, "https://a.example/"))
	cancel()
	assert.ErrorIs(t, th.Wait(ctx, "https://a.example/"), context.Canceled)
}

type fetchStub struct {
	mu      sync.Mutex
	pages   map[string][]byte
	fetched []string
}

func (f *fetchStub) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("boom")
	}
	return body, nil
}

type sourceRepoStub struct {
	ports.SourceRepository
	mu      sync.Mutex
	active  []domain.Source
	crawled map[string]time.Time
}

func (s *sourceRepoStub) ListActive(context.Context) ([]domain.Source, error) {
	return s.active, nil
}

func (s *sourceRepoStub) MarkCrawled(_ context.Context, url string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crawled[url] = at
	return nil
}

type docRepoStub struct {
	ports.DocumentRepository
	mu   sync.Mutex
	rows map[string]domain.Document
}

func (d *docRepoStub) Insert(_ context.Context, doc domain.Document) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rows[doc.ID]; ok {
		return false, nil
	}
	d.rows[doc.ID] = doc
	return true, nil
}

func testCrawlerConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		Workers:             2,
		PolitenessSeconds:   0,
		FetchTimeoutSeconds: 5,
		DocumentsPerSource:  10,
	}
}

func TestCrawlerRunIsIdempotent(t *testing.T) {
	t.Parallel()

	page := []byte(`<html><head><title>Post</title></head><body><article>Body text.</article></body></html>`)
	fetcher := &fetchStub{pages: map[string][]byte{
		"https://blog.example/": page,
	}}
	sources := &sourceRepoStub{
		active:  []domain.Source{{URL: "https://blog.example/", Strategy: "html", Active: true}},
		crawled: map[string]time.Time{},
	}
	docs := &docRepoStub{rows: map[string]domain.Document{}}

	registry := NewRegistry()
	registry.Register(NewHTMLStrategy())

	c := NewCrawler(testCrawlerConfig(), fetcher, registry, sources, docs, nil, nil)

	require.NoError(t, c.Run(context.Background()))
	require.NoError(t, c.Run(context.Background()))

	// Re-crawling the same URL never duplicates the document.
	assert.Len(t, docs.rows, 1)
	assert.Contains(t, sources.crawled, "https://blog.example/")

	for _, doc := range docs.rows {
		assert.Equal(t, domain.DocumentID("https://blog.example/", "https://blog.example/"), doc.ID)
		assert.Equal(t, "Post\n\nBody text.", doc.Content)
	}
}

func TestCrawlerSavesEachListingEntry(t *testing.T) {
	t.Parallel()

	page := []byte(`<html><head><title>Front</title></head><body><table>
		<tr class="athing"><td class="title"><span class="titleline">
			<a href="https://a.example/one">One</a></span></td></tr>
		<tr class="athing"><td class="title"><span class="titleline">
			<a href="https://b.example/two">Two</a></span></td></tr>
		<tr class="athing"><td class="title"><span class="titleline">
			<a href="https://c.example/three">Three</a></span></td></tr>
	</table></body></html>`)
	fetcher := &fetchStub{pages: map[string][]byte{
		"https://news.example/": page,
	}}
	sources := &sourceRepoStub{
		active:  []domain.Source{{URL: "https://news.example/", Strategy: "html", Active: true}},
		crawled: map[string]time.Time{},
	}
	docs := &docRepoStub{rows: map[string]domain.Document{}}

	registry := NewRegistry()
	registry.Register(NewHTMLStrategy())

	c := NewCrawler(testCrawlerConfig(), fetcher, registry, sources, docs, nil, nil)
	require.NoError(t, c.Run(context.Background()))

	// Every entry becomes its own document under the same source.
	assert.Len(t, docs.rows, 3)
	for _, doc := range docs.rows {
		assert.Equal(t, "https://news.example/", doc.SourceURL)
	}
}

func TestCrawlerSourceFailureDoesNotAbortPass(t *testing.T) {
	t.Parallel()

	page := []byte(`<html><head><title>Good</title></head><body><article>ok</article></body></html>`)
	fetcher := &fetchStub{pages: map[string][]byte{
		"https://good.example/": page,
	}}
	sources := &sourceRepoStub{
		active: []domain.Source{
			{URL: "https://down.example/", Strategy: "html", Active: true},
			{URL: "https://good.example/", Strategy: "html", Active: true},
		},
		crawled: map[string]time.Time{},
	}
	docs := &docRepoStub{rows: map[string]domain.Document{}}

	registry := NewRegistry()
	registry.Register(NewHTMLStrategy())

	c := NewCrawler(testCrawlerConfig(), fetcher, registry, sources, docs, nil, nil)
	require.NoError(t, c.Run(context.Background()))

	assert.Len(t, docs.rows, 1)
	assert.Contains(t, sources.crawled, "https://good.example/")
	assert.NotContains(t, sources.crawled, "https://down.example/")
}
