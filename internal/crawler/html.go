package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Aggregator front pages mark each entry with a recognizable row
// element; the link selector picks the story link inside the row.
var listingSelectors = []struct {
	entry string
	link  string
}{
	{entry: "tr.athing", link: "span.titleline a, td.title > a"},
	{entry: "div.thing", link: "a.title"},
}

// minHeadingEntries is how many heading links a page needs before the
// generic pass treats it as a listing rather than an article.
const minHeadingEntries = 3

// HTMLStrategy parses a fetched page either as a listing or as a
// single document. Listing pages (aggregator front pages, blog
// indexes) yield one item per linked entry so each entry gets its own
// document; everything else yields the page title plus its main text.
type HTMLStrategy struct{}

// NewHTMLStrategy returns the generic page strategy.
func NewHTMLStrategy() *HTMLStrategy {
	return &HTMLStrategy{}
}

// Name identifies the strategy inside the registry.
func (h *HTMLStrategy) Name() string {
	return "html"
}

// Parse extracts listing entries when the page looks like an index,
// otherwise the page title and body text as a single item.
func (h *HTMLStrategy) Parse(pageURL string, body []byte) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", pageURL, err)
	}

	if items := extractListing(doc, pageURL); len(items) > 0 {
		return items, nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		title = strings.TrimSpace(og)
	}

	text := extractText(doc)
	if title == "" && text == "" {
		return nil, nil
	}

	return []Item{{Title: title, URL: pageURL, Content: text}}, nil
}

// extractListing returns one item per entry on a listing-style page,
// or nil when the page does not look like one.
func extractListing(doc *goquery.Document, pageURL string) []Item {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	for _, sel := range listingSelectors {
		var items []Item
		seen := map[string]bool{}
		doc.Find(sel.entry).Each(func(_ int, entry *goquery.Selection) {
			link := entry.Find(sel.link).First()
			href, ok := link.Attr("href")
			title := strings.TrimSpace(link.Text())
			if !ok || title == "" {
				return
			}
			abs := resolveLink(base, href)
			if abs == "" || seen[abs] {
				return
			}
			seen[abs] = true
			items = append(items, Item{Title: title, URL: abs})
		})
		if len(items) > 0 {
			return items
		}
	}

	// Blogs without aggregator markup usually link each post from a
	// heading. A handful of them is a listing; fewer is just an
	// article with section links.
	var items []Item
	seen := map[string]bool{}
	doc.Find("h2 a[href], h3 a[href]").Each(func(_ int, link *goquery.Selection) {
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" {
			return
		}
		abs := resolveLink(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		items = append(items, Item{Title: title, URL: abs})
	})
	if len(items) >= minHeadingEntries {
		return items
	}
	return nil
}

// resolveLink makes href absolute against the page URL and drops
// non-web schemes and fragments.
func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// extractText prefers article content and falls back to paragraphs.
func extractText(doc *goquery.Document) string {
	if article := doc.Find("article").First(); article.Length() > 0 {
		return strings.TrimSpace(article.Text())
	}

	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}
