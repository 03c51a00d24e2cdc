// Package extract turns HTML documents into flat SEO metadata. It is used by
// the crawlability checks and by the import-from-site flow.
package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eringen/seoconsole/internal/fetch"
)

// Metadata is the actual SEO state of a page. Empty fields were not found.
type Metadata struct {
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Robots        string   `json:"robots,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	OGTitle       string   `json:"ogTitle,omitempty"`
	OGDescription string   `json:"ogDescription,omitempty"`
	OGImageURL    string   `json:"ogImageUrl,omitempty"`
	OGType        string   `json:"ogType,omitempty"`
	OGURL         string   `json:"ogUrl,omitempty"`
	CanonicalURL  string   `json:"canonicalUrl,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (m Metadata) IsEmpty() bool {
	return m.Title == "" && m.Description == "" && m.Robots == "" && len(m.Keywords) == 0 &&
		m.OGTitle == "" && m.OGDescription == "" && m.OGImageURL == "" &&
		m.OGType == "" && m.OGURL == "" && m.CanonicalURL == ""
}

// FromHTML extracts metadata from an HTML string. If baseURL is non-empty,
// relative og:image, og:url and canonical URLs are resolved against it.
func FromHTML(html, baseURL string) Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Metadata{}
	}
	return FromDocument(doc, baseURL)
}

// FromDocument extracts metadata from an already parsed document.
func FromDocument(doc *goquery.Document, baseURL string) Metadata {
	m := Metadata{
		Title:         strings.TrimSpace(doc.Find("title").First().Text()),
		Description:   attr(doc, `meta[name="description"]`, "content"),
		Robots:        attr(doc, `meta[name="robots"]`, "content"),
		OGTitle:       attr(doc, `meta[property="og:title"]`, "content"),
		OGDescription: attr(doc, `meta[property="og:description"]`, "content"),
		OGImageURL:    attr(doc, `meta[property="og:image"]`, "content"),
		OGType:        attr(doc, `meta[property="og:type"]`, "content"),
		OGURL:         attr(doc, `meta[property="og:url"]`, "content"),
		CanonicalURL:  attr(doc, `link[rel="canonical"]`, "href"),
	}
	if kw := attr(doc, `meta[name="keywords"]`, "content"); kw != "" {
		m.Keywords = splitKeywords(kw)
	}
	if baseURL != "" {
		m.OGImageURL = resolve(m.OGImageURL, baseURL)
		m.OGURL = resolve(m.OGURL, baseURL)
		m.CanonicalURL = resolve(m.CanonicalURL, baseURL)
	}
	return m
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return v
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// resolve makes ref absolute against base. Absolute refs and unparsable
// input are returned unchanged.
func resolve(ref, base string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Extractor fetches live pages and extracts their metadata.
type Extractor struct {
	client     *fetch.Client
	log        *zap.Logger
	timeout    time.Duration
	crawlDelay time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// WithTimeout sets the per-page fetch timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithCrawlDelay sets the spacing between requests in Crawl (default 100ms).
func WithCrawlDelay(d time.Duration) Option {
	return func(e *Extractor) { e.crawlDelay = d }
}

// New returns an Extractor using client for all requests.
func New(client *fetch.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:     client,
		log:        zap.NewNop(),
		timeout:    10 * time.Second,
		crawlDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromURL fetches pageURL and extracts its metadata. Fetch failures and
// non-2xx responses are logged and yield empty Metadata.
func (e *Extractor) FromURL(ctx context.Context, pageURL string) Metadata {
	resp, err := e.client.Get(ctx, pageURL, e.timeout, 0)
	if err != nil {
		e.log.Warn("Failed to fetch page for extraction", zap.String("url", pageURL), zap.Error(err))
		return Metadata{}
	}
	if !resp.OK() {
		e.log.Warn("Page returned non-2xx status",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode))
		return Metadata{}
	}
	return FromHTML(string(resp.Body), pageURL)
}

// Crawl extracts metadata for each route under baseURL, one request at a
// time. Routes that cannot be joined with baseURL are skipped.
func (e *Extractor) Crawl(ctx context.Context, baseURL string, routes []string) map[string]Metadata {
	results := make(map[string]Metadata, len(routes))
	limiter := rate.NewLimiter(rate.Every(e.crawlDelay), 1)
	for _, route := range routes {
		if err := limiter.Wait(ctx); err != nil {
			e.log.Info("Crawl interrupted", zap.Error(err))
			break
		}
		pageURL, err := JoinURL(baseURL, route)
		if err != nil {
			e.log.Warn("Skipping route", zap.String("route", route), zap.Error(err))
			continue
		}
		results[route] = e.FromURL(ctx, pageURL)
	}
	return results
}

// JoinURL resolves route against baseURL the way a browser would.
func JoinURL(baseURL, route string) (string, error) {
	b, err := fetch.ParseURL(baseURL)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(route)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
