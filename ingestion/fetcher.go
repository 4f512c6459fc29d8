// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/lore/core"
)

// Fetch defaults.
const (
	DefaultMinContentLength = 200
	DefaultUserAgent        = "lore/1.0 (+https://github.com/poiesic/lore)"
	DefaultFetchAttempts    = 3
	DefaultRetryDelay       = 500 * time.Millisecond

	maxPageBytes = 10 << 20
)

// Page is the main content extracted from a fetched article.
type Page struct {
	URL      string
	Title    string
	Category string
	Text     string
}

// Fetcher retrieves an article and extracts its main content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// contentSelectors are tried in order to locate the article body.
var contentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".post-content",
	".article-body",
	".entry-content",
	"#content",
}

// noiseSelectors are removed before text extraction.
const noiseSelectors = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, figure figcaption"

// HTTPFetcher fetches pages over HTTP and extracts content with goquery.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	minLength   int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMinContentLength sets the minimum extracted length, in characters.
func WithMinContentLength(n int) FetcherOption {
	return func(f *HTTPFetcher) {
		if n >= 0 {
			f.minLength = n
		}
	}
}

// WithRetry sets the attempt budget and base delay for transient failures.
func WithRetry(maxAttempts int, baseDelay time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if maxAttempts > 0 {
			f.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			f.retryDelay = baseDelay
		}
	}
}

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger.With("component", "fetcher")
		}
	}
}

// NewHTTPFetcher creates a fetcher with sane defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		userAgent:   DefaultUserAgent,
		minLength:   DefaultMinContentLength,
		maxAttempts: DefaultFetchAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url and extracts its main content.
//
// A 404 or 410 wraps core.ErrNotFound. 429 and 5xx responses and network
// failures are retried, then wrap core.ErrUpstream or core.ErrUpstreamTimeout.
// Content shorter than the minimum length wraps core.ErrValidation.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	var doc *goquery.Document
	err := RetryWithBackoff(ctx, func() error {
		var ferr error
		doc, ferr = f.fetchDocument(ctx, url)
		return ferr
	}, f.maxAttempts, f.retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fetching %s: %w", core.ErrUpstreamTimeout, url, err)
		}
		return nil, err
	}

	page := Extract(doc)
	page.URL = url
	if n := utf8.RuneCountInString(page.Text); n < f.minLength {
		return nil, fmt.Errorf("%w: %s has %d characters of content, need %d", core.ErrValidation, url, n, f.minLength)
	}
	f.logger.Debug("fetched article", "url", url, "title", page.Title, "chars", len(page.Text))
	return page, nil
}

func (f *HTTPFetcher) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%w: build request: %w", core.ErrValidation, err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Permanent(ctx.Err())
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, fmt.Errorf("%w: fetching %s: %w", core.ErrUpstreamTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: fetching %s: %w", core.ErrUpstream, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, Permanent(fmt.Errorf("%w: %s returned %s", core.ErrNotFound, url, resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s returned %s", core.ErrUpstream, url, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, Permanent(fmt.Errorf("%w: %s returned %s", core.ErrUpstream, url, resp.Status))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, Permanent(fmt.Errorf("%w: parse %s: %w", core.ErrUpstream, url, err))
	}
	return doc, nil
}

// Extract pulls the title, section and main text out of an HTML document.
func Extract(doc *goquery.Document) *Page {
	page := &Page{
		Title:    firstNonEmpty(doc, `meta[property="og:title"]`, "content"),
		Category: firstNonEmpty(doc, `meta[property="article:section"]`, "content"),
	}
	if page.Title == "" {
		page.Title = collapse(doc.Find("title").First().Text())
	}
	if page.Title == "" {
		page.Title = collapse(doc.Find("h1").First().Text())
	}

	doc.Find(noiseSelectors).Remove()

	root := doc.Find("body")
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 && strings.TrimSpace(s.Text()) != "" {
			root = s
			break
		}
	}

	var blocks []string
	root.Find("h1, h2, h3, h4, p, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are reached through their own element
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		if text := collapse(root.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}
	page.Text = strings.Join(blocks, "\n\n")
	return page
}

func firstNonEmpty(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return collapse(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
