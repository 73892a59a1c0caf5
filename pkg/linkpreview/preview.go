// Package linkpreview fetches a URL found in a sent message and extracts
// Open Graph style metadata with pattern matching, not a full markup
// parser. Everything here is best-effort: failures are reported to the
// caller for logging and otherwise swallowed.
package linkpreview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"tarschat/pkg/models"
)

// DefaultUserAgent identifies the preview fetcher to remote servers.
const DefaultUserAgent = "TarsBot/1.0 (LinkPreview)"

// DefaultTimeout bounds the whole fetch.
const DefaultTimeout = 5 * time.Second

// DefaultMaxBodyBytes caps how much of the response body is scanned.
const DefaultMaxBodyBytes = 1 << 20 // 1 MiB

var (
	ogTitleRe = regexp.MustCompile(`(?i)<meta property="?og:title"? content="([^"]+)"?`)
	titleRe   = regexp.MustCompile(`(?i)<title>([^<]+)</title>`)
	ogDescRe  = regexp.MustCompile(`(?i)<meta property="?og:description"? content="([^"]+)"?`)
	descRe    = regexp.MustCompile(`(?i)<meta name="?description"? content="([^"]+)"?`)
	ogImageRe = regexp.MustCompile(`(?i)<meta property="?og:image"? content="([^"]+)"?`)
)

// Fetcher retrieves and parses link metadata.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout overrides the fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes overrides the response size cap.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewFetcher builds a Fetcher with the default timeout, user agent and
// body cap unless overridden.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch retrieves rawURL and extracts metadata. It returns (nil, nil)
// when the page yields no usable title: a parse miss is not an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.LinkMetadata, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, err
	}
	return Parse(rawURL, string(body)), nil
}

// Parse scans an HTML document for Open Graph metadata, falling back to
// the plain title and description tags. Returns nil when no title was
// found.
func Parse(rawURL, html string) *models.LinkMetadata {
	title := firstMatch(html, ogTitleRe, titleRe)
	if title == "" {
		return nil
	}
	md := &models.LinkMetadata{
		URL:   rawURL,
		Title: decodeEntities(title),
	}
	if d := firstMatch(html, ogDescRe, descRe); d != "" {
		md.Description = decodeEntities(d)
	}
	if img := firstMatch(html, ogImageRe); img != "" {
		md.Image = img
	}
	return md
}

func firstMatch(html string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

var entityReplacer = strings.NewReplacer(
	"&#x27;", "'",
	"&#39;", "'",
	"&quot;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&nbsp;", " ",
)

// decodeEntities decodes the small set of HTML entities commonly seen in
// title and description attributes.
func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
