package crawl

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// FrontierURL is one scheduled detail page.
type FrontierURL struct {
	URL    string
	SiteID string
	Page   int
}

// NormalizeURL produces the dedup key for a detail URL: scheme and host
// lowercased, default ports stripped, the fragment dropped, and the path
// percent-decoding normalized. The query is kept verbatim because listing
// sites encode identity into it.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	// Force re-encoding from the decoded path so %E6%88%BF and 房 collide.
	u.RawPath = ""
	return u.String(), nil
}

// Frontier is the shared, normalized seen-set for a run. URLs discovered by
// any site in any category dedup against it; a URL is scheduled at most once
// per run.
type Frontier struct {
	mu   sync.Mutex
	seen map[string]struct{}
	urls []FrontierURL
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Add records a detail URL. It reports whether the URL was new; unparseable
// URLs are rejected.
func (f *Frontier) Add(siteID, raw string, page int) bool {
	key, err := NormalizeURL(raw)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	f.urls = append(f.urls, FrontierURL{URL: raw, SiteID: siteID, Page: page})
	return true
}

// Seen reports whether a URL is already in the frontier without adding it.
func (f *Frontier) Seen(raw string) bool {
	key, err := NormalizeURL(raw)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// Len returns the number of scheduled URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

// URLs returns a copy of every scheduled URL in discovery order.
func (f *Frontier) URLs() []FrontierURL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FrontierURL(nil), f.urls...)
}
