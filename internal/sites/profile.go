// Package sites holds the immutable per-source descriptors the crawler runs
// against. A Profile captures everything site-specific outside the extraction
// rules: URLs, pagination mechanics, pacing, and the link shapes that
// distinguish a listing detail page from navigation chrome.
package sites

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PaginationMode selects how the walker advances past page 1.
type PaginationMode string

const (
	// PaginationQueryParam appends a page-number query parameter; every page
	// fetch is independent.
	PaginationQueryParam PaginationMode = "query_param"
	// PaginationScriptDriven advances by running a page-side script inside a
	// live fetcher session; each page depends on the prior rendered state.
	PaginationScriptDriven PaginationMode = "script_driven"
)

// Categories accepted by ListURLFor.
const (
	CategoryBuy  = "buy"
	CategoryRent = "rent"
)

// Profile describes one listing source. Profiles are built once at startup
// and never mutated afterwards.
type Profile struct {
	ID             string
	Name           string
	BaseURL        string
	PaginationMode PaginationMode
	// PaginationParam is the query key for PaginationQueryParam sites.
	PaginationParam string
	RateLimit       time.Duration
	MaxConcurrency  int
	Timeout         time.Duration
	RetryCount      int
	// RequiresRender forces every fetch through the rendering fetcher.
	// Sites serving complete HTML statically leave this false and rely on
	// shell detection to escalate only when needed.
	RequiresRender bool

	// DetailPatterns and ExcludePatterns classify hrefs on a list page.
	// A URL is a detail link only if it contains a detail pattern and no
	// exclude pattern; both checks are case-insensitive substring matches.
	DetailPatterns  []string
	ExcludePatterns []string

	// AdvanceScript is a fmt template (one %d, the target page) evaluated in
	// the live session for script-driven pagination.
	AdvanceScript string
	// WaitSelector is the CSS selector whose presence signals the page body
	// has rendered.
	WaitSelector string
	// SettleDelay is the extra pause after navigation or script execution
	// before HTML is read back.
	SettleDelay time.Duration

	// HomeSentinels are breadcrumb labels stripped from the head of a
	// navigation path (site home links).
	HomeSentinels []string
	// TitleSuffixes are site-name tails stripped from <title> candidates.
	TitleSuffixes []string
	// CategoryPaths maps buy/rent to the listing path for that category.
	CategoryPaths map[string]string
	// CategoryLabels maps buy/rent to the record label used when no
	// breadcrumb category was resolved.
	CategoryLabels map[string]string
}

// Validate reports the first structurally invalid field.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile id must be set")
	}
	if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
		return fmt.Errorf("profile %s: invalid base url: %w", p.ID, err)
	}
	switch p.PaginationMode {
	case PaginationQueryParam:
		if p.PaginationParam == "" {
			return fmt.Errorf("profile %s: query-param pagination needs a parameter name", p.ID)
		}
	case PaginationScriptDriven:
		if p.AdvanceScript == "" {
			return fmt.Errorf("profile %s: script-driven pagination needs an advance script", p.ID)
		}
	default:
		return fmt.Errorf("profile %s: unknown pagination mode %q", p.ID, p.PaginationMode)
	}
	if p.RateLimit <= 0 {
		return fmt.Errorf("profile %s: rate limit must be > 0", p.ID)
	}
	if p.MaxConcurrency <= 0 {
		return fmt.Errorf("profile %s: max concurrency must be > 0", p.ID)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("profile %s: timeout must be > 0", p.ID)
	}
	if p.RetryCount < 0 {
		return fmt.Errorf("profile %s: retry count must be >= 0", p.ID)
	}
	if len(p.DetailPatterns) == 0 {
		return fmt.Errorf("profile %s: at least one detail pattern required", p.ID)
	}
	return nil
}

// ListURLFor returns the listing URL for a category, falling back to the buy
// path when the category has no mapping.
func (p Profile) ListURLFor(category string) string {
	path, ok := p.CategoryPaths[category]
	if !ok {
		path = p.CategoryPaths[CategoryBuy]
	}
	return strings.TrimRight(p.BaseURL, "/") + path
}

// CategoryLabel translates buy/rent into the site's record label.
func (p Profile) CategoryLabel(category string) string {
	if label, ok := p.CategoryLabels[category]; ok {
		return label
	}
	return ""
}

// PageURL builds the fetch URL for a query-param page number.
func (p Profile) PageURL(listURL string, page int) (string, error) {
	u, err := url.Parse(listURL)
	if err != nil {
		return "", fmt.Errorf("parse list url: %w", err)
	}
	q := u.Query()
	q.Set(p.PaginationParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PageScript renders the advance script for the target page.
func (p Profile) PageScript(page int) string {
	return fmt.Sprintf(p.AdvanceScript, page)
}

// AcceptsDetailURL reports whether an href looks like a listing detail page:
// it must carry one of the site's detail path shapes and none of the
// exclusion markers (auth pages, non-residential categories, list paths).
func (p Profile) AcceptsDetailURL(raw string) bool {
	href := strings.ToLower(strings.TrimSpace(raw))
	if href == "" {
		return false
	}
	matched := false
	for _, pattern := range p.DetailPatterns {
		if strings.Contains(href, strings.ToLower(pattern)) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, pattern := range p.ExcludePatterns {
		if strings.Contains(href, strings.ToLower(pattern)) {
			return false
		}
	}
	return true
}

// ResolveURL makes an href absolute against the site base.
func (p Profile) ResolveURL(href string) (string, error) {
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Override adjusts tunable profile fields from configuration. Zero values
// leave the built-in value untouched.
type Override struct {
	ListURL        string
	RateLimit      time.Duration
	MaxConcurrency int
	Timeout        time.Duration
	RetryCount     int
}

// Apply returns a copy of the profile with the override merged in.
func (p Profile) Apply(o Override) Profile {
	if o.RateLimit > 0 {
		p.RateLimit = o.RateLimit
	}
	if o.MaxConcurrency > 0 {
		p.MaxConcurrency = o.MaxConcurrency
	}
	if o.Timeout > 0 {
		p.Timeout = o.Timeout
	}
	if o.RetryCount > 0 {
		p.RetryCount = o.RetryCount
	}
	if o.ListURL != "" {
		if p.CategoryPaths == nil {
			p.CategoryPaths = map[string]string{}
		}
		// A raw override pins both categories to the same URL.
		trimmed := strings.TrimPrefix(o.ListURL, strings.TrimRight(p.BaseURL, "/"))
		p.CategoryPaths = map[string]string{
			CategoryBuy:  trimmed,
			CategoryRent: trimmed,
		}
	}
	return p
}
