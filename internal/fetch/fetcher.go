// Package fetch provides the page-fetching boundary: a rendering fetcher
// backed by headless Chrome, a fast static fetcher backed by Colly, and the
// shell detector that escalates from one to the other. Pagination that runs
// page-side scripts needs the rendering fetcher's named sessions.
package fetch

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors surfaced by fetcher implementations.
var (
	// ErrRenderingDisabled indicates the rendering fetcher was turned off via
	// configuration.
	ErrRenderingDisabled = errors.New("rendering disabled")
	// ErrSessionNotFound is returned for a script fetch against a session
	// that was never opened or has been released.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRobotsDisallowed marks URLs the robots policy refused.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)

// Options control a single fetch.
type Options struct {
	// SessionID names a reusable rendering session. Fetches with the same
	// session ID share one live browser tab; required for script-driven
	// pagination where each page depends on the prior rendered state.
	SessionID string
	// Script, when set, is evaluated in the named session instead of
	// navigating. The session's current DOM is read back afterwards.
	Script string
	// WaitSelector is the CSS selector that must be present before the HTML
	// is read. Empty means wait for body readiness only.
	WaitSelector string
	// SettleDelay is an extra pause after navigation or script execution so
	// late content can land.
	SettleDelay time.Duration
	// Timeout bounds the whole fetch; zero uses the fetcher default.
	Timeout time.Duration
}

// Result is a completed fetch.
type Result struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Rendered   bool
	Duration   time.Duration
}

// Fetcher retrieves one page per call.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts Options) (Result, error)
	Close(ctx context.Context) error
}

// SessionReleaser is implemented by fetchers holding named sessions open.
type SessionReleaser interface {
	ReleaseSession(id string)
}

// ReleaseSession releases a named session if the fetcher supports sessions.
func ReleaseSession(f Fetcher, id string) {
	if sr, ok := f.(SessionReleaser); ok {
		sr.ReleaseSession(id)
	}
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
