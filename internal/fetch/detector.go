package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ShellDetector inspects statically-fetched HTML for signals that the page
// is a JavaScript application shell whose listing content only exists after
// rendering.
type ShellDetector struct {
	minHTMLBytes int
	keywords     []string
}

// NewShellDetector builds a detector from the configured thresholds.
func NewShellDetector(minBytes int, keywords []string) *ShellDetector {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		cleaned = append(cleaned, strings.ToLower(kw))
	}
	return &ShellDetector{minHTMLBytes: minBytes, keywords: cleaned}
}

// NeedsRender reports whether the HTML looks like an unrendered shell:
// suspiciously small, carrying a known SPA marker, or missing the selector
// the caller expects real content to satisfy.
func (d *ShellDetector) NeedsRender(html, contentSelector string) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(html) < d.minHTMLBytes {
		return true
	}
	lower := strings.ToLower(html)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if contentSelector == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return true
	}
	return doc.Find(contentSelector).Length() == 0
}

// EscalatingFetcher tries the static fetcher first and escalates to the
// rendering fetcher once when the result looks like an app shell. Sessions
// and scripts always go straight to the rendering fetcher.
type EscalatingFetcher struct {
	static   Fetcher
	rendered Fetcher
	detector *ShellDetector
	logger   *zap.Logger
}

// NewEscalatingFetcher wires the two-tier fetcher. rendered may be nil, in
// which case shell pages are returned as-is.
func NewEscalatingFetcher(static, rendered Fetcher, detector *ShellDetector, logger *zap.Logger) *EscalatingFetcher {
	return &EscalatingFetcher{
		static:   static,
		rendered: rendered,
		detector: detector,
		logger:   logger,
	}
}

// Fetch implements Fetcher.
func (f *EscalatingFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (Result, error) {
	if opts.SessionID != "" || opts.Script != "" {
		if f.rendered == nil {
			return Result{}, ErrRenderingDisabled
		}
		return f.rendered.Fetch(ctx, rawURL, opts)
	}

	start := time.Now()
	res, err := f.static.Fetch(ctx, rawURL, opts)
	if err != nil {
		return Result{}, err
	}
	if f.rendered == nil || !f.detector.NeedsRender(res.HTML, opts.WaitSelector) {
		return res, nil
	}

	f.logger.Debug("static fetch looks like an app shell; escalating to renderer",
		zap.String("url", rawURL),
		zap.Int("static_bytes", len(res.HTML)),
		zap.Duration("static_duration", time.Since(start)))
	escalated, err := f.rendered.Fetch(ctx, rawURL, opts)
	if err != nil {
		// The static result is still a page; better a shell than nothing.
		f.logger.Warn("render escalation failed; keeping static result",
			zap.String("url", rawURL), zap.Error(err))
		return res, nil
	}
	return escalated, nil
}

// Close releases both underlying fetchers.
func (f *EscalatingFetcher) Close(ctx context.Context) error {
	var firstErr error
	if f.static != nil {
		if err := f.static.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if f.rendered != nil {
		if err := f.rendered.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReleaseSession forwards to the rendering fetcher.
func (f *EscalatingFetcher) ReleaseSession(id string) {
	if f.rendered != nil {
		ReleaseSession(f.rendered, id)
	}
}
