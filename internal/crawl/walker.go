package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/fetch"
	"github.com/hkpdata/listings-crawler/internal/progress"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// ErrPageOneFailed aborts a site: if the first list page cannot be fetched
// there is nothing to walk.
var ErrPageOneFailed = errors.New("first list page failed")

// WalkResult summarizes one site's list walk.
type WalkResult struct {
	// URLs are the detail pages newly added to the frontier, in discovery
	// order.
	URLs []string
	// Pages is the number of list pages fetched, including degraded retries.
	Pages int
}

// Walker fetches a site's list pages strictly in sequence and feeds detail
// URLs into the shared frontier. Walking is never concurrent: query-param
// sites because page state is cheap, script-driven sites because each page
// mutates one live browser session.
type Walker struct {
	fetcher fetch.Fetcher
	pacer   *fetch.Pacer
	robots  fetch.RobotsPolicy
	emitter progress.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewWalker builds a walker bound to one fetcher.
func NewWalker(fetcher fetch.Fetcher, pacer *fetch.Pacer, robots fetch.RobotsPolicy, emitter progress.Emitter, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		fetcher: fetcher,
		pacer:   pacer,
		robots:  robots,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// Walk advances through list pages until maxPages is reached or a page past
// the first contributes zero new URLs. A page-1 failure returns
// ErrPageOneFailed; later failures end the walk with what was gathered.
func (w *Walker) Walk(ctx context.Context, runID [16]byte, profile sites.Profile, listURL string, maxPages int, frontier *Frontier) (WalkResult, error) {
	var result WalkResult
	if maxPages <= 0 {
		maxPages = 1
	}

	scripted := profile.PaginationMode == sites.PaginationScriptDriven
	sessionID := ""
	if scripted {
		sessionID = "list-" + profile.ID
		defer fetch.ReleaseSession(w.fetcher, sessionID)
	}

	if !w.allowed(ctx, listURL) {
		return result, fmt.Errorf("%w: %s: %v", ErrPageOneFailed, listURL, fetch.ErrRobotsDisallowed)
	}
	res, err := w.fetchNavigate(ctx, profile, listURL, sessionID)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrPageOneFailed, listURL, err)
	}
	result.Pages++
	newURLs := w.harvest(profile, res.HTML, frontier, 1)
	result.URLs = append(result.URLs, newURLs...)
	w.emitPage(runID, profile.ID, 1, listURL, len(newURLs), res.Duration)

	for page := 2; page <= maxPages; page++ {
		var (
			pageURL string
			html    string
			dur     time.Duration
		)
		if scripted {
			html, dur, err = w.advanceScripted(ctx, profile, listURL, sessionID, page)
			pageURL = listURL
		} else {
			pageURL, err = profile.PageURL(listURL, page)
			if err == nil {
				if !w.allowed(ctx, pageURL) {
					err = fetch.ErrRobotsDisallowed
				} else {
					var res fetch.Result
					res, err = w.fetchNavigate(ctx, profile, pageURL, "")
					html, dur = res.HTML, res.Duration
				}
			}
		}
		if err != nil {
			w.logger.Warn("list walk ended early",
				zap.String("site", profile.ID),
				zap.Int("page", page),
				zap.Error(err))
			break
		}

		result.Pages++
		newURLs = w.harvest(profile, html, frontier, page)
		result.URLs = append(result.URLs, newURLs...)
		w.emitPage(runID, profile.ID, page, pageURL, len(newURLs), dur)

		// A page of already-seen URLs means the pager wrapped around or the
		// site ran out of listings.
		if len(newURLs) == 0 {
			w.logger.Info("list walk terminated: no new urls",
				zap.String("site", profile.ID),
				zap.Int("page", page))
			break
		}
	}
	return result, nil
}

func (w *Walker) allowed(ctx context.Context, rawURL string) bool {
	return w.robots == nil || w.robots.Allowed(ctx, rawURL)
}

func (w *Walker) fetchNavigate(ctx context.Context, profile sites.Profile, pageURL, sessionID string) (fetch.Result, error) {
	if err := w.pace(ctx, profile); err != nil {
		return fetch.Result{}, err
	}
	return w.fetcher.Fetch(ctx, pageURL, fetch.Options{
		SessionID:    sessionID,
		WaitSelector: profile.WaitSelector,
		SettleDelay:  profile.SettleDelay,
		Timeout:      profile.Timeout,
	})
}

// advanceScripted runs the pager script in the live session. A failed advance
// gets one retry with a doubled settle delay; if that also fails the session
// is re-navigated to page 1 so it ends in a known state, and the walk stops.
func (w *Walker) advanceScripted(ctx context.Context, profile sites.Profile, listURL, sessionID string, page int) (string, time.Duration, error) {
	script := profile.PageScript(page)
	res, err := w.fetchScript(ctx, profile, listURL, sessionID, script, profile.SettleDelay)
	if err == nil {
		return res.HTML, res.Duration, nil
	}
	w.logger.Debug("page advance failed; retrying with longer settle",
		zap.String("site", profile.ID),
		zap.Int("page", page),
		zap.Error(err))

	res, retryErr := w.fetchScript(ctx, profile, listURL, sessionID, script, 2*profile.SettleDelay)
	if retryErr == nil {
		return res.HTML, res.Duration, nil
	}
	if _, navErr := w.fetchNavigate(ctx, profile, listURL, sessionID); navErr != nil {
		w.logger.Debug("session reset after failed advance also failed",
			zap.String("site", profile.ID), zap.Error(navErr))
	}
	return "", 0, fmt.Errorf("advance to page %d: %w", page, retryErr)
}

func (w *Walker) fetchScript(ctx context.Context, profile sites.Profile, listURL, sessionID, script string, settle time.Duration) (fetch.Result, error) {
	if err := w.pace(ctx, profile); err != nil {
		return fetch.Result{}, err
	}
	return w.fetcher.Fetch(ctx, listURL, fetch.Options{
		SessionID:   sessionID,
		Script:      script,
		SettleDelay: settle,
		Timeout:     profile.Timeout,
	})
}

func (w *Walker) pace(ctx context.Context, profile sites.Profile) error {
	if w.pacer == nil {
		return nil
	}
	return w.pacer.Wait(ctx, profile.ID, profile.RateLimit)
}

// harvest pulls candidate hrefs out of a list page and adds the ones that
// look like detail links to the frontier, returning only the new ones.
func (w *Walker) harvest(profile sites.Profile, html string, frontier *Frontier, page int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		w.logger.Warn("unparseable list page", zap.String("site", profile.ID), zap.Error(err))
		return nil
	}
	var urls []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !profile.AcceptsDetailURL(href) {
			return
		}
		abs, err := profile.ResolveURL(href)
		if err != nil {
			return
		}
		if frontier.Add(profile.ID, abs, page) {
			urls = append(urls, abs)
		}
	})
	return urls
}

func (w *Walker) emitPage(runID [16]byte, siteID string, page int, pageURL string, found int, dur time.Duration) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(progress.Event{
		RunID: runID,
		TS:    w.now().UTC(),
		Stage: progress.StageListPageDone,
		Site:  siteID,
		Page:  page,
		URL:   pageURL,
		Found: found,
		Dur:   dur,
	})
}
