package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/extract"
	"github.com/hkpdata/listings-crawler/internal/fetch"
	"github.com/hkpdata/listings-crawler/internal/listing"
	"github.com/hkpdata/listings-crawler/internal/progress"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// Scheduler fetches detail pages with bounded concurrency and turns them into
// records. A URL either becomes exactly one record or exactly one failure;
// nothing is retried across runs.
type Scheduler struct {
	fetcher   fetch.Fetcher
	pacer     *fetch.Pacer
	robots    fetch.RobotsPolicy
	extractor *extract.Extractor
	retry     fetch.RetryPolicy
	emitter   progress.Emitter
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler builds a scheduler bound to one fetcher.
func NewScheduler(
	fetcher fetch.Fetcher,
	pacer *fetch.Pacer,
	robots fetch.RobotsPolicy,
	extractor *extract.Extractor,
	retry fetch.RetryPolicy,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fetcher:   fetcher,
		pacer:     pacer,
		robots:    robots,
		extractor: extractor,
		retry:     retry,
		emitter:   emitter,
		logger:    logger,
		now:       time.Now,
	}
}

type taskOutcome struct {
	record listing.Record
	failed listing.FailedURL
	ok     bool
}

// Run processes the site's detail URLs. Results keep the input order of the
// URLs that produced them so exports are deterministic for a given walk.
func (s *Scheduler) Run(ctx context.Context, runID [16]byte, profile sites.Profile, urls []string) ([]listing.Record, []listing.FailedURL) {
	if len(urls) == 0 {
		return nil, nil
	}

	limit := profile.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	outcomes := make([]taskOutcome, len(urls))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i, rawURL := range urls {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(urls); j++ {
				outcomes[j] = taskOutcome{failed: listing.FailedURL{URL: urls[j], Reason: "run canceled"}}
			}
			goto drain
		}
		wg.Add(1)
		go func(idx int, pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = s.runTask(ctx, runID, profile, pageURL)

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			if done%10 == 0 || done == len(urls) {
				s.logger.Info("detail progress",
					zap.String("site", profile.ID),
					zap.Int("done", done),
					zap.Int("total", len(urls)))
			}
		}(i, rawURL)
	}
drain:
	wg.Wait()

	records := make([]listing.Record, 0, len(urls))
	var failed []listing.FailedURL
	for _, out := range outcomes {
		if out.ok {
			records = append(records, out.record)
		} else if out.failed.URL != "" {
			failed = append(failed, out.failed)
		}
	}
	return records, failed
}

// runTask handles one detail URL end to end. A panic in extraction is
// contained to the task and reported as a failure.
func (s *Scheduler) runTask(ctx context.Context, runID [16]byte, profile sites.Profile, pageURL string) (out taskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			taskPanics.WithLabelValues(profile.ID).Inc()
			s.logger.Error("detail task panicked",
				zap.String("site", profile.ID),
				zap.String("url", pageURL),
				zap.Any("panic", r))
			out = taskOutcome{failed: listing.FailedURL{URL: pageURL, Reason: fmt.Sprintf("panic: %v", r)}}
		}
	}()

	if s.robots != nil && !s.robots.Allowed(ctx, pageURL) {
		robotsBlocked.WithLabelValues(profile.ID).Inc()
		return taskOutcome{failed: listing.FailedURL{URL: pageURL, Reason: fetch.ErrRobotsDisallowed.Error()}}
	}

	res, err := s.fetchWithRetry(ctx, profile, pageURL)
	if err != nil {
		s.emitDetail(runID, profile, pageURL, progress.StatusOther, 0, false)
		return taskOutcome{failed: listing.FailedURL{URL: pageURL, Reason: err.Error()}}
	}
	statusClass := progress.ClassifyStatus(res.StatusCode)
	if res.StatusCode >= 400 {
		s.emitDetail(runID, profile, pageURL, statusClass, res.Duration, false)
		return taskOutcome{failed: listing.FailedURL{URL: pageURL, Reason: fmt.Sprintf("http %d", res.StatusCode)}}
	}

	rec, err := s.extractor.Extract(res.HTML, pageURL, profile)
	if err == nil {
		rec, err = listing.Assemble(rec, extract.IsBoilerplate, s.now())
	}
	if err != nil {
		s.emitDetail(runID, profile, pageURL, statusClass, res.Duration, false)
		return taskOutcome{failed: listing.FailedURL{URL: pageURL, Reason: err.Error()}}
	}

	s.emitDetail(runID, profile, pageURL, statusClass, res.Duration, true)
	return taskOutcome{record: rec, ok: true}
}

func (s *Scheduler) fetchWithRetry(ctx context.Context, profile sites.Profile, pageURL string) (fetch.Result, error) {
	opts := fetch.Options{
		SettleDelay: profile.SettleDelay,
		Timeout:     profile.Timeout,
	}
	var lastErr error
	for attempt := 0; ; attempt++ {
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx, profile.ID, profile.RateLimit); err != nil {
				return fetch.Result{}, err
			}
		}
		res, err := s.fetcher.Fetch(ctx, pageURL, opts)
		if err == nil {
			return res, nil
		}
		lastErr = err
		// The policy classifies the error; the profile caps the attempts.
		if s.retry == nil || attempt >= profile.RetryCount || !s.retry.ShouldRetry(err, attempt) {
			return fetch.Result{}, lastErr
		}
		detailRetries.WithLabelValues(profile.ID).Inc()
		select {
		case <-time.After(s.retry.Backoff(attempt)):
		case <-ctx.Done():
			return fetch.Result{}, fmt.Errorf("retry wait: %w", ctx.Err())
		}
	}
}

func (s *Scheduler) emitDetail(runID [16]byte, profile sites.Profile, pageURL string, class progress.StatusClass, dur time.Duration, ok bool) {
	if s.emitter == nil {
		return
	}
	evt := progress.Event{
		RunID:       runID,
		TS:          s.now().UTC(),
		Stage:       progress.StageDetailDone,
		Site:        profile.ID,
		URL:         pageURL,
		StatusClass: class,
		Dur:         dur,
	}
	if ok {
		evt.Done = 1
	} else {
		evt.Failed = 1
	}
	s.emitter.Emit(evt)
}
