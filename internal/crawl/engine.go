// Package crawl orchestrates a run: walking each site's list pages, deduping
// detail URLs through a shared frontier, scheduling bounded-concurrency
// detail fetches, and handing the surviving records to the export sink.
package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/export"
	"github.com/hkpdata/listings-crawler/internal/extract"
	"github.com/hkpdata/listings-crawler/internal/fetch"
	"github.com/hkpdata/listings-crawler/internal/listing"
	"github.com/hkpdata/listings-crawler/internal/progress"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// RunConfig selects what a run covers.
type RunConfig struct {
	// Sites limits the run to these profile IDs; empty means every enabled
	// site.
	Sites []string
	// Category is buy or rent.
	Category string
	// Region keeps only records in the named crawl region.
	Region string
	// MaxPages bounds list walking per site.
	MaxPages int
	// MaxProperties bounds scheduled detail URLs across the whole run; zero
	// means unbounded.
	MaxProperties int
}

// SiteSummary is the per-site outcome of a run.
type SiteSummary struct {
	Site     string `json:"site"`
	Pages    int    `json:"pages"`
	Found    int    `json:"found"`
	Records  int    `json:"records"`
	Failed   int    `json:"failed"`
	Aborted  bool   `json:"aborted"`
	AbortErr string `json:"abort_error,omitempty"`
}

// RunSummary is the outcome of a whole run.
type RunSummary struct {
	RunID    string                 `json:"run_id"`
	Started  time.Time              `json:"started"`
	Duration time.Duration          `json:"duration_ns"`
	Records  int                    `json:"records"`
	Failed   int                    `json:"failed"`
	Sites    map[string]SiteSummary `json:"sites"`
	Manifest export.Manifest        `json:"-"`
}

// Engine runs crawls across the enabled sites. Sites are crawled in sequence
// and isolated from each other: one site aborting never stops the run.
type Engine struct {
	registry  *sites.Registry
	standard  fetch.Fetcher
	rendering fetch.Fetcher
	pacer     *fetch.Pacer
	robots    fetch.RobotsPolicy
	retry     fetch.RetryPolicy
	extractor *extract.Extractor
	emitter   progress.Emitter
	sink      export.Sink
	logger    *zap.Logger
	now       func() time.Time
}

// EngineDeps carries the collaborators an Engine needs.
type EngineDeps struct {
	Registry *sites.Registry
	// Standard serves sites that publish complete HTML; it may escalate to
	// rendering on its own when a page looks like an app shell.
	Standard fetch.Fetcher
	// Rendering serves RequiresRender profiles directly. Nil disables them.
	Rendering fetch.Fetcher
	Pacer     *fetch.Pacer
	Robots    fetch.RobotsPolicy
	Retry     fetch.RetryPolicy
	Extractor *extract.Extractor
	Emitter   progress.Emitter
	Sink      export.Sink
	Logger    *zap.Logger
}

// NewEngine wires an engine from its dependencies.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("engine requires a site registry")
	}
	if deps.Standard == nil {
		return nil, fmt.Errorf("engine requires a fetcher")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("engine requires an extractor")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("engine requires an export sink")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:  deps.Registry,
		standard:  deps.Standard,
		rendering: deps.Rendering,
		pacer:     deps.Pacer,
		robots:    deps.Robots,
		retry:     deps.Retry,
		extractor: deps.Extractor,
		emitter:   deps.Emitter,
		sink:      deps.Sink,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (e *Engine) fetcherFor(profile sites.Profile) (fetch.Fetcher, error) {
	if !profile.RequiresRender {
		return e.standard, nil
	}
	if e.rendering == nil {
		return nil, fmt.Errorf("site %s requires rendering: %w", profile.ID, fetch.ErrRenderingDisabled)
	}
	return e.rendering, nil
}

// Run executes one crawl and exports its results. The returned summary is
// valid even when some sites aborted; Run errors only when the run as a
// whole could not proceed.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (RunSummary, error) {
	selected, err := e.registry.Select(cfg.Sites)
	if err != nil {
		return RunSummary{}, err
	}
	if cfg.Category == "" {
		cfg.Category = sites.CategoryBuy
	}

	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	started := e.now()
	summary := RunSummary{
		RunID:   runUUID.String(),
		Started: started.UTC(),
		Sites:   make(map[string]SiteSummary, len(selected)),
	}
	e.emit(progress.Event{RunID: runID, TS: started.UTC(), Stage: progress.StageRunStart})

	frontier := NewFrontier()
	budget := cfg.MaxProperties
	var (
		records []listing.Record
		failed  []listing.FailedURL
	)
	for _, profile := range selected {
		if err := ctx.Err(); err != nil {
			e.emitRunError(runID, started, err)
			return summary, fmt.Errorf("run canceled: %w", err)
		}
		if cfg.MaxProperties > 0 && budget <= 0 {
			e.logger.Info("property budget exhausted; skipping remaining sites",
				zap.String("site", profile.ID))
			break
		}

		site := e.crawlSite(ctx, runID, profile, cfg, &budget, frontier)
		summary.Sites[profile.ID] = site.summary
		records = append(records, site.records...)
		failed = append(failed, site.failed...)
	}

	if cfg.Region != "" {
		before := len(records)
		records = listing.FilterByRegion(records, cfg.Region)
		e.logger.Info("region filter applied",
			zap.String("region", cfg.Region),
			zap.Int("kept", len(records)),
			zap.Int("dropped", before-len(records)))
	}
	summary.Records = len(records)
	summary.Failed = len(failed)

	manifest, err := e.sink.Write(ctx, records, failed)
	if err != nil {
		e.emitRunError(runID, started, err)
		return summary, fmt.Errorf("export run: %w", err)
	}
	summary.Manifest = manifest
	summary.Duration = e.now().Sub(started)

	e.emit(progress.Event{
		RunID:  runID,
		TS:     e.now().UTC(),
		Stage:  progress.StageRunDone,
		Done:   summary.Records,
		Failed: summary.Failed,
		Dur:    summary.Duration,
	})
	return summary, nil
}

type siteResult struct {
	summary SiteSummary
	records []listing.Record
	failed  []listing.FailedURL
}

func (e *Engine) crawlSite(ctx context.Context, runID [16]byte, profile sites.Profile, cfg RunConfig, budget *int, frontier *Frontier) siteResult {
	out := siteResult{summary: SiteSummary{Site: profile.ID}}

	fetcher, err := e.fetcherFor(profile)
	if err != nil {
		e.logger.Error("site skipped", zap.String("site", profile.ID), zap.Error(err))
		out.summary.Aborted = true
		out.summary.AbortErr = err.Error()
		return out
	}

	listURL := profile.ListURLFor(cfg.Category)
	e.emit(progress.Event{
		RunID: runID,
		TS:    e.now().UTC(),
		Stage: progress.StageSiteStart,
		Site:  profile.ID,
	})

	walker := NewWalker(fetcher, e.pacer, e.robots, e.emitter, e.logger)
	walk, err := walker.Walk(ctx, runID, profile, listURL, cfg.MaxPages, frontier)
	out.summary.Pages = walk.Pages
	out.summary.Found = len(walk.URLs)
	if err != nil {
		e.logger.Error("site aborted", zap.String("site", profile.ID), zap.Error(err))
		out.summary.Aborted = true
		out.summary.AbortErr = err.Error()
		e.emitSiteDone(runID, profile.ID, out.summary)
		return out
	}

	urls := walk.URLs
	if cfg.MaxProperties > 0 {
		if len(urls) > *budget {
			urls = urls[:*budget]
		}
		*budget -= len(urls)
	}

	scheduler := NewScheduler(fetcher, e.pacer, e.robots, e.extractor, e.retry, e.emitter, e.logger)
	out.records, out.failed = scheduler.Run(ctx, runID, profile, urls)
	out.summary.Records = len(out.records)
	out.summary.Failed = len(out.failed)
	e.emitSiteDone(runID, profile.ID, out.summary)
	return out
}

func (e *Engine) emitSiteDone(runID [16]byte, siteID string, s SiteSummary) {
	evt := progress.Event{
		RunID:  runID,
		TS:     e.now().UTC(),
		Stage:  progress.StageSiteDone,
		Site:   siteID,
		Found:  s.Found,
		Done:   s.Records,
		Failed: s.Failed,
	}
	if s.Aborted {
		evt.Note = s.AbortErr
	}
	e.emit(evt)
}

func (e *Engine) emitRunError(runID [16]byte, started time.Time, err error) {
	e.emit(progress.Event{
		RunID: runID,
		TS:    e.now().UTC(),
		Stage: progress.StageRunError,
		Dur:   e.now().Sub(started),
		Note:  err.Error(),
	})
}

func (e *Engine) emit(evt progress.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}
