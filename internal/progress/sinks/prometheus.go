package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hkpdata/listings-crawler/internal/progress"
)

// PrometheusSink exports crawl progress via Prometheus. It owns the collectors
// for run lifecycle, per-site list-page walking, and detail fetch outcomes.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	listPages     *prometheus.CounterVec
	detailsFound  *prometheus.CounterVec
	detailFetches *prometheus.CounterVec
	detailLatency *prometheus.HistogramVec
	recordsDone   *prometheus.CounterVec
	urlsFailed    *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_runs_started_total",
			Help: "Total crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_runs_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_runs_running",
			Help: "Current number of running crawl runs.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"result"}),
		listPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_list_pages_total",
			Help: "List pages walked per site.",
		}, []string{"site"}),
		detailsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_detail_urls_found_total",
			Help: "New detail URLs discovered per site.",
		}, []string{"site"}),
		detailFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_detail_fetches_total",
			Help: "Detail fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		detailLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_detail_fetch_duration_seconds",
			Help:    "Detail fetch duration partitioned by site and status class.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"site", "status_class"}),
		recordsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_records_total",
			Help: "Accepted listing records per site.",
		}, []string{"site"}),
		urlsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_failed_urls_total",
			Help: "Irrecoverable detail URL failures per site.",
		}, []string{"site"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.listPages,
		s.detailsFound,
		s.detailFetches,
		s.detailLatency,
		s.recordsDone,
		s.urlsFailed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StageListPageDone:
		s.listPages.WithLabelValues(evt.Site).Inc()
		if evt.Found > 0 {
			s.detailsFound.WithLabelValues(evt.Site).Add(float64(evt.Found))
		}
	case progress.StageDetailDone:
		s.handleDetailEvent(evt)
	case progress.StageSiteDone:
		if evt.Done > 0 {
			s.recordsDone.WithLabelValues(evt.Site).Add(float64(evt.Done))
		}
		if evt.Failed > 0 {
			s.urlsFailed.WithLabelValues(evt.Site).Add(float64(evt.Failed))
		}
	}
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeDuration(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeDuration(evt, "error")
	}
	if evt.Stage != progress.StageRunStart && s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeDuration(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleDetailEvent(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.detailFetches.WithLabelValues(site, statusClass).Inc()
	if evt.Dur > 0 {
		s.detailLatency.WithLabelValues(site, statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
