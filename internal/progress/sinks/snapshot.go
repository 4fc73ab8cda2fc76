package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/hkpdata/listings-crawler/internal/progress"
)

// RunState labels the lifecycle of a tracked run.
type RunState string

const (
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunError   RunState = "error"
)

// SiteSnapshot is the per-site view of a run.
type SiteSnapshot struct {
	Site       string    `json:"site"`
	Pages      int       `json:"pages"`
	Found      int       `json:"found"`
	Done       int       `json:"done"`
	Failed     int       `json:"failed"`
	LastURL    string    `json:"last_url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// RunSnapshot is a point-in-time copy of one run's progress.
type RunSnapshot struct {
	RunID      string                   `json:"run_id"`
	State      RunState                 `json:"state"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at,omitzero"`
	Duration   time.Duration            `json:"duration_ns,omitempty"`
	Done       int                      `json:"done"`
	Failed     int                      `json:"failed"`
	Note       string                   `json:"note,omitempty"`
	Sites      map[string]*SiteSnapshot `json:"sites"`
}

func (r *RunSnapshot) clone() *RunSnapshot {
	out := *r
	out.Sites = make(map[string]*SiteSnapshot, len(r.Sites))
	for id, site := range r.Sites {
		copied := *site
		out.Sites[id] = &copied
	}
	return &out
}

// SnapshotSink folds the event stream into an in-memory view of recent runs.
// The status API reads from it; nothing is persisted.
type SnapshotSink struct {
	mu      sync.RWMutex
	runs    map[string]*RunSnapshot
	order   []string
	current string
	keep    int
}

// NewSnapshotSink tracks up to keep finished runs (plus the running one).
func NewSnapshotSink(keep int) *SnapshotSink {
	if keep <= 0 {
		keep = 16
	}
	return &SnapshotSink{runs: make(map[string]*RunSnapshot), keep: keep}
}

// Consume folds a batch into the run views.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *SnapshotSink) apply(evt progress.Event) {
	id := evt.RunUUID().String()
	run, ok := s.runs[id]
	if !ok {
		run = &RunSnapshot{
			RunID:     id,
			State:     RunRunning,
			StartedAt: evt.TS,
			Sites:     make(map[string]*SiteSnapshot),
		}
		s.runs[id] = run
		s.order = append(s.order, id)
		s.current = id
		s.evict()
	}

	switch evt.Stage {
	case progress.StageRunStart:
		run.StartedAt = evt.TS
	case progress.StageSiteStart:
		run.Sites[evt.Site] = &SiteSnapshot{
			Site:      evt.Site,
			Found:     evt.Found,
			StartedAt: evt.TS,
		}
	case progress.StageListPageDone:
		site := s.site(run, evt)
		site.Pages++
		site.Found += evt.Found
		site.LastURL = evt.URL
	case progress.StageDetailDone:
		site := s.site(run, evt)
		site.Done += evt.Done
		site.Failed += evt.Failed
		site.LastURL = evt.URL
	case progress.StageSiteDone:
		site := s.site(run, evt)
		site.Done = evt.Done
		site.Failed = evt.Failed
		site.FinishedAt = evt.TS
		run.Done += evt.Done
		run.Failed += evt.Failed
	case progress.StageRunDone:
		run.State = RunDone
		run.FinishedAt = evt.TS
		run.Duration = evt.Dur
		if evt.Done > 0 {
			run.Done = evt.Done
		}
		if evt.Failed > 0 {
			run.Failed = evt.Failed
		}
	case progress.StageRunError:
		run.State = RunError
		run.FinishedAt = evt.TS
		run.Duration = evt.Dur
		run.Note = evt.Note
	}
}

func (s *SnapshotSink) site(run *RunSnapshot, evt progress.Event) *SiteSnapshot {
	site, ok := run.Sites[evt.Site]
	if !ok {
		site = &SiteSnapshot{Site: evt.Site, StartedAt: evt.TS}
		run.Sites[evt.Site] = site
	}
	return site
}

func (s *SnapshotSink) evict() {
	for len(s.order) > s.keep {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
	}
}

// Current returns a copy of the most recently started run.
func (s *SnapshotSink) Current() (*RunSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[s.current]
	if !ok {
		return nil, false
	}
	return run.clone(), true
}

// Runs returns copies of every tracked run, oldest first.
func (s *SnapshotSink) Runs() []*RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RunSnapshot, 0, len(s.order))
	for _, id := range s.order {
		if run, ok := s.runs[id]; ok {
			out = append(out, run.clone())
		}
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
