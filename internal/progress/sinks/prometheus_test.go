package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hkpdata/listings-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart},
		{
			RunID: runID,
			TS:    time.Now().Add(time.Second),
			Stage: progress.StageListPageDone,
			Site:  "centanet",
			Page:  1,
			Found: 18,
		},
		{
			RunID:       runID,
			TS:          time.Now().Add(10 * time.Second),
			Stage:       progress.StageDetailDone,
			Site:        "centanet",
			Done:        1,
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
		},
		{
			RunID:  runID,
			TS:     time.Now().Add(12 * time.Second),
			Stage:  progress.StageSiteDone,
			Site:   "centanet",
			Done:   17,
			Failed: 1,
		},
		{RunID: runID, TS: time.Now().Add(15 * time.Second), Stage: progress.StageRunDone, Dur: 15 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.listPages.WithLabelValues("centanet")), 1e-9)
	require.InDelta(t, 18.0, testutil.ToFloat64(sink.detailsFound.WithLabelValues("centanet")), 1e-9)
	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.detailFetches.WithLabelValues("centanet", string(progress.Status2xx))),
		1e-9,
	)
	require.InDelta(t, 17.0, testutil.ToFloat64(sink.recordsDone.WithLabelValues("centanet")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.urlsFailed.WithLabelValues("centanet")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.detailLatency, "crawler_detail_fetch_duration_seconds"))
}

func TestSnapshotSinkTracksRun(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(4)
	runID := progress.UUIDToBytes(uuid.New())
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	batch := []progress.Event{
		{RunID: runID, TS: start, Stage: progress.StageRunStart},
		{RunID: runID, TS: start.Add(time.Second), Stage: progress.StageSiteStart, Site: "hse28"},
		{RunID: runID, TS: start.Add(2 * time.Second), Stage: progress.StageListPageDone, Site: "hse28", Page: 1, Found: 20},
		{RunID: runID, TS: start.Add(3 * time.Second), Stage: progress.StageDetailDone, Site: "hse28", Done: 1, StatusClass: progress.Status2xx, URL: "https://www.28hse.com/buy/apartment/property-1"},
		{RunID: runID, TS: start.Add(4 * time.Second), Stage: progress.StageSiteDone, Site: "hse28", Done: 19, Failed: 1},
		{RunID: runID, TS: start.Add(5 * time.Second), Stage: progress.StageRunDone, Dur: 5 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, ok := sink.Current()
	require.True(t, ok)
	require.Equal(t, RunDone, run.State)
	require.Equal(t, 19, run.Done)
	require.Equal(t, 1, run.Failed)
	require.Equal(t, start, run.StartedAt)

	site := run.Sites["hse28"]
	require.NotNil(t, site)
	require.Equal(t, 1, site.Pages)
	require.Equal(t, 20, site.Found)
	require.Equal(t, 19, site.Done)
	require.Equal(t, "https://www.28hse.com/buy/apartment/property-1", site.LastURL)
}

func TestSnapshotSinkEvictsOldRuns(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(2)
	for i := 0; i < 5; i++ {
		evt := progress.Event{
			RunID: progress.UUIDToBytes(uuid.New()),
			TS:    time.Now(),
			Stage: progress.StageRunStart,
		}
		require.NoError(t, sink.Consume(context.Background(), []progress.Event{evt}))
	}
	require.Len(t, sink.Runs(), 2)
}

func TestSnapshotSinkCurrentIsACopy(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(4)
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart},
		{RunID: runID, TS: time.Now(), Stage: progress.StageSiteStart, Site: "centanet"},
	}))

	run, ok := sink.Current()
	require.True(t, ok)
	run.Done = 99
	run.Sites["centanet"].Done = 99

	again, ok := sink.Current()
	require.True(t, ok)
	require.Equal(t, 0, again.Done)
	require.Equal(t, 0, again.Sites["centanet"].Done)
}
