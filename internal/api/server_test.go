package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hkpdata/listings-crawler/internal/progress"
	"github.com/hkpdata/listings-crawler/internal/progress/sinks"
)

func newTestServer(t *testing.T, snapshots *sinks.SnapshotSink) *httptest.Server {
	t.Helper()
	srv := NewServer(snapshots, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func feedRun(t *testing.T, snapshots *sinks.SnapshotSink, runID uuid.UUID, done, failed int) {
	t.Helper()
	id := progress.UUIDToBytes(runID)
	ts := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	events := []progress.Event{
		{RunID: id, TS: ts, Stage: progress.StageRunStart},
		{RunID: id, TS: ts, Stage: progress.StageSiteStart, Site: "hse28"},
		{RunID: id, TS: ts, Stage: progress.StageListPageDone, Site: "hse28", Page: 1, Found: done + failed},
		{RunID: id, TS: ts, Stage: progress.StageSiteDone, Site: "hse28", Done: done, Failed: failed},
		{RunID: id, TS: ts.Add(time.Minute), Stage: progress.StageRunDone, Done: done, Failed: failed, Dur: time.Minute},
	}
	require.NoError(t, snapshots.Consume(context.Background(), events))
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sinks.NewSnapshotSink(0))

	var body map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = getJSON(t, ts.URL+"/readyz", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ready", body["status"])
}

func TestCurrentRunBeforeAnyRun(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sinks.NewSnapshotSink(0))

	var body map[string]string
	resp := getJSON(t, ts.URL+"/v1/runs/current", &body)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotEmpty(t, body["error"])
}

func TestCurrentRunReflectsProgress(t *testing.T) {
	t.Parallel()

	snapshots := sinks.NewSnapshotSink(0)
	runID := uuid.New()
	feedRun(t, snapshots, runID, 12, 3)
	ts := newTestServer(t, snapshots)

	var run sinks.RunSnapshot
	resp := getJSON(t, ts.URL+"/v1/runs/current", &run)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, runID.String(), run.RunID)
	require.Equal(t, sinks.RunDone, run.State)
	require.Equal(t, 12, run.Done)
	require.Equal(t, 3, run.Failed)
	require.Contains(t, run.Sites, "hse28")
	require.Equal(t, 1, run.Sites["hse28"].Pages)
}

func TestProgressReportsPerSiteState(t *testing.T) {
	t.Parallel()

	snapshots := sinks.NewSnapshotSink(0)
	runID := uuid.New()
	feedRun(t, snapshots, runID, 7, 2)
	ts := newTestServer(t, snapshots)

	var body struct {
		RunID string                        `json:"run_id"`
		State sinks.RunState                `json:"state"`
		Sites map[string]sinks.SiteSnapshot `json:"sites"`
	}
	resp := getJSON(t, ts.URL+"/v1/progress", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, runID.String(), body.RunID)
	require.Equal(t, sinks.RunDone, body.State)
	require.Equal(t, 7, body.Sites["hse28"].Done)
	require.Equal(t, 2, body.Sites["hse28"].Failed)
}

func TestListRunsReturnsHistoryOldestFirst(t *testing.T) {
	t.Parallel()

	snapshots := sinks.NewSnapshotSink(0)
	first, second := uuid.New(), uuid.New()
	feedRun(t, snapshots, first, 5, 0)
	feedRun(t, snapshots, second, 8, 1)
	ts := newTestServer(t, snapshots)

	var body struct {
		Runs []sinks.RunSnapshot `json:"runs"`
	}
	resp := getJSON(t, ts.URL+"/v1/runs", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Runs, 2)
	require.Equal(t, first.String(), body.Runs[0].RunID)
	require.Equal(t, second.String(), body.Runs[1].RunID)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sinks.NewSnapshotSink(0))
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
