package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestStaticFetcher(t *testing.T) *StaticFetcher {
	t.Helper()
	f, err := NewStaticFetcher(StaticConfig{
		UserAgent:   "listings-test",
		Timeout:     5 * time.Second,
		Parallelism: 2,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new static fetcher: %v", err)
	}
	return f
}

func TestStaticFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>逸瓏灣 2座</h1></body></html>`))
	}))
	defer srv.Close()

	f := newTestStaticFetcher(t)
	res, err := f.Fetch(context.Background(), srv.URL+"/detail/1", Options{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(res.HTML, "逸瓏灣") {
		t.Fatalf("body missing content: %q", res.HTML)
	}
	if res.Rendered {
		t.Fatal("static fetch must not report rendering")
	}
	if res.Duration <= 0 {
		t.Fatal("duration not recorded")
	}
}

func TestStaticFetcherFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>landed</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestStaticFetcher(t)
	res, err := f.Fetch(context.Background(), srv.URL+"/start", Options{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.HasSuffix(res.FinalURL, "/landing") {
		t.Fatalf("final URL = %q", res.FinalURL)
	}
	if res.URL != srv.URL+"/start" {
		t.Fatalf("original URL not preserved: %q", res.URL)
	}
}

func TestStaticFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestStaticFetcher(t)
	if _, err := f.Fetch(context.Background(), srv.URL, Options{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestStaticFetcherRepeatVisits(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestStaticFetcher(t)
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL, Options{}); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if hits != 2 {
		t.Fatalf("expected retried URL to be fetched twice, got %d hits", hits)
	}
}
