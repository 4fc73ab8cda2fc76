package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hkpdata/listings-crawler/internal/fetch"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

func profileByID(t *testing.T, id string) sites.Profile {
	t.Helper()
	for _, p := range sites.Builtin() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("no builtin profile %q", id)
	return sites.Profile{}
}

type fakeCall struct {
	URL  string
	Opts fetch.Options
}

// fakeFetcher scripts responses through fn and records every call.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []fakeCall
	fn    func(rawURL string, opts fetch.Options) (fetch.Result, error)

	released []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, opts fetch.Options) (fetch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{URL: rawURL, Opts: opts})
	f.mu.Unlock()
	return f.fn(rawURL, opts)
}

func (f *fakeFetcher) Close(context.Context) error { return nil }

func (f *fakeFetcher) ReleaseSession(id string) {
	f.mu.Lock()
	f.released = append(f.released, id)
	f.mu.Unlock()
}

func (f *fakeFetcher) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func listPage(hrefs ...string) string {
	page := "<html><body>"
	for _, href := range hrefs {
		page += fmt.Sprintf(`<a href=%q>盤</a>`, href)
	}
	return page + "</body></html>"
}

func TestWalkerStopsWhenPageAddsNothingNew(t *testing.T) {
	t.Parallel()

	profile := profileByID(t, "hse28")
	pages := map[string]string{
		"https://www.28hse.com/buy/apartment":        listPage("/buy/apartment/property-1", "/buy/apartment/property-2"),
		"https://www.28hse.com/buy/apartment?page=2": listPage("/buy/apartment/property-2", "/buy/apartment/property-3"),
		"https://www.28hse.com/buy/apartment?page=3": listPage("/buy/apartment/property-2", "/buy/apartment/property-3"),
		"https://www.28hse.com/buy/apartment?page=4": listPage("/buy/apartment/property-9"),
	}
	fetcher := &fakeFetcher{fn: func(rawURL string, _ fetch.Options) (fetch.Result, error) {
		html, ok := pages[rawURL]
		if !ok {
			return fetch.Result{}, fmt.Errorf("unexpected url %s", rawURL)
		}
		return fetch.Result{URL: rawURL, StatusCode: 200, HTML: html}, nil
	}}

	w := NewWalker(fetcher, nil, nil, nil, nil)
	frontier := NewFrontier()
	res, err := w.Walk(context.Background(), [16]byte{1}, profile, profile.ListURLFor(sites.CategoryBuy), 10, frontier)
	require.NoError(t, err)

	// Page 3 repeats pages 1 and 2, so page 4 is never fetched.
	require.Equal(t, 3, res.Pages)
	require.Equal(t, []string{
		"https://www.28hse.com/buy/apartment/property-1",
		"https://www.28hse.com/buy/apartment/property-2",
		"https://www.28hse.com/buy/apartment/property-3",
	}, res.URLs)
	require.Equal(t, 3, frontier.Len())
}

func TestWalkerPageOneFailureAbortsSite(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fn: func(string, fetch.Options) (fetch.Result, error) {
		return fetch.Result{}, errors.New("connection refused")
	}}
	w := NewWalker(fetcher, nil, nil, nil, nil)
	profile := profileByID(t, "hse28")

	_, err := w.Walk(context.Background(), [16]byte{1}, profile, profile.ListURLFor(sites.CategoryBuy), 5, NewFrontier())
	require.ErrorIs(t, err, ErrPageOneFailed)
}

func TestWalkerScriptAdvanceRetriesWithLongerSettle(t *testing.T) {
	t.Parallel()

	profile := profileByID(t, "centanet")
	listURL := profile.ListURLFor(sites.CategoryBuy)
	scriptCalls := 0
	fetcher := &fakeFetcher{}
	fetcher.fn = func(rawURL string, opts fetch.Options) (fetch.Result, error) {
		if opts.Script == "" {
			return fetch.Result{
				URL: rawURL, StatusCode: 200,
				HTML: listPage("/findproperty/detail/盤-1_A1"),
			}, nil
		}
		scriptCalls++
		if scriptCalls == 1 {
			return fetch.Result{}, fetch.ErrScriptNoEffect
		}
		return fetch.Result{
			URL: rawURL, StatusCode: 200,
			HTML: listPage("/findproperty/detail/盤-2_A2"),
		}, nil
	}

	w := NewWalker(fetcher, nil, nil, nil, nil)
	res, err := w.Walk(context.Background(), [16]byte{1}, profile, listURL, 2, NewFrontier())
	require.NoError(t, err)
	require.Equal(t, 2, res.Pages)
	require.Len(t, res.URLs, 2)

	calls := fetcher.Calls()
	require.Len(t, calls, 3)
	// All calls share the per-walk session; the retry doubles the settle.
	require.Equal(t, "list-centanet", calls[0].Opts.SessionID)
	require.Equal(t, profile.SettleDelay, calls[1].Opts.SettleDelay)
	require.Equal(t, 2*profile.SettleDelay, calls[2].Opts.SettleDelay)
	require.Equal(t, []string{"list-centanet"}, fetcher.released)
}

func TestWalkerScriptAdvanceDegradesAfterSecondFailure(t *testing.T) {
	t.Parallel()

	profile := profileByID(t, "centanet")
	listURL := profile.ListURLFor(sites.CategoryBuy)
	fetcher := &fakeFetcher{}
	fetcher.fn = func(rawURL string, opts fetch.Options) (fetch.Result, error) {
		if opts.Script != "" {
			return fetch.Result{}, fetch.ErrScriptNoEffect
		}
		return fetch.Result{
			URL: rawURL, StatusCode: 200,
			HTML: listPage("/findproperty/detail/盤-1_A1"),
		}, nil
	}

	w := NewWalker(fetcher, nil, nil, nil, nil)
	res, err := w.Walk(context.Background(), [16]byte{1}, profile, listURL, 5, NewFrontier())
	require.NoError(t, err)
	require.Equal(t, 1, res.Pages)
	require.Len(t, res.URLs, 1)

	// Navigate, two script attempts, then the page-1 reset navigation.
	calls := fetcher.Calls()
	require.Len(t, calls, 4)
	require.Empty(t, calls[3].Opts.Script)
}

type denyAllRobots struct{}

func (denyAllRobots) Allowed(context.Context, string) bool { return false }

func TestWalkerRobotsRefusalOnPageOne(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fn: func(string, fetch.Options) (fetch.Result, error) {
		t.Fatal("fetch should not be reached")
		return fetch.Result{}, nil
	}}
	w := NewWalker(fetcher, fetch.NewPacer(), denyAllRobots{}, nil, nil)
	profile := profileByID(t, "hse28")

	_, err := w.Walk(context.Background(), [16]byte{1}, profile, profile.ListURLFor(sites.CategoryBuy), 2, NewFrontier())
	require.ErrorIs(t, err, ErrPageOneFailed)
	require.Empty(t, fetcher.Calls())
}

func TestWalkerHonorsMaxPages(t *testing.T) {
	t.Parallel()

	profile := profileByID(t, "hse28")
	serial := 0
	fetcher := &fakeFetcher{fn: func(rawURL string, _ fetch.Options) (fetch.Result, error) {
		serial++
		return fetch.Result{
			URL: rawURL, StatusCode: 200,
			HTML: listPage(fmt.Sprintf("/buy/apartment/property-%d", serial)),
		}, nil
	}}

	w := NewWalker(fetcher, nil, nil, nil, nil)
	start := time.Now()
	res, err := w.Walk(context.Background(), [16]byte{1}, profile, profile.ListURLFor(sites.CategoryBuy), 3, NewFrontier())
	require.NoError(t, err)
	require.Equal(t, 3, res.Pages)
	require.Len(t, res.URLs, 3)
	require.Less(t, time.Since(start), 5*time.Second)
}
