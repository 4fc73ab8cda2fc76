package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrScriptNoEffect indicates a pagination script ran but reported that it
// could not find or activate its target element.
var ErrScriptNoEffect = errors.New("page script reported no effect")

// RenderConfig configures the headless-Chrome fetcher.
type RenderConfig struct {
	UserAgent  string
	MaxTabs    int
	NavTimeout time.Duration
}

// RenderingFetcher implements Fetcher with headless Chrome via chromedp.
// Fetches with a SessionID share a browser tab across calls so script-driven
// pagination can mutate one live page; everything else runs in a throwaway
// tab.
type RenderingFetcher struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	timeout         time.Duration
	userAgent       string

	mu       sync.Mutex
	sessions map[string]*renderSession
	closed   bool
}

type renderSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	meta   *documentMeta
}

// NewRenderingFetcher launches a shared headless browser. Callers must Close
// it to reap the Chrome process.
func NewRenderingFetcher(cfg RenderConfig, logger *zap.Logger) (*RenderingFetcher, error) {
	if cfg.MaxTabs <= 0 {
		return nil, ErrRenderingDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &RenderingFetcher{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxTabs),
		timeout:         cfg.NavTimeout,
		userAgent:       cfg.UserAgent,
		sessions:        make(map[string]*renderSession),
	}, nil
}

// Fetch renders a page. With Options.Script set the call does not navigate;
// it evaluates the script inside an existing session and snapshots the DOM
// after the settle delay.
func (f *RenderingFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (Result, error) {
	if f == nil {
		return Result{}, ErrRenderingDisabled
	}

	release, err := f.acquireTab(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	timeout := f.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	start := time.Now()

	if opts.Script != "" {
		return f.runScript(ctx, rawURL, opts, timeout, start)
	}
	return f.navigate(ctx, rawURL, opts, timeout, start)
}

func (f *RenderingFetcher) navigate(ctx context.Context, rawURL string, opts Options, timeout time.Duration, start time.Time) (Result, error) {
	var (
		tabCtx context.Context
		meta   *documentMeta
	)
	if opts.SessionID != "" {
		sess, err := f.obtainSession(opts.SessionID)
		if err != nil {
			return Result{}, err
		}
		tabCtx = sess.ctx
		meta = sess.meta
		meta.reset()
	} else {
		var cancelTab context.CancelFunc
		tabCtx, cancelTab = chromedp.NewContext(f.browserCtx)
		defer cancelTab()
		meta = newDocumentMeta()
		recordDocumentResponses(tabCtx, meta)
	}

	taskCtx, cancelTask := context.WithTimeout(tabCtx, timeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(f.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if opts.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitReady(opts.WaitSelector, chromedp.ByQuery))
	}
	if opts.SettleDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(opts.SettleDelay))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Result{}, fmt.Errorf("chromedp run: %w", err)
	}

	status, finalURL := meta.snapshot()
	if finalURL == "" {
		finalURL = rawURL
	}
	return Result{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       html,
		Rendered:   true,
		Duration:   time.Since(start),
	}, nil
}

func (f *RenderingFetcher) runScript(ctx context.Context, rawURL string, opts Options, timeout time.Duration, start time.Time) (Result, error) {
	if opts.SessionID == "" {
		return Result{}, ErrSessionNotFound
	}
	f.mu.Lock()
	sess, ok := f.sessions[opts.SessionID]
	f.mu.Unlock()
	if !ok {
		return Result{}, ErrSessionNotFound
	}

	taskCtx, cancelTask := context.WithTimeout(sess.ctx, timeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var (
		clicked  bool
		location string
		html     string
	)
	tasks := chromedp.Tasks{
		chromedp.Evaluate(opts.Script, &clicked),
	}
	if opts.SettleDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(opts.SettleDelay))
	}
	tasks = append(tasks,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Result{}, fmt.Errorf("chromedp script: %w", err)
	}
	if !clicked {
		return Result{}, ErrScriptNoEffect
	}

	status, _ := sess.meta.snapshot()
	if location == "" {
		location = rawURL
	}
	return Result{
		URL:        rawURL,
		FinalURL:   location,
		StatusCode: status,
		HTML:       html,
		Rendered:   true,
		Duration:   time.Since(start),
	}, nil
}

// obtainSession returns the named session, creating its tab on first use.
func (f *RenderingFetcher) obtainSession(id string) (*renderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("rendering fetcher closed")
	}
	if sess, ok := f.sessions[id]; ok {
		return sess, nil
	}
	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	sess := &renderSession{ctx: tabCtx, cancel: cancel, meta: newDocumentMeta()}
	recordDocumentResponses(tabCtx, sess.meta)
	f.sessions[id] = sess
	return sess, nil
}

// ReleaseSession closes the tab behind a named session. Releasing an unknown
// session is a no-op.
func (f *RenderingFetcher) ReleaseSession(id string) {
	f.mu.Lock()
	sess, ok := f.sessions[id]
	if ok {
		delete(f.sessions, id)
	}
	f.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

// Close releases every session tab and tears down the browser.
func (f *RenderingFetcher) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	f.closed = true
	sessions := f.sessions
	f.sessions = make(map[string]*renderSession)
	f.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
	}
	f.browserCancel()
	f.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

func (f *RenderingFetcher) acquireTab(ctx context.Context) (func(), error) {
	if f.sem == nil {
		return func() {}, nil
	}
	select {
	case f.sem <- struct{}{}:
		return func() { <-f.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render tab: %w", ctx.Err())
	}
}

// documentMeta tracks the most recent top-level document response on a tab.
type documentMeta struct {
	mu         sync.Mutex
	statusCode int
	url        string
}

func newDocumentMeta() *documentMeta { return &documentMeta{} }

func (m *documentMeta) reset() {
	m.mu.Lock()
	m.statusCode = 0
	m.url = ""
	m.mu.Unlock()
}

func (m *documentMeta) snapshot() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCode, m.url
}

func recordDocumentResponses(tabCtx context.Context, meta *documentMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.mu.Lock()
		meta.statusCode = int(resp.Response.Status)
		meta.url = resp.Response.URL
		meta.mu.Unlock()
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
