package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// StaticConfig configures the Colly-backed fetcher.
type StaticConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Parallelism  int
}

// StaticFetcher implements Fetcher over plain HTTP using Colly. It never
// executes JavaScript; profiles that need rendered pages pair it with the
// rendering fetcher through EscalatingFetcher.
type StaticFetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
	timeout       time.Duration
}

// NewStaticFetcher constructs a configured Colly-based fetcher.
func NewStaticFetcher(cfg StaticConfig, logger *zap.Logger) (*StaticFetcher, error) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	// Robots compliance lives in RobotsPolicy so both fetchers share one
	// enforcement point.
	base.IgnoreRobotsTxt = true
	if cfg.MaxBodyBytes > 0 {
		base.MaxBodySize = int(cfg.MaxBodyBytes)
	}
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.Parallelism * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, err
	}

	return &StaticFetcher{
		baseCollector: base,
		logger:        logger,
		timeout:       cfg.Timeout,
	}, nil
}

type staticResult struct {
	res Result
	err error
}

// Fetch retrieves a page via a clone of the base collector.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (Result, error) {
	collector := f.baseCollector.Clone()
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}

	start := time.Now()
	resultCh := make(chan staticResult, 1)
	var once sync.Once
	send := func(r staticResult) {
		once.Do(func() { resultCh <- r })
	}

	collector.OnResponse(func(r *colly.Response) {
		send(staticResult{res: Result{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       string(r.Body),
			Duration:   time.Since(start),
		}})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(staticResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Result{}, err
	}
	collector.Wait()

	select {
	case r := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if r.err != nil {
			return Result{}, r.err
		}
		return r.res, nil
	default:
		return Result{}, errors.New("static fetch produced no result")
	}
}

// Close is a no-op; Colly holds no long-lived resources beyond the transport.
func (f *StaticFetcher) Close(context.Context) error { return nil }
