package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsPolicy answers whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// NewRobotsPolicy returns an enforcing policy, or an allow-all policy when
// robots compliance is disabled.
func NewRobotsPolicy(respect bool, userAgent string, logger *zap.Logger) RobotsPolicy {
	if !respect {
		return allowAllPolicy{}
	}
	return &robotsGate{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }

// robotsGate caches the parsed robots.txt per host for the run. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything.
type robotsGate struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

func (g *robotsGate) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Host)

	data := g.lookup(ctx, parsed.Scheme, host)
	if data == nil {
		return true
	}
	group := data.FindGroup(g.userAgent)
	if group == nil {
		return true
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (g *robotsGate) lookup(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	if cached, ok := g.cache.Load(host); ok {
		data, _ := cached.(*robotstxt.RobotsData)
		return data
	}
	data := g.fetchRobots(ctx, scheme, host)
	g.cache.Store(host, data)
	return data
}

func (g *robotsGate) fetchRobots(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt fetch failed; allowing host", zap.String("host", host), zap.Error(err))
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		g.logger.Debug("robots.txt parse failed; allowing host", zap.String("host", host), zap.Error(err))
		return nil
	}
	return data
}
