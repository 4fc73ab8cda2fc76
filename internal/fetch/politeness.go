package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the per-site minimum interval between requests. Limiters
// are created lazily per site ID and live for the run.
type Pacer struct {
	limiters sync.Map
}

// NewPacer returns an empty pacer.
func NewPacer() *Pacer {
	return &Pacer{}
}

// Wait blocks until the site's next request slot, honoring ctx cancellation.
// An interval <= 0 means the site is unpaced.
func (p *Pacer) Wait(ctx context.Context, siteID string, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	val, _ := p.limiters.LoadOrStore(siteID, rate.NewLimiter(rate.Every(interval), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for %s slot: %w", siteID, err)
	}
	return nil
}
