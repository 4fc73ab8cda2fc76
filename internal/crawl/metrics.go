package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// detailRetries tracks detail fetches that needed at least one retry.
	detailRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_detail_retries_total",
		Help: "The total number of detail fetch retries, per site.",
	}, []string{"site"})
	// robotsBlocked tracks URLs refused by the robots policy.
	robotsBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_robots_blocked_total",
		Help: "The total number of URLs skipped because robots.txt disallowed them.",
	}, []string{"site"})
	// taskPanics tracks detail tasks recovered from a panic.
	taskPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_task_panics_total",
		Help: "The total number of recovered panics in detail tasks.",
	}, []string{"site"})
)
