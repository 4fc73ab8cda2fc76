// Package api hosts the status HTTP server. Notable routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for per-site progress of the latest run.
//   - GET /v1/runs/current for the run in progress.
//   - GET /v1/runs for recent run history.
package api
