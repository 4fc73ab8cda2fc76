// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that crawl workers use to report run milestones. It batches events
// on a background goroutine and fans them out to pluggable sinks such as
// structured logs, Prometheus collectors, and the in-memory status snapshot.
package progress
