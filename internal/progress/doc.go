// Package progress provides the event primitives and the non-blocking hub the
// crawl engine uses to report run milestones. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as structured
// logs or Prometheus collectors.
package progress
