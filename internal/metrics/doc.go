// Package metrics is the notification channel of the load balancer.
//
// Health transitions from the prober and forwarding outcomes from the
// request handler are published as events on a bounded, ordered channel and
// consumed by a single goroutine that keeps per-endpoint counters:
//   - Forwarded requests, failures by error code and status codes
//   - Response times with percentile calculations (P50, P95, P99)
//   - Current health state and number of health transitions
//   - Registrations and requests that found no healthy application
//
// Publishing never blocks: when the buffer is full the event is dropped, so
// a slow consumer can never stall probing or request handling, and never
// affects registry or scheduler state.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Publish(metrics.Event{
//		Type:     metrics.EventHealthChecked,
//		Endpoint: "http://10.0.0.1:8080",
//		Health:   "healthy",
//		Changed:  true,
//	})
//
//	snapshot := collector.Snapshot("round-robin")
//
// The collector drains buffered events when its context is cancelled.
package metrics
