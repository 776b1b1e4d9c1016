package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventApplicationRegistered   EventType = "application_registered"
	EventApplicationDeregistered EventType = "application_deregistered"
	EventHealthChecked           EventType = "health_checked"
	EventRequestForwarded        EventType = "request_forwarded"
	EventNoApplication           EventType = "no_application_available"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Endpoint  string

	// Health and Changed are set for EventHealthChecked and
	// EventApplicationRegistered.
	Health  string
	Changed bool

	// Duration, StatusCode and Failure are set for EventRequestForwarded.
	// Failure is the error code of a failed forward.
	Duration   time.Duration
	StatusCode int
	Failure    string
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Publish queues event without blocking. It returns false when the buffer
// is full and the event was dropped. A nil collector drops everything.
func (c *Collector) Publish(event Event) bool {
	if c == nil {
		return false
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
		return true
	default:
		return false
	}
}

// Start consumes events in a new goroutine until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go c.Run(ctx)
}

// Run consumes events until ctx is cancelled, then drains the buffer.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventApplicationRegistered:
		c.metrics.TrackApplication(event.Endpoint, event.Health)

	case EventApplicationDeregistered:
		c.metrics.ForgetApplication(event.Endpoint)

	case EventHealthChecked:
		c.metrics.UpdateHealth(event.Endpoint, event.Health, event.Changed)
		c.logger.Debug("Application health check status",
			slog.String("endpoint", event.Endpoint),
			slog.String("state", event.Health),
			slog.Bool("changed", event.Changed),
			slog.Time("timestamp", event.Timestamp))

	case EventRequestForwarded:
		c.metrics.RecordForward(event.Endpoint, event.Duration, event.StatusCode, event.Failure)

	case EventNoApplication:
		c.metrics.RecordNoApplication()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(algorithm string) Snapshot {
	return c.metrics.Snapshot(algorithm)
}
