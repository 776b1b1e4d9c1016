package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/alb/internal/application"
	"github.com/angeloszaimis/alb/internal/loadbalancer"
	"github.com/angeloszaimis/alb/internal/metrics"
	"github.com/angeloszaimis/alb/internal/registry"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 5 * time.Second

	// drainLimit bounds how much of a health response body is read so the
	// connection can be reused.
	drainLimit = 4 << 10
)

// Outcome classifies one probe.
type Outcome string

const (
	OutcomeHealthy         Outcome = "healthy"
	OutcomeUnhealthyStatus Outcome = "unhealthy_status"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeError           Outcome = "error"
)

// Result is the outcome of probing one application.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Duration   time.Duration
	Err        error
}

func (r Result) Healthy() bool {
	return r.Outcome == OutcomeHealthy
}

// Prober periodically probes every registered application and promotes or
// demotes it in the load balancer.
type Prober struct {
	registry        *registry.Registry
	balancer        *loadbalancer.LoadBalancer
	collector       *metrics.Collector
	client          *http.Client
	clock           clockwork.Clock
	interval        time.Duration
	fallbackTimeout time.Duration
	logger          *slog.Logger

	running  atomic.Bool
	inflight sync.WaitGroup
}

type Option func(*Prober)

// WithClock replaces the real clock driving the ticker.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Prober) {
		p.clock = clock
	}
}

// WithHTTPClient replaces the client used for health requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// WithCollector publishes a health event for every probe.
func WithCollector(collector *metrics.Collector) Option {
	return func(p *Prober) {
		p.collector = collector
	}
}

// WithFallbackTimeout sets the deadline used for applications registered
// with a zero timeout.
func WithFallbackTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		p.fallbackTimeout = timeout
	}
}

func NewProber(
	reg *registry.Registry,
	balancer *loadbalancer.LoadBalancer,
	interval time.Duration,
	logger *slog.Logger,
	opts ...Option,
) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p := &Prober{
		registry:        reg,
		balancer:        balancer,
		client:          &http.Client{},
		clock:           clockwork.NewRealClock(),
		interval:        interval,
		fallbackTimeout: DefaultTimeout,
		logger:          logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run ticks every interval until ctx is cancelled. A tick that fires while
// the previous one is still running is skipped. Run waits for the running
// tick before returning.
func (p *Prober) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Health prober started", slog.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			p.logger.Info("Health prober stopped")
			return

		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Prober) tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("Previous health check still running, skipping tick")
		return
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.running.Store(false)
		p.RunOnce(ctx)
	}()
}

// RunOnce probes all registered applications in parallel and returns once
// every probe has finished. Probe failures never escape.
func (p *Prober) RunOnce(ctx context.Context) {
	apps := p.registry.All()
	if len(apps) == 0 {
		return
	}

	p.logger.Debug("Running health checks", slog.Int("applications", len(apps)))

	g, gCtx := errgroup.WithContext(ctx)
	for _, app := range apps {
		g.Go(func() error {
			p.probe(gCtx, app)
			return nil
		})
	}

	_ = g.Wait()
}

func (p *Prober) probe(ctx context.Context, app *application.Application) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Health check panicked",
				slog.String("application", app.Endpoint().String()),
				slog.Any("panic", r))
			p.apply(app, Result{Outcome: OutcomeError, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	result := p.Check(ctx, app)

	// Shutdown cancelled the probe; its failure says nothing about the application.
	if ctx.Err() != nil {
		return
	}

	p.apply(app, result)
}

// Check issues one health request to app, bounded by its deadline.
func (p *Prober) Check(ctx context.Context, app *application.Application) Result {
	ctx, cancel := context.WithTimeout(ctx, app.Deadline(p.fallbackTimeout))
	defer cancel()

	start := p.clock.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, app.HealthCheckURL(), nil)
	if err != nil {
		return Result{Outcome: OutcomeError, Err: err}
	}

	res, err := p.client.Do(req)
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		return Result{Outcome: outcome, Duration: p.clock.Since(start), Err: err}
	}
	defer res.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, drainLimit))

	result := Result{
		Outcome:    OutcomeUnhealthyStatus,
		StatusCode: res.StatusCode,
		Duration:   p.clock.Since(start),
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		result.Outcome = OutcomeHealthy
	}

	return result
}

func (p *Prober) apply(app *application.Application, result Result) {
	if current, ok := p.registry.LookupEndpoint(app.Endpoint()); !ok || current != app {
		p.logger.Debug("Application deregistered during health check",
			slog.String("application", app.Endpoint().String()))
		return
	}

	var (
		changed bool
		state   application.HealthState
	)

	if result.Healthy() {
		changed = p.balancer.Promote(app)
		state = application.HealthHealthy
	} else {
		changed = p.balancer.Demote(app)
		state = application.HealthUnhealthy
	}

	attrs := []any{
		slog.String("application", app.Endpoint().String()),
		slog.String("outcome", string(result.Outcome)),
		slog.Duration("duration", result.Duration),
	}
	if result.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", result.StatusCode))
	}
	if result.Err != nil {
		attrs = append(attrs, slog.String("error", result.Err.Error()))
	}

	switch {
	case changed && state == application.HealthHealthy:
		p.logger.Info("Application is up", attrs...)
	case changed:
		p.logger.Warn("Application is down", attrs...)
	default:
		p.logger.Debug("Application health unchanged", attrs...)
	}

	if p.collector != nil {
		published := p.collector.Publish(metrics.Event{
			Type:     metrics.EventHealthChecked,
			Endpoint: app.Endpoint().String(),
			Health:   state.String(),
			Changed:  changed,
		})
		if !published {
			p.logger.Debug("Dropped health event", slog.String("application", app.Endpoint().String()))
		}
	}
}
