package application

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HealthState is the health flag of a registered application.
type HealthState int

const (
	HealthUnknown HealthState = iota // Registered, never probed
	HealthHealthy
	HealthUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case HealthUnknown:
		return "unknown"
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "invalid"
	}
}

// Application represents a registered downstream instance.
// Everything except the health flag is immutable after New.
type Application struct {
	id              string
	endpoint        Endpoint
	path            string
	healthCheckPath string
	timeout         time.Duration
	createdAt       time.Time

	mutex  sync.Mutex
	health HealthState
}

// New creates an Application from a validated registration.
// It assigns a time-ordered UUIDv7 identifier and starts in HealthUnknown.
func New(reg Registration) (*Application, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate application id: %w", err)
	}

	return &Application{
		id:              id.String(),
		endpoint:        NewEndpoint(reg.Scheme, reg.Host, reg.Port),
		path:            normalizePath(reg.Path),
		healthCheckPath: ensureLeadingSlash(strings.TrimSpace(reg.HealthCheckPath)),
		timeout:         time.Duration(reg.Timeout) * time.Second,
		createdAt:       time.Now().UTC(),
		health:          HealthUnknown,
	}, nil
}

// ID returns the opaque application identifier.
func (a *Application) ID() string {
	return a.id
}

// Endpoint returns the application's scheme, host and port.
func (a *Application) Endpoint() Endpoint {
	return a.endpoint
}

// Path returns the base path prefix used when forwarding requests.
func (a *Application) Path() string {
	return a.path
}

// HealthCheckPath returns the path probed by the health checker.
func (a *Application) HealthCheckPath() string {
	return a.healthCheckPath
}

// HealthCheckURL returns the absolute URL probed by the health checker.
func (a *Application) HealthCheckURL() string {
	return a.endpoint.String() + a.healthCheckPath
}

// Timeout returns the per-request timeout the application registered with.
func (a *Application) Timeout() time.Duration {
	return a.timeout
}

// Deadline returns the timeout to apply to outbound calls. A zero timeout
// falls back to the given default.
func (a *Application) Deadline(fallback time.Duration) time.Duration {
	if a.timeout <= 0 {
		return fallback
	}
	return a.timeout
}

// CreatedAt returns the registration time in UTC.
func (a *Application) CreatedAt() time.Time {
	return a.createdAt
}

// Health returns the current health flag.
func (a *Application) Health() HealthState {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.health
}

// IsHealthy returns true if the application is currently healthy.
func (a *Application) IsHealthy() bool {
	return a.Health() == HealthHealthy
}

// SetHealth updates the health flag and returns the previous one.
func (a *Application) SetHealth(state HealthState) (previous HealthState) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	previous = a.health
	a.health = state
	return previous
}

func normalizePath(path string) string {
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}
	return ensureLeadingSlash(path)
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
