package loadbalancer

import (
	"sync"

	"github.com/angeloszaimis/alb/internal/application"
	"github.com/angeloszaimis/alb/internal/registry"
	"github.com/angeloszaimis/alb/internal/strategy"
)

type LoadBalancer struct {
	registry *registry.Registry
	strategy strategy.Strategy

	// healthy is kept in promotion order; strategies rely on it being stable.
	mutex   sync.RWMutex
	healthy []*application.Application
}

func NewLoadBalancer(reg *registry.Registry, strategy strategy.Strategy) *LoadBalancer {
	return &LoadBalancer{
		registry: reg,
		strategy: strategy,
		healthy:  make([]*application.Application, 0),
	}
}

// SelectApplication picks the next healthy application. The boolean is false
// when no application is healthy.
func (lb *LoadBalancer) SelectApplication() (*application.Application, bool) {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	chosen := lb.strategy.SelectApplication(lb.healthy)
	if chosen == nil {
		return nil, false
	}

	return chosen, true
}

// Promote marks app healthy in the registry and adds it to the healthy set.
// It returns true if the health flag changed. Applications that are no
// longer registered are ignored.
func (lb *LoadBalancer) Promote(app *application.Application) (changed bool) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if !lb.isRegistered(app) {
		return false
	}

	previous, _ := lb.registry.SetHealthy(app.Endpoint())

	if lb.indexOf(app.Endpoint()) < 0 {
		lb.healthy = append(lb.healthy, app)
	}

	return previous != application.HealthHealthy
}

// Demote marks app unhealthy in the registry and removes it from the
// healthy set. It returns true if the health flag changed.
func (lb *LoadBalancer) Demote(app *application.Application) (changed bool) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if !lb.isRegistered(app) {
		return false
	}

	lb.remove(app.Endpoint())
	previous, _ := lb.registry.SetUnhealthy(app.Endpoint())

	return previous != application.HealthUnhealthy
}

// DeregisterApplication removes app from the registry and the healthy set.
// It returns false if app is no longer the registered instance for its
// endpoint, so a stale lookup never removes a newer registration.
func (lb *LoadBalancer) DeregisterApplication(app *application.Application) bool {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if !lb.isRegistered(app) {
		return false
	}

	lb.remove(app.Endpoint())
	return lb.registry.Deregister(app.Endpoint())
}

// Healthy returns a copy of the healthy set in selection order.
func (lb *LoadBalancer) Healthy() []*application.Application {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	healthy := make([]*application.Application, len(lb.healthy))
	copy(healthy, lb.healthy)
	return healthy
}

// isRegistered reports whether app itself, not just an application with the
// same endpoint, is still in the registry. A probe result for an instance
// that was deregistered and registered again must not leak into the new one.
func (lb *LoadBalancer) isRegistered(app *application.Application) bool {
	current, ok := lb.registry.LookupEndpoint(app.Endpoint())
	return ok && current == app
}

func (lb *LoadBalancer) indexOf(endpoint application.Endpoint) int {
	for i, app := range lb.healthy {
		if app.Endpoint() == endpoint {
			return i
		}
	}
	return -1
}

func (lb *LoadBalancer) remove(endpoint application.Endpoint) {
	i := lb.indexOf(endpoint)
	if i < 0 {
		return
	}

	lb.healthy = append(lb.healthy[:i], lb.healthy[i+1:]...)
}
