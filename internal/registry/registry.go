package registry

import (
	"sort"
	"sync"

	"github.com/angeloszaimis/alb/internal/application"
)

type Registry struct {
	mutex        sync.RWMutex
	applications map[application.Endpoint]*application.Application
}

func New() *Registry {
	return &Registry{
		applications: make(map[application.Endpoint]*application.Application),
	}
}

// Register adds app with an unknown health flag.
// It returns false if an application with the same endpoint already exists.
func (r *Registry) Register(app *application.Application) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.applications[app.Endpoint()]; exists {
		return false
	}

	app.SetHealth(application.HealthUnknown)
	r.applications[app.Endpoint()] = app
	return true
}

// Deregister removes the application at endpoint. It returns false if absent.
func (r *Registry) Deregister(endpoint application.Endpoint) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.applications[endpoint]; !exists {
		return false
	}

	delete(r.applications, endpoint)
	return true
}

// Lookup finds an application by id.
func (r *Registry) Lookup(id string) (*application.Application, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, app := range r.applications {
		if app.ID() == id {
			return app, true
		}
	}

	return nil, false
}

// LookupEndpoint finds an application by endpoint.
func (r *Registry) LookupEndpoint(endpoint application.Endpoint) (*application.Application, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	app, exists := r.applications[endpoint]
	return app, exists
}

// SetHealthy marks the application at endpoint healthy. It reports the
// previous flag and whether the endpoint is registered; unknown endpoints
// are left alone.
func (r *Registry) SetHealthy(endpoint application.Endpoint) (application.HealthState, bool) {
	return r.setHealth(endpoint, application.HealthHealthy)
}

// SetUnhealthy marks the application at endpoint unhealthy. See SetHealthy.
func (r *Registry) SetUnhealthy(endpoint application.Endpoint) (application.HealthState, bool) {
	return r.setHealth(endpoint, application.HealthUnhealthy)
}

func (r *Registry) setHealth(endpoint application.Endpoint, state application.HealthState) (application.HealthState, bool) {
	// Write lock so a flip never interleaves with Deregister of the same entry.
	r.mutex.Lock()
	defer r.mutex.Unlock()

	app, exists := r.applications[endpoint]
	if !exists {
		return application.HealthUnknown, false
	}

	return app.SetHealth(state), true
}

// All returns a point-in-time copy of the registered applications ordered
// by id, which is registration order.
func (r *Registry) All() []*application.Application {
	r.mutex.RLock()
	apps := make([]*application.Application, 0, len(r.applications))
	for _, app := range r.applications {
		apps = append(apps, app)
	}
	r.mutex.RUnlock()

	sort.Slice(apps, func(i, j int) bool {
		return apps[i].ID() < apps[j].ID()
	})

	return apps
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.applications)
}
