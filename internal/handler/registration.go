package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/angeloszaimis/alb/internal/application"
	"github.com/angeloszaimis/alb/internal/apperr"
	"github.com/angeloszaimis/alb/internal/loadbalancer"
	"github.com/angeloszaimis/alb/internal/metrics"
	"github.com/angeloszaimis/alb/internal/registry"
)

const maxRegistrationBytes = 1 << 20

type RegisterResponse struct {
	ID string `json:"id"`
}

// RegistrationHandler serves the application registration API.
type RegistrationHandler struct {
	logger           *slog.Logger
	registry         *registry.Registry
	balancer         *loadbalancer.LoadBalancer
	metricsCollector *metrics.Collector
}

func NewRegistrationHandler(logger *slog.Logger, reg *registry.Registry, lb *loadbalancer.LoadBalancer, collector *metrics.Collector) *RegistrationHandler {
	return &RegistrationHandler{
		logger:           logger,
		registry:         reg,
		balancer:         lb,
		metricsCollector: collector,
	}
}

// Register handles POST /api/register-application.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload application.Registration

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBytes))
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, h.logger, apperr.NewValidationError("malformed registration payload", err.Error()))
		return
	}

	app, err := application.New(payload)
	if err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			writeError(w, h.logger, apperr.NewValidationError("invalid registration", fieldErrs))
			return
		}
		writeError(w, h.logger, apperr.NewInternalError("failed to create application", err))
		return
	}

	if !h.registry.Register(app) {
		h.logger.Warn("Rejected duplicate registration", slog.String("application", app.Endpoint().String()))
		writeError(w, h.logger, apperr.NewDuplicateEndpointError(app.Endpoint().String()))
		return
	}

	h.logger.Info("Application registered",
		slog.String("id", app.ID()),
		slog.String("application", app.Endpoint().String()),
		slog.String("health_check", app.HealthCheckURL()))

	h.metricsCollector.Publish(metrics.Event{
		Type:     metrics.EventApplicationRegistered,
		Endpoint: app.Endpoint().String(),
		Health:   app.Health().String(),
	})

	writeJSON(w, http.StatusOK, RegisterResponse{ID: app.ID()})
}

// Deregister handles DELETE /api/deregister-application/{id}.
func (h *RegistrationHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := validateID(id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	app, ok := h.registry.Lookup(id)
	if !ok {
		writeError(w, h.logger, apperr.NewNotFoundError("application "+id+" is not registered"))
		return
	}

	if !h.balancer.DeregisterApplication(app) {
		// Deregistered, or replaced by a new registration, since the lookup.
		writeError(w, h.logger, apperr.NewNotFoundError("application "+id+" is not registered"))
		return
	}

	h.logger.Info("Application deregistered",
		slog.String("id", id),
		slog.String("application", app.Endpoint().String()))

	h.metricsCollector.Publish(metrics.Event{
		Type:     metrics.EventApplicationDeregistered,
		Endpoint: app.Endpoint().String(),
	})

	w.WriteHeader(http.StatusNoContent)
}

func validateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return apperr.NewValidationError("malformed application id", map[string]string{"id": "must be a UUID"})
	}
	if parsed.Version() != 7 {
		return apperr.NewValidationError("malformed application id", map[string]string{"id": "must be a version 7 UUID"})
	}
	return nil
}
