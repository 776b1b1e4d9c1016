package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/alb/internal/handler"
	"github.com/angeloszaimis/alb/internal/metrics"
)

// setupRouter routes the balancer's own endpoints. Everything else falls
// through to the forwarding handler, which rejects reserved paths and
// methods other than GET.
func setupRouter(
	log *slog.Logger,
	loadBalancerHandler *handler.LoadBalancerHandler,
	registrationHandler *handler.RegistrationHandler,
	metricsCollector *metrics.Collector,
	algorithm string,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+handler.HealthPath, handler.Health)
	mux.HandleFunc("POST /api/register-application", registrationHandler.Register)
	mux.HandleFunc("DELETE /api/deregister-application/{id}", registrationHandler.Deregister)
	mux.HandleFunc("GET /api/metrics", metricsCollector.Handler(algorithm))
	mux.Handle("/", loadBalancerHandler)

	return handler.Logging(log)(handler.RequestID(mux))
}
