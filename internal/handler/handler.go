package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/angeloszaimis/alb/internal/apperr"
	"github.com/angeloszaimis/alb/internal/forwarder"
	"github.com/angeloszaimis/alb/internal/loadbalancer"
	"github.com/angeloszaimis/alb/internal/metrics"
)

const (
	HealthPath    = "/alb-health"
	FaviconPath   = "/favicon.ico"
	APIPathPrefix = "/api"
)

// IsReservedPath reports whether path belongs to the balancer itself and is
// never forwarded.
func IsReservedPath(path string) bool {
	return path == HealthPath || path == FaviconPath || strings.HasPrefix(path, APIPathPrefix)
}

// LoadBalancerHandler forwards GET requests to the next healthy application.
type LoadBalancerHandler struct {
	logger           *slog.Logger
	balancer         *loadbalancer.LoadBalancer
	forwarder        *forwarder.Forwarder
	metricsCollector *metrics.Collector
}

func (lb *LoadBalancerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	lb.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	if IsReservedPath(r.URL.Path) {
		writeError(w, lb.logger, apperr.NewNotFoundError("no route for "+r.URL.Path))
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Not allowed.", http.StatusMethodNotAllowed)
		return
	}

	app, ok := lb.balancer.SelectApplication()
	if !ok {
		lb.logger.Warn("No healthy applications available", slog.String("client", clientIP))
		lb.metricsCollector.Publish(metrics.Event{Type: metrics.EventNoApplication})
		writeError(w, lb.logger, apperr.NewNoHealthyApplicationError())
		return
	}

	endpoint := app.Endpoint().String()

	lb.logger.Info("Forwarding to application",
		slog.String("client", clientIP),
		slog.String("application", endpoint))

	w.Header().Set("X-Backend-Server", endpoint)
	SetLogAttrs(r.Context(), slog.String("application", endpoint))

	res, err := lb.forwarder.Forward(r.Context(), app, forwarder.Request{
		RelativePath: r.URL.EscapedPath(),
		RawQuery:     r.URL.RawQuery,
		Header:       r.Header,
	})

	event := metrics.Event{Type: metrics.EventRequestForwarded, Endpoint: endpoint}
	if err != nil {
		event.Failure = apperr.Code(err)
		if e := apperr.ToError(err); e != nil {
			event.StatusCode = e.DownstreamStatus
		}
	} else {
		event.StatusCode = res.StatusCode
		event.Duration = res.Duration
	}
	lb.metricsCollector.Publish(event)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			lb.logger.Debug("Client went away", slog.String("application", endpoint))
			return
		}
		lb.logger.Warn("Forwarding failed",
			slog.String("application", endpoint),
			slog.String("error", err.Error()))
		writeError(w, lb.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode)
	_, _ = w.Write(res.Body)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func NewLoadBalancerHandler(logger *slog.Logger, lb *loadbalancer.LoadBalancer, fwd *forwarder.Forwarder, collector *metrics.Collector) *LoadBalancerHandler {
	return &LoadBalancerHandler{
		logger:           logger,
		balancer:         lb,
		forwarder:        fwd,
		metricsCollector: collector,
	}
}
