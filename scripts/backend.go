// Backend is a sample downstream application used to try the load balancer.
// It registers itself on start, deregisters on shutdown, answers its health
// path and echoes every other GET as JSON.
//
// Usage:
//
//	go run backend.go -port 8081 -alb http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
)

type registration struct {
	Scheme          string `json:"scheme"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Path            string `json:"path"`
	HealthCheckPath string `json:"healthCheckPath"`
	Timeout         int    `json:"timeout"`
}

type echo struct {
	ID     string `json:"id"`
	Server string `json:"server"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	host := flag.String("host", "localhost", "host the load balancer reaches this server on")
	alb := flag.String("alb", "http://localhost:8080", "load balancer base URL")
	basePath := flag.String("path", "", "base path prefix for forwarded requests")
	healthPath := flag.String("health-path", "/health", "health check path")
	timeout := flag.Int("timeout", 2, "timeout in seconds (0-5)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	self := fmt.Sprintf("%s:%d", *host, *port)

	mux := http.NewServeMux()
	mux.HandleFunc(*healthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", r.Header.Get("X-Request-ID")))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(echo{
			ID:     uuid.NewString(),
			Server: self,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
		})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting backend", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("err", err))
			stop()
		}
	}()

	id, err := register(ctx, *alb, registration{
		Scheme:          "http",
		Host:            *host,
		Port:            *port,
		Path:            *basePath,
		HealthCheckPath: *healthPath,
		Timeout:         *timeout,
	})
	if err != nil {
		log.Error("registration failed", slog.Any("err", err))
		_ = srv.Shutdown(context.Background())
		os.Exit(1)
	}
	log.Info("registered with load balancer", slog.String("id", id))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := deregister(shutdownCtx, *alb, id); err != nil {
		log.Error("deregistration failed", slog.Any("err", err))
	}
	_ = srv.Shutdown(shutdownCtx)
}

func register(ctx context.Context, alb string, reg registration) (string, error) {
	payload, err := json.Marshal(reg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, alb+"/api/register-application", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("register: unexpected status %d", res.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("register: decode response: %w", err)
	}

	return body.ID, nil
}

func deregister(ctx context.Context, alb, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, alb+"/api/deregister-application/"+id, nil)
	if err != nil {
		return err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("deregister: unexpected status %d", res.StatusCode)
	}

	return nil
}
