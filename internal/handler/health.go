package handler

import "net/http"

type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports the balancer's own liveness. It says nothing about the
// registered applications.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}
