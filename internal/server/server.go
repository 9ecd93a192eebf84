// Package server provides the internal-only HTTP server exposing health,
// readiness and Prometheus metrics. It should not be exposed to the public
// internet.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck reports whether one dependency is healthy.
type ReadinessCheck func(ctx context.Context) error

type healthResponse struct {
	Status string `json:"status"`
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// New creates the metrics/health server. checks maps a dependency name
// (e.g. "redis", "ontime") to its readiness probe.
func New(addr string, checks map[string]ReadinessCheck) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ready", ReadyHandler(checks))
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{Status: "ok"}) //nolint:errcheck
}

func ReadyHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		response := readyResponse{
			Status: "ready",
			Checks: make(map[string]string, len(checks)),
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				response.Checks[name] = err.Error()
				response.Status = "not ready"
			} else {
				response.Checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if response.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response) //nolint:errcheck
	}
}
