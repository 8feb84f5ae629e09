package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/workmait/digestd/internal/handlers"
)

// NewRouter constructs a ServeMux with the digest API routes registered.
func NewRouter(h *handlers.DigestHandler) http.Handler {
	mux := http.NewServeMux()

	// Digestion endpoints
	mux.HandleFunc("/digest/file", h.UploadFile)
	mux.HandleFunc("/digest/add", h.AddNodes)
	mux.HandleFunc("/digest/delete", h.DeleteNodes)
	mux.HandleFunc("/digest/move", h.MoveNodes)
	mux.HandleFunc("/digest/drop", h.DeleteStore)
	mux.HandleFunc("/digest/events", h.Events)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return RequestID(mux)
}
