package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds the API and probe routes to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("livez")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readyz")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preparse", h.Preparse).Methods(http.MethodPost).Name("preparse")
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods(http.MethodGet).Name("thumbnail")
	api.HandleFunc("/requests", h.ListRequests).Methods(http.MethodGet).Name("requests")
	api.HandleFunc("/requests", h.CancelAllRequests).Methods(http.MethodDelete).Name("cancel-all")
	api.HandleFunc("/requests/{id:[0-9]+}", h.CancelRequest).Methods(http.MethodDelete).Name("cancel")
}
