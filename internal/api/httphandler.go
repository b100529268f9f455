package api

import (
	"context"
	"net/http"
	"wolff/internal/types"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ClientReloader is the part of the resolver the admin endpoints drive.
type ClientReloader interface {
	Reload(ctx context.Context) (int, error)
	Clients() []types.ClientRecord
}

type Handler struct {
	Clients ClientReloader
}

func NewHandler(reloader ClientReloader) *Handler {
	return &Handler{Clients: reloader}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/clients/reload", h.handleReload)
	mux.HandleFunc("/clients", h.handleList)
	return mux
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n, err := h.Clients.Reload(r.Context())
	if err != nil {
		log.WithError(err).Error("client reload failed")
		http.Error(w, "reload failed", http.StatusInternalServerError)
		return
	}
	if err := writeJSON(w, http.StatusOK, map[string]any{"clients": n}); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// handleList returns client ids only; resources and credentials stay private.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clients := h.Clients.Clients()
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	if err := writeJSON(w, http.StatusOK, map[string]any{"clients": ids}); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
