package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cmswift/authbroker/internal/state"
)

type HealthHandler struct {
	store  state.Store
	logger *slog.Logger
}

func NewHealthHandler(store state.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", State: "ok"}

	// A write-read cycle against the state store catches a dead Redis
	// before the sign-in flows do.
	probe := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := h.store.Set(r.Context(), "health:probe", probe, time.Minute); err != nil {
		h.logger.Warn("health probe write failed", "error", err)
		resp.Status = "degraded"
		resp.State = "unavailable"
	} else if _, err := h.store.Get(r.Context(), "health:probe"); err != nil {
		resp.Status = "degraded"
		resp.State = "unavailable"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
