package handlers

import (
	"log/slog"
	"net/http"

	"github.com/cmswift/authbroker/internal/capability"
)

// CapabilityHandler relays provider capabilities to the sign-in screen.
// The discovery layer memoizes and deduplicates, so this endpoint is cheap
// to hit on every page load.
type CapabilityHandler struct {
	discovery *capability.Discovery
	logger    *slog.Logger
}

func NewCapabilityHandler(discovery *capability.Discovery, logger *slog.Logger) *CapabilityHandler {
	return &CapabilityHandler{discovery: discovery, logger: logger}
}

func (h *CapabilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.discovery.GetAuthConfig(r.Context()))
}
