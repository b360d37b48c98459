// Package capability asks the backend which federation providers are
// enabled. Discovery never fails outward: any transport or decode problem
// collapses into the all-disabled default so the sign-in screen can always
// render.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AuthConfig reports the enabled providers and the public identifiers the
// web UI needs to drive its vendor sign-in widgets.
type AuthConfig struct {
	OIDCEnabled       bool   `json:"oidcEnabled"`
	SAMLEnabled       bool   `json:"samlEnabled"`
	GoogleEnabled     bool   `json:"googleEnabled"`
	MicrosoftEnabled  bool   `json:"microsoftEnabled"`
	GoogleClientID    string `json:"googleClientId,omitempty"`
	MicrosoftClientID string `json:"microsoftClientId,omitempty"`
	MicrosoftTenantID string `json:"microsoftTenantId,omitempty"`
}

type Discovery struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	cached *AuthConfig
}

func NewDiscovery(backendURL string, httpClient *http.Client, logger *slog.Logger) *Discovery {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discovery{
		endpoint:   strings.TrimRight(backendURL, "/") + "/auth/config",
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetAuthConfig returns the provider capabilities. The first caller
// triggers the fetch; concurrent callers share the same in-flight request,
// and a successful result is cached for the process lifetime. A degraded
// fetch still answers with the all-disabled default but is not cached, so
// the next caller retries instead of pinning a backend blip forever.
func (d *Discovery) GetAuthConfig(ctx context.Context) AuthConfig {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return *cached
	}

	v, _, _ := d.group.Do("auth-config", func() (any, error) {
		cfg, ok := d.fetch(ctx)
		if ok {
			d.mu.Lock()
			d.cached = &cfg
			d.mu.Unlock()
		}
		return cfg, nil
	})
	return v.(AuthConfig)
}

// ClearCache resets the cached value and any in-flight fetch. Used by tests
// and after reconfiguration.
func (d *Discovery) ClearCache() {
	d.group.Forget("auth-config")
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// fetch collapses every failure into the safe default. The second return
// reports whether the answer came from a healthy backend and may be cached.
func (d *Discovery) fetch(ctx context.Context) (AuthConfig, bool) {
	var disabled AuthConfig

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint, nil)
	if err != nil {
		d.logger.Warn("capability discovery request construction failed", "error", err)
		return disabled, false
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("capability discovery fetch failed", "error", err)
		return disabled, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("capability discovery returned non-200",
			"status", fmt.Sprintf("%d", resp.StatusCode))
		return disabled, false
	}

	var cfg AuthConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		d.logger.Warn("capability discovery response unreadable", "error", err)
		return disabled, false
	}

	return cfg, true
}
