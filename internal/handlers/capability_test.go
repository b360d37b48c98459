package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmswift/authbroker/internal/capability"
)

func TestCapabilityHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"oidcEnabled":true,"googleEnabled":true,"googleClientId":"g-client"}`))
	}))
	defer srv.Close()

	h := NewCapabilityHandler(capability.NewDiscovery(srv.URL, srv.Client(), testLogger()), testLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/config", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var cfg capability.AuthConfig
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.True(t, cfg.OIDCEnabled)
	assert.False(t, cfg.SAMLEnabled)
	assert.Equal(t, "g-client", cfg.GoogleClientID)
}

func TestCapabilityHandlerBadMethod(t *testing.T) {
	h := NewCapabilityHandler(capability.NewDiscovery("http://127.0.0.1:1", nil, testLogger()), testLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/config", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCapabilityHandlerBackendDown(t *testing.T) {
	h := NewCapabilityHandler(capability.NewDiscovery("http://127.0.0.1:1", nil, testLogger()), testLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/config", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var cfg capability.AuthConfig
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.Equal(t, capability.AuthConfig{}, cfg)
}
