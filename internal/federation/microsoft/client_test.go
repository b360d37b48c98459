package microsoft

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeAuthority(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	})

	return srv
}

func newTestClient(t *testing.T, enabled bool, backendHandler http.HandlerFunc) *Client {
	t.Helper()

	var be *backend.Client
	if backendHandler != nil {
		srv := httptest.NewServer(backendHandler)
		t.Cleanup(srv.Close)
		be = backend.NewWithHTTPClient(srv.URL, srv.Client())
	}

	return NewClient(config.MicrosoftConfig{
		Enabled:   enabled,
		ClientID:  "ms-client",
		TenantID:  "tenant-1",
		Authority: newFakeAuthority(t).URL,
	}, be, testLogger())
}

func TestNewClientAuthority(t *testing.T) {
	c := NewClient(config.MicrosoftConfig{ClientID: "ms-client", TenantID: "tenant-1"}, nil, testLogger())
	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/v2.0", c.authority)
}

func TestConvert(t *testing.T) {
	c := newTestClient(t, true, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repo/bedroom/authtoken/microsoft/convert", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ms-id-token", payload["id_token"])

		w.Write([]byte(`{"status":"success","value":{"token":"T1","userName":"bob@example.com"}}`))
	})

	tok, err := c.Convert(context.Background(), "ms-id-token", "bedroom")
	require.NoError(t, err)

	assert.Equal(t, "T1", tok.Token)
	assert.Equal(t, "bedroom", tok.RepositoryID)
	assert.Equal(t, authtoken.MethodMicrosoft, tok.Method)
}

func TestConvertDisabled(t *testing.T) {
	c := newTestClient(t, false, nil)

	_, err := c.Convert(context.Background(), "ms-id-token", "bedroom")
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))
}

func TestConvertMissingIDToken(t *testing.T) {
	c := newTestClient(t, true, nil)

	_, err := c.Convert(context.Background(), "", "bedroom")
	require.Error(t, err)
	assert.True(t, authtoken.IsKind(err, authtoken.KindMissingToken))

	var e *authtoken.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Microsoft login did not return an ID token", e.Message)
}

func TestConvertRejected(t *testing.T) {
	c := newTestClient(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"failure","message":"tenant mismatch"}`))
	})

	_, err := c.Convert(context.Background(), "ms-id-token", "bedroom")
	require.Error(t, err)
	assert.True(t, authtoken.IsKind(err, authtoken.KindRejected))

	var e *authtoken.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "tenant mismatch", e.Message)
}
