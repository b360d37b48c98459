package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmswift/authbroker/internal/authtoken"
)

func successEnvelope(token, userName string) string {
	return `{"status":"success","value":{"token":"` + token + `","userName":"` + userName + `"}}`
}

func TestLoginPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repo/bedroom/authtoken/alice/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))

		w.Write([]byte(successEnvelope("T1", "alice")))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	val, err := c.LoginPassword(context.Background(), "bedroom", "alice", "s3cret")
	require.NoError(t, err)

	assert.Equal(t, "T1", val.Token)
	assert.Equal(t, "alice", val.UserName)
}

func TestLoginPasswordRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"failure","message":"invalid credentials"}`))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	_, err := c.LoginPassword(context.Background(), "bedroom", "alice", "wrong")

	require.Error(t, err)
	assert.True(t, authtoken.IsKind(err, authtoken.KindRejected))

	var e *authtoken.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "invalid credentials", e.Message)
}

func TestLoginPasswordTaggedFailureWithOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failure","message":"account locked"}`))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	_, err := c.LoginPassword(context.Background(), "bedroom", "alice", "s3cret")

	require.Error(t, err)
	assert.True(t, authtoken.IsKind(err, authtoken.KindRejected))
}

func TestLoginPasswordUnreachableBackend(t *testing.T) {
	c := NewWithHTTPClient("http://127.0.0.1:1", nil)
	_, err := c.LoginPassword(context.Background(), "bedroom", "alice", "s3cret")

	require.Error(t, err)
	assert.True(t, authtoken.IsKind(err, authtoken.KindNetwork))
}

func TestUnregister(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repo/bedroom/authtoken/alice/unregister", r.URL.Path)
		gotToken = r.Header.Get("X-Auth-Token")
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	err := c.Unregister(context.Background(), &authtoken.AuthToken{
		Token:        "T1",
		RepositoryID: "bedroom",
		Username:     "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, "T1", gotToken)
}

func TestUnregisterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	err := c.Unregister(context.Background(), &authtoken.AuthToken{
		Token:        "T1",
		RepositoryID: "bedroom",
		Username:     "alice",
	})

	assert.True(t, authtoken.IsKind(err, authtoken.KindRejected))
}

func TestConvertOIDC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repo/bedroom/authtoken/oidc/convert", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "access-token", payload["oidc_token"])
		assert.Equal(t, "id-token", payload["id_token"])

		w.Write([]byte(successEnvelope("T2", "alice@example.com")))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	val, err := c.ConvertOIDC(context.Background(), "bedroom", OIDCConversion{
		OIDCToken: "access-token",
		IDToken:   "id-token",
	})

	require.NoError(t, err)
	assert.Equal(t, "T2", val.Token)
}

func TestConvertSAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repo/kitchen/authtoken/saml/convert", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "base64-response", payload["saml_response"])
		assert.Equal(t, "repositoryId=kitchen", payload["relay_state"])

		w.Write([]byte(successEnvelope("T3", "bob")))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(srv.URL, srv.Client())
	val, err := c.ConvertSAML(context.Background(), "kitchen", SAMLConversion{
		SAMLResponse: "base64-response",
		RelayState:   "repositoryId=kitchen",
	})

	require.NoError(t, err)
	assert.Equal(t, "T3", val.Token)
	assert.Equal(t, "bob", val.UserName)
}

func TestConvertIDToken(t *testing.T) {
	tests := []struct {
		provider string
		wantPath string
	}{
		{provider: "google", wantPath: "/repo/bedroom/authtoken/google/convert"},
		{provider: "microsoft", wantPath: "/repo/bedroom/authtoken/microsoft/convert"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)

				var payload map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Equal(t, "ext-id-token", payload["id_token"])

				w.Write([]byte(successEnvelope("T4", "carol")))
			}))
			defer srv.Close()

			c := NewWithHTTPClient(srv.URL, srv.Client())
			val, err := c.ConvertIDToken(context.Background(), tt.provider, "bedroom", "ext-id-token")

			require.NoError(t, err)
			assert.Equal(t, "T4", val.Token)
		})
	}
}
