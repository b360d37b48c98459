package flow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/config"
	"github.com/cmswift/authbroker/internal/credential"
	"github.com/cmswift/authbroker/internal/federation/google"
	"github.com/cmswift/authbroker/internal/federation/saml"
	"github.com/cmswift/authbroker/internal/session"
	"github.com/cmswift/authbroker/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFakeIssuer serves the minimal discovery document provider
// construction needs.
func newFakeIssuer(t *testing.T) string {
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

	return srv.URL
}

type testEnv struct {
	orch    *Orchestrator
	session *session.Store
	backend *backend.Client
}

func newTestEnv(t *testing.T, backendHandler http.HandlerFunc) *testEnv {
	t.Helper()

	if backendHandler == nil {
		backendHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"success","value":{"token":"T1","userName":"alice"}}`))
		}
	}
	srv := httptest.NewServer(backendHandler)
	t.Cleanup(srv.Close)

	be := backend.NewWithHTTPClient(srv.URL, srv.Client())
	store := state.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sess := session.NewStore(store, credential.New(be), be, "X-Auth-Token", time.Hour, testLogger())

	return &testEnv{
		orch:    New(sess, nil, nil, nil, nil, "bedroom", testLogger()),
		session: sess,
		backend: be,
	}
}

func TestResumeKindFor(t *testing.T) {
	env := newTestEnv(t, nil)

	kind, ok := env.orch.ResumeKindFor(PathOIDCCallback)
	assert.True(t, ok)
	assert.Equal(t, KindOIDC, kind)

	kind, ok = env.orch.ResumeKindFor(PathSAMLACS)
	assert.True(t, ok)
	assert.Equal(t, KindSAML, kind)

	_, ok = env.orch.ResumeKindFor("/some/other/page")
	assert.False(t, ok)
}

func TestLoginDefaultsRepository(t *testing.T) {
	var gotPath string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","value":{"token":"T1","userName":"alice"}}`))
	})

	tok, err := env.orch.Login(context.Background(), "alice", "s3cret", "")
	require.NoError(t, err)

	assert.Equal(t, "/repo/bedroom/authtoken/alice/login", gotPath)
	assert.Equal(t, "bedroom", tok.RepositoryID)
	require.NotNil(t, env.session.Current())
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.Login(context.Background(), "alice", "s3cret", "bedroom")
	require.NoError(t, err)

	env.orch.Logout(context.Background())
	assert.Nil(t, env.session.Current())
}

func TestDisabledProviders(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.orch.BeginOIDC(ctx, "bedroom")
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))

	_, err = env.orch.ResumeOIDC(ctx, nil)
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))

	_, err = env.orch.BeginSAML(ctx, "bedroom")
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))

	_, err = env.orch.ResumeSAML(ctx, "resp", "")
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))

	_, err = env.orch.ConvertGoogle(ctx, "id-token", "bedroom")
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))

	_, err = env.orch.ConvertMicrosoft(ctx, "id-token", "bedroom")
	assert.True(t, authtoken.IsKind(err, authtoken.KindDisabled))

	assert.Equal(t, "", env.orch.SAMLLogoutURL())
}

func TestResumeSAMLPublishesToken(t *testing.T) {
	env := newTestEnv(t, nil)

	samlClient, err := saml.NewClient(context.Background(), config.SAMLConfig{
		Enabled:  true,
		EntityID: "https://broker.example.com/metadata",
		ACSURL:   "https://broker.example.com/auth/saml/acs",
		SSOURL:   "https://idp.example.com/sso",
	}, "bedroom", env.backend, state.NewMemoryStore(), testLogger())
	require.NoError(t, err)

	env.orch.saml = samlClient

	tok, err := env.orch.ResumeSAML(context.Background(), "b64-response", "repositoryId=kitchen")
	require.NoError(t, err)

	assert.Equal(t, "kitchen", tok.RepositoryID)
	assert.Equal(t, authtoken.MethodSAML, tok.Method)

	current := env.session.Current()
	require.NotNil(t, current)
	assert.Equal(t, tok.Token, current.Token)
}

func TestConvertGooglePublishesAndDefaultsRepository(t *testing.T) {
	var gotPath string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","value":{"token":"T1","userName":"alice@example.com"}}`))
	})

	env.orch.google = google.NewClient(config.GoogleConfig{
		Enabled:  true,
		ClientID: "g-client",
		Issuer:   newFakeIssuer(t),
	}, env.backend, testLogger())

	tok, err := env.orch.ConvertGoogle(context.Background(), "g-id-token", "")
	require.NoError(t, err)

	assert.Equal(t, "/repo/bedroom/authtoken/google/convert", gotPath)
	assert.Equal(t, "bedroom", tok.RepositoryID)
	require.NotNil(t, env.session.Current())
	assert.Equal(t, authtoken.MethodGoogle, env.session.Current().Method)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "network",
			err:  authtoken.NetworkFailure(errors.New("refused")),
			want: "The sign-in service could not be reached. Please try again.",
		},
		{
			name: "rejected",
			err:  authtoken.Rejected("bad password"),
			want: "Sign-in was declined. Check your credentials and try again.",
		},
		{
			name: "encoding",
			err:  authtoken.EncodingFailure(errors.New("bad xml")),
			want: "The sign-in request could not be prepared.",
		},
		{
			name: "missing token",
			err:  authtoken.MissingToken("no credential"),
			want: "The identity provider did not return a usable credential.",
		},
		{
			name: "disabled",
			err:  authtoken.Disabled("SAML"),
			want: "This sign-in method is not available.",
		},
		{
			name: "unlabeled",
			err:  errors.New("boom"),
			want: "Sign-in failed. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
