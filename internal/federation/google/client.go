// Package google converts Google Identity Services credentials into
// internal tokens. The browser drives the vendor popup itself; this client
// receives the resulting ID token and exchanges it at the backend. Issuer
// discovery is acquired lazily and exactly once, mirroring one-time vendor
// SDK loading: later and concurrent callers share the same memoized result.
package google

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/config"
)

const googleIssuer = "https://accounts.google.com"

type Client struct {
	enabled bool
	issuer  string

	backend *backend.Client
	logger  *slog.Logger

	mu       sync.Mutex
	discover func() (*gooidc.Provider, error)
}

func NewClient(cfg config.GoogleConfig, be *backend.Client, logger *slog.Logger) *Client {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = googleIssuer
	}

	c := &Client{
		enabled: cfg.Enabled,
		issuer:  issuer,
		backend: be,
		logger:  logger,
	}
	c.Reset()
	return c
}

// Reset re-arms the memoized issuer discovery. Intended for tests and
// reconfiguration; normal operation acquires once per process.
func (c *Client) Reset() {
	c.mu.Lock()
	c.discover = sync.OnceValues(func() (*gooidc.Provider, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return gooidc.NewProvider(ctx, c.issuer)
	})
	c.mu.Unlock()
}

func (c *Client) ensureProvider() (*gooidc.Provider, error) {
	c.mu.Lock()
	discover := c.discover
	c.mu.Unlock()
	return discover()
}

// Convert exchanges the popup-supplied ID token for an internal token.
func (c *Client) Convert(ctx context.Context, idToken, repositoryID string) (*authtoken.AuthToken, error) {
	if !c.enabled {
		return nil, authtoken.Disabled("Google")
	}
	if idToken == "" {
		return nil, authtoken.MissingToken("Google login did not return an ID token")
	}

	if _, err := c.ensureProvider(); err != nil {
		c.logger.Warn("google issuer discovery failed", "issuer", c.issuer, "error", err)
		return nil, authtoken.NetworkFailure(err)
	}

	val, err := c.backend.ConvertIDToken(ctx, "google", repositoryID, idToken)
	if err != nil {
		return nil, err
	}

	return &authtoken.AuthToken{
		Token:        val.Token,
		RepositoryID: repositoryID,
		Username:     val.UserName,
		Method:       authtoken.MethodGoogle,
	}, nil
}
