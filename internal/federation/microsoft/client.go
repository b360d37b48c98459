// Package microsoft converts MSAL popup credentials into internal tokens.
// Structurally identical to the Google client, but scoped to the tenant
// authority the deployment configures.
package microsoft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/config"
)

type Client struct {
	enabled   bool
	authority string

	backend *backend.Client
	logger  *slog.Logger

	mu       sync.Mutex
	discover func() (*gooidc.Provider, error)
}

func NewClient(cfg config.MicrosoftConfig, be *backend.Client, logger *slog.Logger) *Client {
	authority := cfg.Authority
	if authority == "" {
		authority = fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", cfg.TenantID)
	}

	c := &Client{
		enabled:   cfg.Enabled,
		authority: authority,
		backend:   be,
		logger:    logger,
	}
	c.Reset()
	return c
}

// Reset re-arms the memoized authority discovery.
func (c *Client) Reset() {
	c.mu.Lock()
	c.discover = sync.OnceValues(func() (*gooidc.Provider, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return gooidc.NewProvider(ctx, c.authority)
	})
	c.mu.Unlock()
}

func (c *Client) ensureProvider() (*gooidc.Provider, error) {
	c.mu.Lock()
	discover := c.discover
	c.mu.Unlock()
	return discover()
}

// Convert exchanges the popup-supplied ID token for an internal token. A
// popup flow that delivered no ID token is a typed failure, never a hang.
func (c *Client) Convert(ctx context.Context, idToken, repositoryID string) (*authtoken.AuthToken, error) {
	if !c.enabled {
		return nil, authtoken.Disabled("Microsoft")
	}
	if idToken == "" {
		return nil, authtoken.MissingToken("Microsoft login did not return an ID token")
	}

	if _, err := c.ensureProvider(); err != nil {
		c.logger.Warn("microsoft authority discovery failed", "authority", c.authority, "error", err)
		return nil, authtoken.NetworkFailure(err)
	}

	val, err := c.backend.ConvertIDToken(ctx, "microsoft", repositoryID, idToken)
	if err != nil {
		return nil, err
	}

	return &authtoken.AuthToken{
		Token:        val.Token,
		RepositoryID: repositoryID,
		Username:     val.UserName,
		Method:       authtoken.MethodMicrosoft,
	}, nil
}
