// Package credential implements the plain username/password exchange.
package credential

import (
	"context"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
)

type Client struct {
	backend *backend.Client
}

func New(be *backend.Client) *Client {
	return &Client{backend: be}
}

// Login exchanges the credentials for a token. There is no retry here; the
// caller decides what a rejection means for the flow it is running.
func (c *Client) Login(ctx context.Context, username, password, repositoryID string) (*authtoken.AuthToken, error) {
	val, err := c.backend.LoginPassword(ctx, repositoryID, username, password)
	if err != nil {
		return nil, err
	}

	resolved := val.UserName
	if resolved == "" {
		resolved = username
	}

	return &authtoken.AuthToken{
		Token:        val.Token,
		RepositoryID: repositoryID,
		Username:     resolved,
		Method:       authtoken.MethodPassword,
	}, nil
}
