// Package oidc drives the authorization-code redirect flow. The flow spans
// a full navigation away to the provider and back, so it is split into two
// entry points: Initiate persists everything Resume will need before the
// redirect URL is handed out, and Resume reconstructs the flow from the
// callback URL on the return trip.
package oidc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/config"
	"github.com/cmswift/authbroker/internal/state"
)

const flowStateTTL = 5 * time.Minute

type Client struct {
	oauth2Config oauth2.Config
	provider     *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	backend *backend.Client
	store   state.Store
	logger  *slog.Logger

	renewLead  time.Duration
	renewFloor time.Duration
}

// flowState is everything Resume needs that the callback URL cannot carry:
// the PKCE verifier and the repository the user was signing into.
type flowState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	RepositoryID string    `json:"repository_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExternalUser is the provider-side identity produced by Resume, input to
// Convert.
type ExternalUser struct {
	AccessToken  string
	RefreshToken string
	RawIDToken   string
	Expiry       time.Time
	Claims       map[string]any
	RepositoryID string
}

func NewClient(ctx context.Context, cfg config.OIDCConfig, be *backend.Client, store state.Store, logger *slog.Logger) (*Client, error) {
	provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &Client{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
		provider:   provider,
		verifier:   provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		backend:    be,
		store:      store,
		logger:     logger,
		renewLead:  renewalLead,
		renewFloor: renewalFloor,
	}, nil
}

// Initiate returns the provider authorization URL. The flow record is
// persisted before the URL is handed out, so a failure here surfaces before
// any navigation begins.
func (c *Client) Initiate(ctx context.Context, repositoryID string) (string, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return "", authtoken.EncodingFailure(err)
	}

	stateValue := uuid.New().String()

	record := flowState{
		State:        stateValue,
		CodeVerifier: codeVerifier,
		RepositoryID: repositoryID,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", authtoken.EncodingFailure(err)
	}
	if err := c.store.Set(ctx, "oidc:state:"+stateValue, data, flowStateTTL); err != nil {
		return "", authtoken.EncodingFailure(fmt.Errorf("failed to persist flow state: %w", err))
	}

	return c.oauth2Config.AuthCodeURL(
		stateValue,
		oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// Resume picks the flow back up on the return page load: it matches the
// callback against the persisted record, exchanges the code with the PKCE
// verifier, and extracts the external user.
func (c *Client) Resume(ctx context.Context, callback *url.URL) (*ExternalUser, error) {
	query := callback.Query()

	if errCode := query.Get("error"); errCode != "" {
		msg := query.Get("error_description")
		if msg == "" {
			msg = errCode
		}
		return nil, authtoken.Rejected(msg)
	}

	code := query.Get("code")
	stateValue := query.Get("state")
	if code == "" || stateValue == "" {
		return nil, authtoken.Rejected("callback is missing code or state")
	}

	data, err := c.store.Get(ctx, "oidc:state:"+stateValue)
	if err != nil {
		return nil, authtoken.Rejected("unknown or expired sign-in attempt")
	}
	c.store.Delete(ctx, "oidc:state:"+stateValue)

	var record flowState
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, authtoken.Rejected("unreadable sign-in state")
	}

	token, err := c.oauth2Config.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", record.CodeVerifier),
	)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, authtoken.Rejected(retrieveErr.ErrorDescription)
		}
		return nil, authtoken.NetworkFailure(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, authtoken.MissingToken("provider returned no ID token")
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, authtoken.Rejected("provider ID token failed verification")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, authtoken.Rejected("provider ID token claims unreadable")
	}

	return &ExternalUser{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		RawIDToken:   rawIDToken,
		Expiry:       token.Expiry,
		Claims:       claims,
		RepositoryID: record.RepositoryID,
	}, nil
}

// Convert exchanges the external identity for an internal token at the
// backend conversion endpoint.
func (c *Client) Convert(ctx context.Context, ext *ExternalUser) (*authtoken.AuthToken, error) {
	val, err := c.backend.ConvertOIDC(ctx, ext.RepositoryID, backend.OIDCConversion{
		OIDCToken: ext.AccessToken,
		IDToken:   ext.RawIDToken,
		UserInfo:  ext.Claims,
	})
	if err != nil {
		return nil, err
	}

	username := val.UserName
	if username == "" {
		username = claimString(ext.Claims, "preferred_username")
	}
	if username == "" {
		username = claimString(ext.Claims, "email")
	}

	return &authtoken.AuthToken{
		Token:        val.Token,
		RepositoryID: ext.RepositoryID,
		Username:     username,
		Method:       authtoken.MethodOIDC,
	}, nil
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
