// Package backend speaks to the repository backend that validates external
// credentials and mints internal session tokens. It only encodes requests
// and decodes response envelopes; assertion and signature validation happen
// entirely on the server side.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/config"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// NewWithHTTPClient is used by tests to point the client at a fake backend.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// LoginPassword exchanges a username and password for a minted token. The
// credentials go as form data to the per-repository login endpoint.
func (c *Client) LoginPassword(ctx context.Context, repositoryID, username, password string) (*authtoken.EnvelopeValue, error) {
	endpoint := fmt.Sprintf("%s/repo/%s/authtoken/%s/login",
		c.baseURL, url.PathEscape(repositoryID), url.PathEscape(username))

	form := url.Values{}
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, authtoken.EncodingFailure(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doEnvelope(req)
}

// Unregister tears down the server-side session for a token. Callers treat
// it as best-effort; the error is surfaced only so it can be logged.
func (c *Client) Unregister(ctx context.Context, tok *authtoken.AuthToken) error {
	endpoint := fmt.Sprintf("%s/repo/%s/authtoken/%s/unregister",
		c.baseURL, url.PathEscape(tok.RepositoryID), url.PathEscape(tok.Username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return authtoken.EncodingFailure(err)
	}
	req.Header.Set("X-Auth-Token", tok.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authtoken.NetworkFailure(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return authtoken.Rejected(fmt.Sprintf("unregister returned status %d", resp.StatusCode))
	}
	return nil
}

// OIDCConversion is the payload for an OIDC token conversion.
type OIDCConversion struct {
	OIDCToken string         `json:"oidc_token"`
	IDToken   string         `json:"id_token"`
	UserInfo  map[string]any `json:"user_info,omitempty"`
}

// ConvertOIDC sends the external tokens to the conversion endpoint. The
// request itself is authenticated with the external access token as a
// bearer credential.
func (c *Client) ConvertOIDC(ctx context.Context, repositoryID string, conv OIDCConversion) (*authtoken.EnvelopeValue, error) {
	endpoint := fmt.Sprintf("%s/repo/%s/authtoken/oidc/convert", c.baseURL, url.PathEscape(repositoryID))

	req, err := newJSONRequest(ctx, endpoint, conv)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+conv.OIDCToken)

	return c.doEnvelope(req)
}

// SAMLConversion is the payload for a SAML response conversion. The
// attribute bag is optional and only present when the caller already parsed
// IdP-supplied attributes.
type SAMLConversion struct {
	SAMLResponse   string            `json:"saml_response"`
	RelayState     string            `json:"relay_state,omitempty"`
	UserAttributes map[string]string `json:"user_attributes,omitempty"`
}

func (c *Client) ConvertSAML(ctx context.Context, repositoryID string, conv SAMLConversion) (*authtoken.EnvelopeValue, error) {
	endpoint := fmt.Sprintf("%s/repo/%s/authtoken/saml/convert", c.baseURL, url.PathEscape(repositoryID))

	req, err := newJSONRequest(ctx, endpoint, conv)
	if err != nil {
		return nil, err
	}

	return c.doEnvelope(req)
}

// ConvertIDToken exchanges an external ID token for a minted token. Google
// and Microsoft conversions are structurally identical and differ only in
// the provider segment of the path.
func (c *Client) ConvertIDToken(ctx context.Context, provider, repositoryID, idToken string) (*authtoken.EnvelopeValue, error) {
	endpoint := fmt.Sprintf("%s/repo/%s/authtoken/%s/convert",
		c.baseURL, url.PathEscape(repositoryID), url.PathEscape(provider))

	req, err := newJSONRequest(ctx, endpoint, map[string]string{"id_token": idToken})
	if err != nil {
		return nil, err
	}

	return c.doEnvelope(req)
}

func newJSONRequest(ctx context.Context, endpoint string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, authtoken.EncodingFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, authtoken.EncodingFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doEnvelope runs the request and decodes the tagged envelope. A non-2xx
// status is a rejection carrying the server message when one is decodable.
func (c *Client) doEnvelope(req *http.Request) (*authtoken.EnvelopeValue, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, authtoken.NetworkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("server returned status %d", resp.StatusCode)
		if env, decErr := authtoken.DecodeEnvelope(resp.Body); decErr == nil && env.Message != "" {
			msg = env.Message
		}
		return nil, authtoken.Rejected(msg)
	}

	env, err := authtoken.DecodeEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	return env.TokenValue()
}
