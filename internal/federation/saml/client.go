// Package saml drives SP-initiated SAML 2.0 single sign-on. The
// HTTP-Redirect binding is constructed by hand: the AuthnRequest bytes are
// raw-deflated (no zlib header or trailer) and base64-encoded exactly as the
// binding requires. IdP metadata, when configured, is parsed with
// crewjam/saml to source the SSO and SLO endpoints.
package saml

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	crewsaml "github.com/crewjam/saml"
	"github.com/google/uuid"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/config"
	"github.com/cmswift/authbroker/internal/state"
)

// requestTTL is how long an outstanding AuthnRequest record is kept while
// the user is away at the identity provider.
const requestTTL = 5 * time.Minute

type Client struct {
	entityID string
	acsURL   string
	ssoURL   string
	sloURL   string

	defaultRepository string

	backend *backend.Client
	store   state.Store
	logger  *slog.Logger
}

// outstandingRequest is the record persisted by InitiateLogin. Nothing in
// the callback depends on it (IdP-initiated responses carry no request ID),
// but it lets operators correlate an ACS hit with the navigation that
// started it.
type outstandingRequest struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewClient(ctx context.Context, cfg config.SAMLConfig, defaultRepository string, be *backend.Client, store state.Store, logger *slog.Logger) (*Client, error) {
	c := &Client{
		entityID:          cfg.EntityID,
		acsURL:            cfg.ACSURL,
		ssoURL:            cfg.SSOURL,
		sloURL:            cfg.SLOURL,
		defaultRepository: defaultRepository,
		backend:           be,
		store:             store,
		logger:            logger,
	}

	if cfg.IDPMetadataXML != "" || cfg.IDPMetadataURL != "" {
		metadata, err := fetchIDPMetadata(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load IdP metadata: %w", err)
		}
		c.applyMetadata(metadata)
	}

	if c.ssoURL == "" {
		return nil, fmt.Errorf("no SSO URL configured or discoverable from IdP metadata")
	}

	return c, nil
}

// applyMetadata fills in endpoints the static config left empty. Explicit
// configuration wins over metadata.
func (c *Client) applyMetadata(metadata *crewsaml.EntityDescriptor) {
	for _, idp := range metadata.IDPSSODescriptors {
		if c.ssoURL == "" {
			for _, endpoint := range idp.SingleSignOnServices {
				if endpoint.Binding == crewsaml.HTTPRedirectBinding {
					c.ssoURL = endpoint.Location
					break
				}
			}
		}
		if c.sloURL == "" {
			for _, endpoint := range idp.SingleLogoutServices {
				if endpoint.Binding == crewsaml.HTTPRedirectBinding {
					c.sloURL = endpoint.Location
					break
				}
			}
		}
	}
}

// InitiateLogin builds the full redirect URL for the IdP: the deflated,
// base64-encoded AuthnRequest plus a RelayState carrying the repository
// context through the provider unmodified. Every failure surfaces here,
// before any navigation happens.
func (c *Client) InitiateLogin(ctx context.Context, repositoryID string) (string, error) {
	requestID := "_" + uuid.New().String()

	encoded, err := c.generateSAMLRequest(requestID)
	if err != nil {
		return "", err
	}

	dest, err := url.Parse(c.ssoURL)
	if err != nil {
		return "", authtoken.EncodingFailure(err)
	}

	query := dest.Query()
	query.Set("SAMLRequest", encoded)
	query.Set("RelayState", EncodeRelayState(repositoryID))
	dest.RawQuery = query.Encode()

	c.recordRequest(ctx, requestID, repositoryID)

	return dest.String(), nil
}

func (c *Client) recordRequest(ctx context.Context, requestID, repositoryID string) {
	rec := outstandingRequest{
		ID:           requestID,
		RepositoryID: repositoryID,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, "saml:request:"+requestID, data, requestTTL); err != nil {
		c.logger.Warn("failed to record outstanding SAML request", "error", err)
	}
}

// HandleSAMLResponse converts an IdP response into an internal token. The
// effective repository comes from the RelayState, falling back to the
// configured default when the callback carries no context.
func (c *Client) HandleSAMLResponse(ctx context.Context, samlResponse, relayState string) (*authtoken.AuthToken, error) {
	repositoryID := extractRepositoryIDFromRelayState(relayState)
	if repositoryID == "" {
		repositoryID = c.defaultRepository
	}

	val, err := c.backend.ConvertSAML(ctx, repositoryID, backend.SAMLConversion{
		SAMLResponse: samlResponse,
		RelayState:   relayState,
	})
	if err != nil {
		return nil, err
	}

	return c.token(val, repositoryID), nil
}

// ResponseData is the input for callers that already parsed IdP-supplied
// attributes and want them forwarded alongside the raw response.
type ResponseData struct {
	SAMLResponse string
	RelayState   string
	Attributes   map[string]string
}

// ConvertSAMLResponse is the explicit-repository variant with the richer
// payload.
func (c *Client) ConvertSAMLResponse(ctx context.Context, data ResponseData, repositoryID string) (*authtoken.AuthToken, error) {
	val, err := c.backend.ConvertSAML(ctx, repositoryID, backend.SAMLConversion{
		SAMLResponse:   data.SAMLResponse,
		RelayState:     data.RelayState,
		UserAttributes: data.Attributes,
	})
	if err != nil {
		return nil, err
	}

	return c.token(val, repositoryID), nil
}

func (c *Client) token(val *authtoken.EnvelopeValue, repositoryID string) *authtoken.AuthToken {
	return &authtoken.AuthToken{
		Token:        val.Token,
		RepositoryID: repositoryID,
		Username:     val.UserName,
		Method:       authtoken.MethodSAML,
	}
}

// InitiateLogout returns the Single Logout URL, or "" when the IdP has none
// configured; Single Logout is optional per IdP and its absence is a silent
// no-op for callers.
func (c *Client) InitiateLogout() string {
	return c.sloURL
}

func fetchIDPMetadata(ctx context.Context, cfg config.SAMLConfig) (*crewsaml.EntityDescriptor, error) {
	if cfg.IDPMetadataXML != "" {
		metadata := &crewsaml.EntityDescriptor{}
		if err := xml.Unmarshal([]byte(cfg.IDPMetadataXML), metadata); err != nil {
			return nil, fmt.Errorf("failed to parse IdP metadata XML: %w", err)
		}
		return metadata, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.IDPMetadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request returned status %d", resp.StatusCode)
	}

	metadata := &crewsaml.EntityDescriptor{}
	if err := xml.NewDecoder(resp.Body).Decode(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return metadata, nil
}
