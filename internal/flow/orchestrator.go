// Package flow is the top-level login controller: it selects a provider,
// resumes interrupted redirect flows, publishes successful results to the
// session store, and turns every failure into a stable user-facing message.
package flow

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/federation/google"
	"github.com/cmswift/authbroker/internal/federation/microsoft"
	"github.com/cmswift/authbroker/internal/federation/oidc"
	"github.com/cmswift/authbroker/internal/federation/saml"
	"github.com/cmswift/authbroker/internal/session"
)

type Orchestrator struct {
	session *session.Store

	oidc      *oidc.Client
	saml      *saml.Client
	google    *google.Client
	microsoft *microsoft.Client

	defaultRepository string
	resume            map[string]Kind
	logger            *slog.Logger
}

// New wires the orchestrator. Clients for disabled providers are nil; the
// orchestrator turns attempts against them into typed disabled failures
// instead of panics.
func New(sess *session.Store, oidcClient *oidc.Client, samlClient *saml.Client, googleClient *google.Client, microsoftClient *microsoft.Client, defaultRepository string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		session:           sess,
		oidc:              oidcClient,
		saml:              samlClient,
		google:            googleClient,
		microsoft:         microsoftClient,
		defaultRepository: defaultRepository,
		resume:            resumeTable(),
		logger:            logger,
	}
}

// ResumeKindFor reports which flow, if any, must be resumed for a callback
// path.
func (o *Orchestrator) ResumeKindFor(path string) (Kind, bool) {
	kind, ok := o.resume[path]
	return kind, ok
}

// Login runs the password flow end to end.
func (o *Orchestrator) Login(ctx context.Context, username, password, repositoryID string) (*authtoken.AuthToken, error) {
	if repositoryID == "" {
		repositoryID = o.defaultRepository
	}
	return o.session.Login(ctx, username, password, repositoryID)
}

// Logout clears the session; never fails.
func (o *Orchestrator) Logout(ctx context.Context) {
	o.session.Logout(ctx)
}

// BeginOIDC produces the provider redirect URL for an OIDC sign-in.
func (o *Orchestrator) BeginOIDC(ctx context.Context, repositoryID string) (string, error) {
	if o.oidc == nil {
		return "", authtoken.Disabled("OIDC")
	}
	if repositoryID == "" {
		repositoryID = o.defaultRepository
	}
	return o.oidc.Initiate(ctx, repositoryID)
}

// ResumeOIDC finishes an OIDC flow on the callback page load, publishes the
// token, and arms silent renewal so a long-lived session does not quietly
// expire. The renewal loop is bound to the session store, so a logout or a
// later sign-in by another flow cancels it.
func (o *Orchestrator) ResumeOIDC(ctx context.Context, callback *url.URL) (*authtoken.AuthToken, error) {
	if o.oidc == nil {
		return nil, authtoken.Disabled("OIDC")
	}

	ext, err := o.oidc.Resume(ctx, callback)
	if err != nil {
		return nil, err
	}

	tok, err := o.oidc.Convert(ctx, ext)
	if err != nil {
		return nil, err
	}

	if err := o.session.Set(ctx, tok); err != nil {
		return nil, err
	}

	if ext.RefreshToken != "" {
		renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		o.oidc.StartRenewal(renewCtx, ext, o.session.BindRenewal(cancel))
	}

	return tok, nil
}

// BeginSAML produces the IdP redirect URL. The repository may legitimately
// be empty here; the response handler falls back to the configured default.
func (o *Orchestrator) BeginSAML(ctx context.Context, repositoryID string) (string, error) {
	if o.saml == nil {
		return "", authtoken.Disabled("SAML")
	}
	return o.saml.InitiateLogin(ctx, repositoryID)
}

// ResumeSAML finishes a SAML flow at the assertion consumer endpoint.
func (o *Orchestrator) ResumeSAML(ctx context.Context, samlResponse, relayState string) (*authtoken.AuthToken, error) {
	if o.saml == nil {
		return nil, authtoken.Disabled("SAML")
	}

	tok, err := o.saml.HandleSAMLResponse(ctx, samlResponse, relayState)
	if err != nil {
		return nil, err
	}

	if err := o.session.Set(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// SAMLLogoutURL returns the IdP Single Logout URL, or "" when none is
// configured.
func (o *Orchestrator) SAMLLogoutURL() string {
	if o.saml == nil {
		return ""
	}
	return o.saml.InitiateLogout()
}

// ConvertGoogle completes a Google popup flow with the ID token the browser
// obtained.
func (o *Orchestrator) ConvertGoogle(ctx context.Context, idToken, repositoryID string) (*authtoken.AuthToken, error) {
	if o.google == nil {
		return nil, authtoken.Disabled("Google")
	}
	return o.convertPopup(ctx, repositoryID, idToken, o.google.Convert)
}

// ConvertMicrosoft completes a Microsoft popup flow.
func (o *Orchestrator) ConvertMicrosoft(ctx context.Context, idToken, repositoryID string) (*authtoken.AuthToken, error) {
	if o.microsoft == nil {
		return nil, authtoken.Disabled("Microsoft")
	}
	return o.convertPopup(ctx, repositoryID, idToken, o.microsoft.Convert)
}

func (o *Orchestrator) convertPopup(ctx context.Context, repositoryID, idToken string, convert func(context.Context, string, string) (*authtoken.AuthToken, error)) (*authtoken.AuthToken, error) {
	if repositoryID == "" {
		repositoryID = o.defaultRepository
	}

	tok, err := convert(ctx, idToken, repositoryID)
	if err != nil {
		return nil, err
	}

	if err := o.session.Set(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// UserMessage maps a failure to the message shown on the sign-in screen.
// The UI returns to the idle state either way; nothing here is fatal.
func UserMessage(err error) string {
	switch authtoken.KindOf(err) {
	case authtoken.KindNetwork:
		return "The sign-in service could not be reached. Please try again."
	case authtoken.KindRejected:
		return "Sign-in was declined. Check your credentials and try again."
	case authtoken.KindEncoding:
		return "The sign-in request could not be prepared."
	case authtoken.KindMissingToken:
		return "The identity provider did not return a usable credential."
	case authtoken.KindDisabled:
		return "This sign-in method is not available."
	default:
		return "Sign-in failed. Please try again."
	}
}
