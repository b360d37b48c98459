package flow

// Kind enumerates the sign-in protocols. Callback routing is decided once,
// at startup, by the dispatch table below, never re-derived from URLs at
// request time by individual components.
type Kind string

const (
	KindPassword  Kind = "password"
	KindOIDC      Kind = "oidc"
	KindSAML      Kind = "saml"
	KindGoogle    Kind = "google"
	KindMicrosoft Kind = "microsoft"
)

// Callback paths recognized on a fresh page load after a redirect flow.
const (
	PathOIDCCallback = "/auth/oidc/callback"
	PathSAMLACS      = "/auth/saml/acs"
)

// resumeTable maps a callback path to the flow that must be resumed there.
func resumeTable() map[string]Kind {
	return map[string]Kind{
		PathOIDCCallback: KindOIDC,
		PathSAMLACS:      KindSAML,
	}
}
