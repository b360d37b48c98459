package authtoken

// AuthMethod identifies which sign-in protocol produced a token.
type AuthMethod string

const (
	MethodPassword  AuthMethod = "password"
	MethodOIDC      AuthMethod = "oidc"
	MethodSAML      AuthMethod = "saml"
	MethodGoogle    AuthMethod = "google"
	MethodMicrosoft AuthMethod = "microsoft"
)

// AuthToken is the uniform internal session token every sign-in protocol
// converges to. It is a value object: once published to the session store it
// is only ever replaced wholesale, never mutated field by field.
type AuthToken struct {
	Token        string     `json:"token"`
	RepositoryID string     `json:"repositoryId"`
	Username     string     `json:"username"`
	Method       AuthMethod `json:"authMethod,omitempty"`
}

// Valid reports whether the token carries the fields every consumer relies
// on. RepositoryID is always set explicitly, never inferred from the token.
func (t *AuthToken) Valid() bool {
	return t != nil && t.Token != "" && t.RepositoryID != ""
}
