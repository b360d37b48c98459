package saml

import "net/url"

// EncodeRelayState packs the repository context into the opaque carrier the
// IdP round-trips unmodified. An empty repository yields an empty state.
func EncodeRelayState(repositoryID string) string {
	if repositoryID == "" {
		return ""
	}
	values := url.Values{}
	values.Set("repositoryId", repositoryID)
	return values.Encode()
}

// extractRepositoryIDFromRelayState parses the RelayState as query-string
// data and returns the repository id. A missing, empty or malformed state
// yields "", never an error; the caller falls back to its default.
func extractRepositoryIDFromRelayState(relayState string) string {
	if relayState == "" {
		return ""
	}
	values, err := url.ParseQuery(relayState)
	if err != nil {
		return ""
	}
	return values.Get("repositoryId")
}
