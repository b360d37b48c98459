package authtoken

import (
	"encoding/json"
	"io"
)

// Envelope is the tagged success/failure wrapper the backend uses for every
// token-minting response.
type Envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Value   *EnvelopeValue `json:"value,omitempty"`
}

// EnvelopeValue carries the minted token and the canonical username the
// backend resolved for it.
type EnvelopeValue struct {
	Token    string `json:"token"`
	UserName string `json:"userName,omitempty"`
}

// DecodeEnvelope reads a tagged envelope from r. An unreadable or
// non-JSON body is a transport-level failure, not a rejection.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, NetworkFailure(err)
	}
	return &env, nil
}

// TokenValue returns the minted token out of a decoded envelope, enforcing
// the tagged-status contract: a non-success tag fails with the
// server-supplied message, a success tag without a token fails as a missing
// credential.
func (e *Envelope) TokenValue() (*EnvelopeValue, error) {
	if e.Status != "success" {
		return nil, Rejected(e.Message)
	}
	if e.Value == nil || e.Value.Token == "" {
		return nil, MissingToken("server response contained no token")
	}
	return e.Value, nil
}
