package saml

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/xml"
	"time"

	"github.com/cmswift/authbroker/internal/authtoken"
)

// authnRequest is the minimal SAML 2.0 AuthnRequest document this service
// provider emits. Requests are unsigned; the backend validates the IdP's
// signed response, not ours.
type authnRequest struct {
	XMLName                     xml.Name `xml:"samlp:AuthnRequest"`
	XMLNSSAMLP                  string   `xml:"xmlns:samlp,attr"`
	XMLNSSAML                   string   `xml:"xmlns:saml,attr"`
	ID                          string   `xml:"ID,attr"`
	Version                     string   `xml:"Version,attr"`
	IssueInstant                string   `xml:"IssueInstant,attr"`
	Destination                 string   `xml:"Destination,attr"`
	ProtocolBinding             string   `xml:"ProtocolBinding,attr"`
	AssertionConsumerServiceURL string   `xml:"AssertionConsumerServiceURL,attr"`
	Issuer                      string   `xml:"saml:Issuer"`
}

// generateSAMLRequest renders the AuthnRequest and applies the
// HTTP-Redirect binding encoding: raw DEFLATE over the UTF-8 bytes, then
// standard base64. The deflate stream must carry no zlib header or trailer;
// IdPs reject anything else.
func (c *Client) generateSAMLRequest(requestID string) (string, error) {
	doc := authnRequest{
		XMLNSSAMLP:                  "urn:oasis:names:tc:SAML:2.0:protocol",
		XMLNSSAML:                   "urn:oasis:names:tc:SAML:2.0:assertion",
		ID:                          requestID,
		Version:                     "2.0",
		IssueInstant:                time.Now().UTC().Format(time.RFC3339),
		Destination:                 c.ssoURL,
		ProtocolBinding:             "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST",
		AssertionConsumerServiceURL: c.acsURL,
		Issuer:                      c.entityID,
	}

	raw, err := xml.Marshal(doc)
	if err != nil {
		return "", authtoken.EncodingFailure(err)
	}
	raw = append([]byte(xml.Header), raw...)

	var deflated bytes.Buffer
	writer, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	if err != nil {
		return "", authtoken.EncodingFailure(err)
	}
	if _, err := writer.Write(raw); err != nil {
		return "", authtoken.EncodingFailure(err)
	}
	if err := writer.Close(); err != nil {
		return "", authtoken.EncodingFailure(err)
	}

	return base64.StdEncoding.EncodeToString(deflated.Bytes()), nil
}
