package keys

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-jose/go-jose/v3"
)

const (
	didContext     = "https://www.w3.org/ns/did/v1"
	jws2020Context = "https://w3id.org/security/suites/jws-2020/v1"
	jwkMethodType  = "JsonWebKey2020"
)

// DIDWeb derives the service DID from its public base URI. A port is
// percent-encoded as did:web requires.
func DIDWeb(baseURI string) (string, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("parse base uri: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base uri %q has no host", baseURI)
	}
	return "did:web:" + strings.ReplaceAll(u.Host, ":", "%3A"), nil
}

// KeyID is the DID URL of a key, used as the JWS kid.
func KeyID(did string, k *Key) string {
	return did + "#" + k.ID
}

// Document is a DID document listing public signing keys as JWKs.
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod"`
}

// VerificationMethod is one key entry of a DID document.
type VerificationMethod struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Controller   string           `json:"controller"`
	PublicKeyJwk *jose.JSONWebKey `json:"publicKeyJwk"`
}

// NewDocument builds the DID document for did from keys.
func NewDocument(did string, keys []*Key) *Document {
	doc := &Document{
		Context:            []string{didContext, jws2020Context},
		ID:                 did,
		VerificationMethod: make([]VerificationMethod, 0, len(keys)),
		Authentication:     []string{},
		AssertionMethod:    []string{},
	}
	for _, k := range keys {
		kid := KeyID(did, k)
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:         kid,
			Type:       jwkMethodType,
			Controller: did,
			PublicKeyJwk: &jose.JSONWebKey{
				Key:       k.Public(),
				KeyID:     kid,
				Algorithm: k.Type,
				Use:       "sig",
			},
		})
		doc.Authentication = append(doc.Authentication, kid)
		doc.AssertionMethod = append(doc.AssertionMethod, kid)
	}
	return doc
}
