// Package authrequest builds signed OID4VP authorization request objects.
package authrequest

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"verigate/internal/keys"
	"verigate/internal/relyingparty"
	"verigate/pkg/platform/clock"
)

// ContentType is the media type of a signed request object.
const ContentType = "application/oauth-authz-req+jwt"

const defaultLifetime = 15 * time.Minute

// Request is the per-exchange input to Build.
type Request struct {
	ExchangeID             string
	Challenge              string
	ResponseURI            string
	PresentationDefinition any
	ExpiresAt              time.Time
}

// KeySource returns the service-wide signing keys at call time.
type KeySource func() []relyingparty.SigningKey

// Builder signs request objects with the relying party's authorization_request key.
type Builder struct {
	did         string
	serviceKeys KeySource
	clock       clock.Clock
}

// New creates a Builder for the service reachable at baseURI.
func New(baseURI string, serviceKeys KeySource, c clock.Clock) (*Builder, error) {
	did, err := keys.DIDWeb(baseURI)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.System{}
	}
	if serviceKeys == nil {
		serviceKeys = func() []relyingparty.SigningKey { return nil }
	}
	return &Builder{did: did, serviceKeys: serviceKeys, clock: c}, nil
}

// DID is the client_id placed in request objects.
func (b *Builder) DID() string {
	return b.did
}

// Build returns the compact JWS request object for req. It fails with
// keys.ErrNoSigningKey when neither the relying party nor the service has an
// authorization_request key.
func (b *Builder) Build(_ context.Context, rp *relyingparty.RelyingParty, req Request) (string, error) {
	key, err := keys.Select(relyingparty.PurposeAuthorizationRequest, rp.SigningKeys, b.serviceKeys())
	if err != nil {
		return "", err
	}

	now := b.clock.Now()
	exp := req.ExpiresAt
	if exp.IsZero() || !exp.After(now) {
		exp = now.Add(defaultLifetime)
	}

	claims := jwt.MapClaims{
		"client_id":        b.did,
		"client_id_scheme": "did",
		"response_type":    "vp_token",
		"response_mode":    "direct_post",
		"response_uri":     req.ResponseURI,
		// Older wallets still read redirect_uri for direct_post.
		"redirect_uri":            req.ResponseURI,
		"nonce":                   req.Challenge,
		"state":                   req.ExchangeID,
		"presentation_definition": req.PresentationDefinition,
		"client_metadata":         clientMetadata(rp),
		"iat":                     now.Unix(),
		"exp":                     exp.Unix(),
	}

	signed, err := key.Sign(claims, map[string]any{
		"kid": keys.KeyID(b.did, key),
		"typ": "oauth-authz-req+jwt",
	})
	if err != nil {
		return "", fmt.Errorf("sign authorization request: %w", err)
	}
	return signed, nil
}

func clientMetadata(rp *relyingparty.RelyingParty) map[string]any {
	name := rp.Name
	if name == "" {
		name = rp.ClientID
	}
	return map[string]any{
		"client_name":                    name,
		"subject_syntax_types_supported": []string{"did:jwk", "did:key", "did:web"},
		"vp_formats": map[string]any{
			"jwt_vp": map[string]any{"alg": []string{keys.TypeES256, keys.TypeEdDSA}},
			"ldp_vp": map[string]any{"proof_type": []string{
				"Ed25519Signature2018",
				"Ed25519Signature2020",
				"JsonWebSignature2020",
			}},
		},
	}
}
