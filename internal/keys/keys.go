// Package keys parses configured signing keys, signs request objects and
// publishes the service's did:web document.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"verigate/internal/relyingparty"
	dErrors "verigate/pkg/domain-errors"
)

// Key types accepted in configuration.
const (
	TypeES256 = "ES256"
	TypeEdDSA = "EdDSA"
)

// ErrNoSigningKey is returned when no key carries the requested purpose.
var ErrNoSigningKey = dErrors.New(dErrors.CodeNoSigningKey, "no signing key configured for authorization requests")

// Key is a parsed signing key.
type Key struct {
	ID      string
	Type    string
	Purpose []string
	private crypto.Signer
}

// Public returns the public half of the key.
func (k *Key) Public() crypto.PublicKey {
	return k.private.Public()
}

// SigningMethod returns the JWS algorithm for the key type.
func (k *Key) SigningMethod() jwt.SigningMethod {
	if k.Type == TypeEdDSA {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodES256
}

// Sign produces a compact JWS over claims with the extra header values.
func (k *Key) Sign(claims jwt.Claims, header map[string]any) (string, error) {
	token := jwt.NewWithClaims(k.SigningMethod(), claims)
	for name, value := range header {
		token.Header[name] = value
	}
	signed, err := token.SignedString(k.private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse decodes a configured key and checks that the PEM matches its declared type.
func Parse(cfg relyingparty.SigningKey) (*Key, error) {
	block, _ := pem.Decode([]byte(cfg.PrivateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("key %s: private key is not PEM encoded", cfg.ID)
	}

	var (
		parsed any
		err    error
	)
	switch block.Type {
	case "EC PRIVATE KEY":
		parsed, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("key %s: parse private key: %w", cfg.ID, err)
	}

	var signer crypto.Signer
	switch cfg.Type {
	case TypeES256:
		ec, ok := parsed.(*ecdsa.PrivateKey)
		if !ok || ec.Curve != elliptic.P256() {
			return nil, fmt.Errorf("key %s: ES256 requires a P-256 private key", cfg.ID)
		}
		signer = ec
	case TypeEdDSA:
		ed, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key %s: EdDSA requires an Ed25519 private key", cfg.ID)
		}
		signer = ed
	default:
		return nil, fmt.Errorf("key %s: unsupported key type %q", cfg.ID, cfg.Type)
	}

	return &Key{
		ID:      cfg.ID,
		Type:    cfg.Type,
		Purpose: cfg.Purpose,
		private: signer,
	}, nil
}

// ParseAll parses every key, stopping at the first failure.
func ParseAll(cfgs []relyingparty.SigningKey) ([]*Key, error) {
	parsed := make([]*Key, 0, len(cfgs))
	for _, cfg := range cfgs {
		k, err := Parse(cfg)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, k)
	}
	return parsed, nil
}

// Select returns the first key tagged with purpose, looking at the relying
// party's own keys before the service-wide keys.
func Select(purpose string, rpKeys, serviceKeys []relyingparty.SigningKey) (*Key, error) {
	for _, set := range [][]relyingparty.SigningKey{rpKeys, serviceKeys} {
		for _, cfg := range set {
			if !cfg.HasPurpose(purpose) {
				continue
			}
			k, err := Parse(cfg)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "signing key is invalid")
			}
			return k, nil
		}
	}
	return nil, ErrNoSigningKey
}

// IsNoSigningKey reports whether err means no key was available.
func IsNoSigningKey(err error) bool {
	return errors.Is(err, ErrNoSigningKey)
}
