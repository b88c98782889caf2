// Package ldproof verifies Data-Integrity and JWT proofs with aries-framework-go.
//
// Verification methods are resolved through did:key and did:web. JSON-LD
// contexts are fetched once and cached for the lifetime of the process.
package ldproof

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hyperledger/aries-framework-go/component/models/signature/suite"
	"github.com/hyperledger/aries-framework-go/component/models/signature/suite/ed25519signature2018"
	"github.com/hyperledger/aries-framework-go/component/models/signature/suite/ed25519signature2020"
	"github.com/hyperledger/aries-framework-go/component/models/signature/suite/jsonwebsignature2020"
	"github.com/hyperledger/aries-framework-go/component/models/signature/verifier"
	"github.com/hyperledger/aries-framework-go/component/models/verifiable"
	"github.com/hyperledger/aries-framework-go/component/vdr"
	"github.com/hyperledger/aries-framework-go/component/vdr/key"
	"github.com/hyperledger/aries-framework-go/component/vdr/web"
	"github.com/piprate/json-gold/ld"
)

// Verifier implements verification.ProofVerifier.
type Verifier struct {
	keyFetcher verifiable.PublicKeyFetcher
	loader     ld.DocumentLoader
	suites     []verifier.SignatureSuite
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithPublicKeyFetcher replaces DID-based key resolution.
func WithPublicKeyFetcher(fetcher verifiable.PublicKeyFetcher) Option {
	return func(v *Verifier) {
		v.keyFetcher = fetcher
	}
}

// WithDocumentLoader replaces the caching JSON-LD loader.
func WithDocumentLoader(loader ld.DocumentLoader) Option {
	return func(v *Verifier) {
		v.loader = loader
	}
}

// New creates a Verifier. httpClient is used to fetch JSON-LD contexts.
func New(httpClient *http.Client, opts ...Option) *Verifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	registry := vdr.New(
		vdr.WithVDR(key.New()),
		vdr.WithVDR(web.New()),
	)
	v := &Verifier{
		keyFetcher: verifiable.NewVDRKeyResolver(registry).PublicKeyFetcher(),
		loader:     ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(httpClient)),
		suites: []verifier.SignatureSuite{
			ed25519signature2018.New(suite.WithVerifier(ed25519signature2018.NewPublicKeyVerifier())),
			ed25519signature2020.New(suite.WithVerifier(ed25519signature2020.NewPublicKeyVerifier())),
			jsonwebsignature2020.New(suite.WithVerifier(jsonwebsignature2020.NewPublicKeyVerifier())),
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyPresentationProof checks the holder's proof on a presentation.
// Embedded credentials are checked separately by VerifyCredentialProof.
func (v *Verifier) VerifyPresentationProof(_ context.Context, raw []byte) error {
	_, err := verifiable.ParsePresentation(raw,
		verifiable.WithPresPublicKeyFetcher(v.keyFetcher),
		verifiable.WithPresEmbeddedSignatureSuites(v.suites...),
		verifiable.WithPresJSONLDDocumentLoader(v.loader),
	)
	if err != nil {
		return fmt.Errorf("verify presentation proof: %w", err)
	}
	return nil
}

// VerifyCredentialProof checks the issuer's proof on a credential.
func (v *Verifier) VerifyCredentialProof(_ context.Context, raw []byte) error {
	_, err := verifiable.ParseCredential(raw,
		verifiable.WithPublicKeyFetcher(v.keyFetcher),
		verifiable.WithEmbeddedSignatureSuites(v.suites...),
		verifiable.WithJSONLDDocumentLoader(v.loader),
	)
	if err != nil {
		return fmt.Errorf("verify credential proof: %w", err)
	}
	return nil
}
