package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	dErrors "verigate/pkg/domain-errors"
)

// ProofVerifier checks cryptographic proofs. Both methods accept either a
// Data-Integrity JSON document or a compact JWT.
type ProofVerifier interface {
	VerifyPresentationProof(ctx context.Context, raw []byte) error
	VerifyCredentialProof(ctx context.Context, raw []byte) error
}

// Format identifies how a presentation was secured.
type Format string

const (
	FormatDataIntegrity Format = "ldp_vp"
	FormatJWT           Format = "jwt_vp"
)

// VerifiablePresentation is the normalized form stored as the final result.
type VerifiablePresentation struct {
	Context              []any    `json:"@context"`
	Type                 []string `json:"type"`
	Holder               string   `json:"holder,omitempty"`
	VerifiableCredential []any    `json:"verifiableCredential"`
	Proof                any      `json:"proof,omitempty"`
}

// AsMap converts the presentation into generic JSON values for storage in exchange variables.
func (p *VerifiablePresentation) AsMap() (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal presentation: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal presentation: %w", err)
	}
	return out, nil
}

// Outcome is the result of a successful verification.
type Outcome struct {
	Format       Format
	Presentation *VerifiablePresentation
}

// ErrChallengeMismatch marks a presentation bound to a different challenge.
// Callers must not change exchange state when they see it.
var ErrChallengeMismatch = errors.New("challenge mismatch")

// IsChallengeMismatch reports whether err was caused by a challenge or nonce mismatch.
func IsChallengeMismatch(err error) bool {
	return errors.Is(err, ErrChallengeMismatch)
}

func malformed(msg string) error {
	return dErrors.New(dErrors.CodeMalformedSubmission, msg)
}

func rejected(reason string) error {
	return dErrors.New(dErrors.CodeVerificationFailed, reason)
}

func rejectedWith(err error, reason string) error {
	return &dErrors.Error{Code: dErrors.CodeVerificationFailed, Message: reason, Err: err}
}
