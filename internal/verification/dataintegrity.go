package verification

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"verigate/internal/platform/tracer"
)

const proofPurposeAuthentication = "authentication"

func (v *Verifier) verifyDataIntegrity(ctx context.Context, raw json.RawMessage, doc map[string]any, challenge string) (*VerifiablePresentation, error) {
	types := asStrings(doc["type"])
	if !slices.Contains(types, "VerifiablePresentation") {
		return nil, malformed("not a VerifiablePresentation")
	}

	proofs := asObjects(doc["proof"])
	if len(proofs) == 0 {
		return nil, malformed("proof must be an object")
	}
	for _, proof := range proofs {
		if err := checkProofBinding(proof, challenge); err != nil {
			return nil, err
		}
	}

	credentials := asList(doc["verifiableCredential"])
	for _, credential := range credentials {
		if err := v.checkCredentialWindow(credential); err != nil {
			return nil, err
		}
	}

	if err := v.proofs.VerifyPresentationProof(ctx, raw); err != nil {
		return nil, rejectedWith(err, "invalid presentation proof")
	}
	if err := v.verifyCredentialProofs(ctx, credentials); err != nil {
		return nil, err
	}

	holder, _ := doc["holder"].(string)
	return &VerifiablePresentation{
		Context:              asList(doc["@context"]),
		Type:                 types,
		Holder:               holder,
		VerifiableCredential: credentials,
		Proof:                doc["proof"],
	}, nil
}

func checkProofBinding(proof map[string]any, challenge string) error {
	if purpose, _ := proof["proofPurpose"].(string); purpose != proofPurposeAuthentication {
		return rejected("invalid proof purpose")
	}
	if method, _ := proof["verificationMethod"].(string); method == "" {
		return malformed("proof has no verificationMethod")
	}
	if got, _ := proof["challenge"].(string); got != challenge {
		return rejectedWith(ErrChallengeMismatch, "challenge mismatch")
	}
	return nil
}

// checkCredentialWindow rejects credentials outside their validity period.
func (v *Verifier) checkCredentialWindow(credential any) error {
	now := v.clock.Now()
	switch c := credential.(type) {
	case string:
		if !isCompactToken(c) {
			return malformed("credential is not a compact token")
		}
		_, claims, err := parseUnverified(c)
		if err != nil {
			return malformed("credential could not be decoded")
		}
		exp, err := claims.GetExpirationTime()
		if err != nil {
			return malformed("invalid credential exp claim")
		}
		if exp != nil && now.After(exp.Time) {
			return rejected("credential expired")
		}
		return nil
	case map[string]any:
		for _, field := range []string{"expirationDate", "validUntil"} {
			value, ok := c[field].(string)
			if !ok || value == "" {
				continue
			}
			until, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return malformed("invalid credential " + field)
			}
			if now.After(until) {
				return rejected("credential expired")
			}
		}
		return nil
	default:
		return malformed("unsupported credential format")
	}
}

func (v *Verifier) verifyCredentialProofs(ctx context.Context, credentials []any) error {
	for _, credential := range credentials {
		var raw []byte
		switch c := credential.(type) {
		case string:
			raw = []byte(c)
		default:
			b, err := json.Marshal(c)
			if err != nil {
				return malformed("credential could not be encoded")
			}
			raw = b
		}

		spanCtx, span := v.tracer.Start(ctx, tracer.SpanVerifyCredential)
		err := v.proofs.VerifyCredentialProof(spanCtx, raw)
		span.End(err)
		if err != nil {
			return rejectedWith(err, "invalid credential proof")
		}
	}
	return nil
}

// asList normalizes a JSON value that may be a single item or an array.
func asList(value any) []any {
	switch t := value.(type) {
	case nil:
		return []any{}
	case []any:
		return t
	default:
		return []any{t}
	}
}

func asStrings(value any) []string {
	var out []string
	for _, item := range asList(value) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asObjects(value any) []map[string]any {
	var out []map[string]any
	for _, item := range asList(value) {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		out = append(out, obj)
	}
	return out
}
