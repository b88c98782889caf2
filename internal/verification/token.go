package verification

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// isCompactToken reports whether s looks like header.payload.signature with
// base64url segments.
func isCompactToken(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			// unsecured tokens have an empty signature; never accepted
			return false
		}
		if _, err := base64.RawURLEncoding.DecodeString(part); err != nil {
			return false
		}
	}
	return true
}

// parseUnverified decodes the token claims without checking the signature.
// The signature is checked by the ProofVerifier afterwards.
func parseUnverified(token string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, nil, err
	}
	return parsed, claims, nil
}

func (v *Verifier) verifyToken(ctx context.Context, token, challenge string) (*VerifiablePresentation, error) {
	parsed, claims, err := parseUnverified(token)
	if err != nil {
		return nil, malformed("vp_token could not be decoded")
	}

	vp, ok := claims["vp"].(map[string]any)
	if !ok {
		return nil, malformed("vp claim missing")
	}
	kid, _ := parsed.Header["kid"].(string)
	iss, _ := claims["iss"].(string)
	if kid == "" && iss == "" {
		return nil, malformed("token has no verification method")
	}

	nonce, _ := claims["nonce"].(string)
	if nonce != challenge {
		return nil, rejectedWith(ErrChallengeMismatch, "challenge mismatch")
	}

	now := v.clock.Now()
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, malformed("invalid exp claim")
	}
	if exp != nil && now.After(exp.Time) {
		return nil, rejected("presentation expired")
	}
	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, malformed("invalid nbf claim")
	}
	if nbf != nil && now.Before(nbf.Time) {
		return nil, rejected("presentation not yet valid")
	}

	credentials := asList(vp["verifiableCredential"])
	for _, credential := range credentials {
		if err := v.checkCredentialWindow(credential); err != nil {
			return nil, err
		}
	}

	if err := v.proofs.VerifyPresentationProof(ctx, []byte(token)); err != nil {
		return nil, rejectedWith(err, "invalid presentation proof")
	}
	if err := v.verifyCredentialProofs(ctx, credentials); err != nil {
		return nil, err
	}

	holder, _ := vp["holder"].(string)
	if holder == "" {
		holder = iss
	}
	return &VerifiablePresentation{
		Context:              asList(vp["@context"]),
		Type:                 asStrings(vp["type"]),
		Holder:               holder,
		VerifiableCredential: credentials,
		Proof: map[string]any{
			"type": "JwtProof2020",
			"jwt":  token,
		},
	}, nil
}
