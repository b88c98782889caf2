// Package verification checks holder presentations before an exchange completes.
//
// Format detection is structural: a JSON string holding a compact three-segment
// token takes the token path, an object carrying a proof takes the
// Data-Integrity path, and anything else is malformed. Binding checks
// (purpose, challenge, validity window) run before any cryptography.
package verification

import (
	"context"
	"encoding/json"
	"log/slog"

	"verigate/internal/platform/tracer"
	"verigate/pkg/platform/clock"
)

// Verifier is the presentation verifier.
type Verifier struct {
	proofs ProofVerifier
	clock  clock.Clock
	tracer tracer.Tracer
	logger *slog.Logger
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithClock sets the clock used for validity windows.
func WithClock(c clock.Clock) Option {
	return func(v *Verifier) {
		v.clock = c
	}
}

// WithTracer configures span creation around verification.
func WithTracer(t tracer.Tracer) Option {
	return func(v *Verifier) {
		v.tracer = t
	}
}

// WithLogger configures a logger for rejected presentations.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New creates a Verifier delegating signature checks to proofs.
func New(proofs ProofVerifier, opts ...Option) *Verifier {
	v := &Verifier{
		proofs: proofs,
		clock:  clock.System{},
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks raw against challenge and returns the normalized presentation.
// Errors carry CodeMalformedSubmission or CodeVerificationFailed; a challenge
// mismatch additionally matches ErrChallengeMismatch.
func (v *Verifier) Verify(ctx context.Context, raw json.RawMessage, challenge string) (outcome *Outcome, err error) {
	format, token, doc, err := detect(raw)
	if err != nil {
		return nil, err
	}

	ctx, span := v.tracer.Start(ctx, tracer.SpanVerifyPresentation,
		tracer.String(tracer.AttrFormat, string(format)),
	)
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrVerified, err == nil))
		span.End(err)
	}()

	var presentation *VerifiablePresentation
	switch format {
	case FormatJWT:
		presentation, err = v.verifyToken(ctx, token, challenge)
	case FormatDataIntegrity:
		presentation, err = v.verifyDataIntegrity(ctx, raw, doc, challenge)
	}
	if err != nil {
		v.logRejection(ctx, format, err)
		return nil, err
	}

	span.SetAttributes(tracer.Int64(tracer.AttrCredentials, int64(len(presentation.VerifiableCredential))))
	return &Outcome{Format: format, Presentation: presentation}, nil
}

// detect classifies raw as a compact token or a Data-Integrity document.
func detect(raw json.RawMessage) (Format, string, map[string]any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", "", nil, malformed("vp_token is not valid JSON")
	}
	switch t := value.(type) {
	case string:
		if !isCompactToken(t) {
			return "", "", nil, malformed("vp_token is not a compact token")
		}
		return FormatJWT, t, nil, nil
	case map[string]any:
		if _, ok := t["proof"]; !ok {
			return "", "", nil, malformed("vp_token has no proof")
		}
		return FormatDataIntegrity, "", t, nil
	default:
		return "", "", nil, malformed("unsupported vp_token format")
	}
}

func (v *Verifier) logRejection(ctx context.Context, format Format, err error) {
	if v.logger == nil {
		return
	}
	v.logger.InfoContext(ctx, "presentation rejected",
		"format", string(format),
		"reason", err.Error(),
	)
}
