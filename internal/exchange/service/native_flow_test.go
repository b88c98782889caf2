package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	"verigate/internal/exchange/store"
	"verigate/internal/keys"
	"verigate/internal/relyingparty"
	"verigate/internal/verification"
	"verigate/internal/workflow"
	"verigate/internal/workflow/authrequest"
	"verigate/pkg/platform/clock"
	"verigate/pkg/testutil"
)

// acceptingProofs passes every signature check and counts presentation checks.
type acceptingProofs struct {
	presentations atomic.Int32
}

func (p *acceptingProofs) VerifyPresentationProof(context.Context, []byte) error {
	p.presentations.Add(1)
	return nil
}

func (p *acceptingProofs) VerifyCredentialProof(context.Context, []byte) error {
	return nil
}

func TestNativeExchange_EndToEnd(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(testutil.BaseTime)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	serviceKey := testutil.AuthorizationRequestKey(t, "service-es256")
	registry, err := relyingparty.NewRegistry(
		[]*relyingparty.RelyingParty{testutil.NewRelyingPartyBuilder().Build()},
		[]relyingparty.SigningKey{serviceKey},
	)
	require.NoError(t, err)

	requests, err := authrequest.New("https://example.com", registry.ServiceKeys, clk)
	require.NoError(t, err)
	proofs := &acceptingProofs{}
	factory, err := workflow.NewFactory("https://example.com", workflow.Dependencies{
		Verifier: verification.New(proofs, verification.WithClock(clk)),
		Requests: requests,
	}, workflow.WithClock(clk), workflow.WithLogger(logger))
	require.NoError(t, err)

	st := store.NewInMemory()
	publisher := &recordingPublisher{}
	svc, err := New(st, registry, factory,
		WithLogger(logger),
		WithEvents(publisher),
		WithClock(clk),
	)
	require.NoError(t, err)

	inv, err := svc.CreateExchange(ctx, testutil.TestIDs.NativeWorkflow, ClientCredentials{ClientID: "test", ClientSecret: "shhh"})
	require.NoError(t, err)
	assert.Contains(t, inv.OID4VP, "client_id=did%3Aweb%3Aexample.com")
	assert.Equal(t, "https://example.com/workflows/testworkflow/exchanges/"+inv.ID, inv.VCAPI)

	requestObject, err := svc.GetAuthorizationRequest(ctx, testutil.TestIDs.NativeWorkflow, inv.ID)
	require.NoError(t, err)

	parsedKey, err := keys.Parse(serviceKey)
	require.NoError(t, err)
	token, err := jwt.Parse(requestObject, func(*jwt.Token) (any, error) {
		return parsedKey.Public(), nil
	}, jwt.WithTimeFunc(clk.Now))
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "did:web:example.com", claims["client_id"])
	assert.Equal(t, inv.ID, claims["state"])

	nonce, _ := claims["nonce"].(string)
	require.NotEmpty(t, nonce)
	definition := claims["presentation_definition"].(map[string]any)
	descriptors := definition["input_descriptors"].([]any)
	require.Len(t, descriptors, 1)

	vpToken, err := json.Marshal(map[string]any{
		"@context": []any{"https://www.w3.org/2018/credentials/v1"},
		"type":     []any{"VerifiablePresentation"},
		"holder":   "did:key:holder",
		"verifiableCredential": []any{map[string]any{
			"@context":          []any{"https://www.w3.org/2018/credentials/v1", "https://w3id.org/vdl/v1"},
			"type":              []any{"VerifiableCredential", "Iso18013DriversLicense"},
			"credentialSubject": map[string]any{"id": "did:key:holder"},
		}},
		"proof": map[string]any{
			"type":               "Ed25519Signature2020",
			"proofPurpose":       "authentication",
			"verificationMethod": "did:key:holder#key-1",
			"challenge":          nonce,
		},
	})
	require.NoError(t, err)
	presentationSubmission, err := json.Marshal(map[string]any{
		"id":            "submission-1",
		"definition_id": definition["id"],
		"descriptor_map": []any{map[string]any{
			"id":     descriptors[0].(map[string]any)["id"],
			"format": "ldp_vp",
			"path":   "$.verifiableCredential[0]",
		}},
	})
	require.NoError(t, err)
	sub, err := models.NewSubmission(string(vpToken), string(presentationSubmission))
	require.NoError(t, err)

	require.NoError(t, svc.SubmitResponse(ctx, testutil.TestIDs.NativeWorkflow, inv.ID, sub))

	status, err := svc.GetExchangeStatus(ctx, testutil.TestIDs.NativeWorkflow, inv.ID, inv.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.StateComplete, status.Exchange.State)

	stored, err := st.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	vp, ok := stored.FinalPresentation()
	require.True(t, ok)
	assert.Equal(t, "did:key:holder", vp.(map[string]any)["holder"])
	assert.Equal(t, int32(1), proofs.presentations.Load())
	assert.Equal(t, []events.Type{events.ExchangeCreated, events.ExchangeWaiting, events.ExchangeCompleted}, publisher.types())
}
