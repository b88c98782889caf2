package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"

	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
)

// TestIDs provides deterministic identifiers for tests.
var TestIDs = struct {
	NativeWorkflow string
	VCAPIWorkflow  string
	EntraWorkflow  string
	Exchange1      string
	Exchange2      string
}{
	NativeWorkflow: "testworkflow",
	VCAPIWorkflow:  "vcapiworkflow",
	EntraWorkflow:  "entraworkflow",
	Exchange1:      "11111111-1111-1111-1111-111111111111",
	Exchange2:      "22222222-2222-2222-2222-222222222222",
}

// BaseTime is a fixed instant used by fixture timestamps.
var BaseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestQBE is a query-by-example presentation request for a driver's license.
const TestQBE = `{"query":{"type":"QueryByExample","credentialQuery":{"reason":"Please present your Driver's License","example":{"@context":["https://www.w3.org/2018/credentials/v1","https://w3id.org/vdl/v1","https://w3id.org/vdl/aamva/v1"],"type":["Iso18013DriversLicense"]}}}}`

// ECKeyPEM returns a fresh PKCS#8 P-256 private key.
func ECKeyPEM(tb testing.TB) string {
	tb.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("generate P-256 key: %v", err)
	}
	return encodePKCS8(tb, priv)
}

// EdKeyPEM returns a fresh PKCS#8 Ed25519 private key.
func EdKeyPEM(tb testing.TB) string {
	tb.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		tb.Fatalf("generate Ed25519 key: %v", err)
	}
	return encodePKCS8(tb, priv)
}

func encodePKCS8(tb testing.TB, key any) string {
	tb.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		tb.Fatalf("marshal key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// AuthorizationRequestKey returns an ES256 key tagged for request-object signing.
func AuthorizationRequestKey(tb testing.TB, id string) relyingparty.SigningKey {
	tb.Helper()
	return relyingparty.SigningKey{
		ID:            id,
		Type:          "ES256",
		Purpose:       []string{relyingparty.PurposeAuthorizationRequest},
		PrivateKeyPEM: ECKeyPEM(tb),
	}
}

// RelyingPartyBuilder provides a fluent interface for building test relying parties.
type RelyingPartyBuilder struct {
	rp *relyingparty.RelyingParty
}

// NewRelyingPartyBuilder creates a builder for a native workflow RP asking for the test QBE.
func NewRelyingPartyBuilder() *RelyingPartyBuilder {
	return &RelyingPartyBuilder{
		rp: &relyingparty.RelyingParty{
			ClientID:     "test",
			ClientSecret: "shhh",
			Name:         "Test Relying Party",
			RedirectURI:  "https://example.com",
			Scopes:       []relyingparty.Scope{{Name: "openid"}},
			Workflow: &relyingparty.NativeWorkflow{
				ID: TestIDs.NativeWorkflow,
				Steps: map[string]relyingparty.Step{
					"waiting": {VerifiablePresentationRequest: TestQBE},
				},
			},
		},
	}
}

func (b *RelyingPartyBuilder) WithClient(id, secret string) *RelyingPartyBuilder {
	b.rp.ClientID = id
	b.rp.ClientSecret = secret
	return b
}

func (b *RelyingPartyBuilder) WithWorkflow(wf relyingparty.Workflow) *RelyingPartyBuilder {
	b.rp.Workflow = wf
	return b
}

func (b *RelyingPartyBuilder) WithSigningKey(k relyingparty.SigningKey) *RelyingPartyBuilder {
	b.rp.SigningKeys = append(b.rp.SigningKeys, k)
	return b
}

func (b *RelyingPartyBuilder) Build() *relyingparty.RelyingParty {
	return b.rp
}

// ExchangeBuilder provides a fluent interface for building test exchanges.
type ExchangeBuilder struct {
	exchange *models.Exchange
}

// NewExchangeBuilder creates a pending native exchange created at BaseTime.
func NewExchangeBuilder() *ExchangeBuilder {
	return &ExchangeBuilder{
		exchange: &models.Exchange{
			ID:              TestIDs.Exchange1,
			WorkflowID:      TestIDs.NativeWorkflow,
			WorkflowType:    relyingparty.WorkflowNative,
			State:           models.StatePending,
			Step:            "waiting",
			Challenge:       uuid.NewString(),
			AccessToken:     "access-" + uuid.NewString(),
			Variables:       map[string]any{},
			CreatedAt:       BaseTime,
			UpdatedAt:       BaseTime,
			RecordExpiresAt: BaseTime.Add(24 * time.Hour),
		},
	}
}

func (b *ExchangeBuilder) WithID(id string) *ExchangeBuilder {
	b.exchange.ID = id
	return b
}

func (b *ExchangeBuilder) WithWorkflow(id string, typ relyingparty.WorkflowType) *ExchangeBuilder {
	b.exchange.WorkflowID = id
	b.exchange.WorkflowType = typ
	return b
}

func (b *ExchangeBuilder) WithState(state models.State) *ExchangeBuilder {
	b.exchange.State = state
	return b
}

func (b *ExchangeBuilder) WithChallenge(challenge string) *ExchangeBuilder {
	b.exchange.Challenge = challenge
	return b
}

func (b *ExchangeBuilder) WithAccessToken(token string) *ExchangeBuilder {
	b.exchange.AccessToken = token
	return b
}

func (b *ExchangeBuilder) WithVariables(vars map[string]any) *ExchangeBuilder {
	b.exchange.Variables = vars
	return b
}

func (b *ExchangeBuilder) CreatedAt(t time.Time) *ExchangeBuilder {
	b.exchange.CreatedAt = t
	b.exchange.UpdatedAt = t
	return b
}

func (b *ExchangeBuilder) ExpiresAt(t time.Time) *ExchangeBuilder {
	b.exchange.RecordExpiresAt = t
	return b
}

func (b *ExchangeBuilder) Build() *models.Exchange {
	return b.exchange
}
