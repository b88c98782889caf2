package authrequest

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/keys"
	"verigate/internal/relyingparty"
	"verigate/pkg/platform/clock"
	"verigate/pkg/testutil"
)

func TestBuild(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	rpKey := testutil.AuthorizationRequestKey(t, "rp-key")
	rp := testutil.NewRelyingPartyBuilder().WithSigningKey(rpKey).Build()

	builder, err := New("https://example.com:8443", nil, clock.Fixed(now))
	require.NoError(t, err)
	assert.Equal(t, "did:web:example.com%3A8443", builder.DID())

	pd := map[string]any{"id": "pd-1", "input_descriptors": []any{}}
	signed, err := builder.Build(context.Background(), rp, Request{
		ExchangeID:             "exchange-1",
		Challenge:              "challenge-1",
		ResponseURI:            "https://example.com:8443/workflows/testworkflow/exchanges/exchange-1/openid/client/authorization/response",
		PresentationDefinition: pd,
		ExpiresAt:              now.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	parsedKey, err := keys.Parse(rpKey)
	require.NoError(t, err)
	token, err := jwt.Parse(signed, func(*jwt.Token) (any, error) {
		return parsedKey.Public(), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)

	assert.Equal(t, "did:web:example.com%3A8443#rp-key", token.Header["kid"])
	assert.Equal(t, "oauth-authz-req+jwt", token.Header["typ"])
	assert.Equal(t, "ES256", token.Header["alg"])

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "did:web:example.com%3A8443", claims["client_id"])
	assert.Equal(t, "did", claims["client_id_scheme"])
	assert.Equal(t, "vp_token", claims["response_type"])
	assert.Equal(t, "direct_post", claims["response_mode"])
	assert.Equal(t, "challenge-1", claims["nonce"])
	assert.Equal(t, "exchange-1", claims["state"])
	assert.Equal(t, claims["response_uri"], claims["redirect_uri"])
	assert.Equal(t, "pd-1", claims["presentation_definition"].(map[string]any)["id"])
	assert.Equal(t, float64(now.Unix()), claims["iat"])
	assert.Equal(t, float64(now.Add(10*time.Minute).Unix()), claims["exp"])

	metadata := claims["client_metadata"].(map[string]any)
	assert.Equal(t, "Test Relying Party", metadata["client_name"])
	assert.Contains(t, metadata["vp_formats"], "ldp_vp")
}

func TestBuildFallsBackToServiceKeys(t *testing.T) {
	serviceKey := testutil.AuthorizationRequestKey(t, "service-key")
	serviceKey.Type = keys.TypeEdDSA
	serviceKey.PrivateKeyPEM = testutil.EdKeyPEM(t)

	builder, err := New("https://example.com", func() []relyingparty.SigningKey {
		return []relyingparty.SigningKey{serviceKey}
	}, clock.System{})
	require.NoError(t, err)

	signed, err := builder.Build(context.Background(), testutil.NewRelyingPartyBuilder().Build(), Request{ExchangeID: "e"})
	require.NoError(t, err)

	token, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "did:web:example.com#service-key", token.Header["kid"])
	assert.Equal(t, "EdDSA", token.Header["alg"])

	exp, err := token.Claims.GetExpirationTime()
	require.NoError(t, err)
	iat, err := token.Claims.GetIssuedAt()
	require.NoError(t, err)
	assert.Equal(t, defaultLifetime, exp.Sub(iat.Time))
}

func TestBuildWithoutKey(t *testing.T) {
	builder, err := New("https://example.com", nil, nil)
	require.NoError(t, err)

	_, err = builder.Build(context.Background(), testutil.NewRelyingPartyBuilder().Build(), Request{ExchangeID: "e"})
	require.Error(t, err)
	assert.True(t, keys.IsNoSigningKey(err))
}

func TestNewRejectsHostlessBaseURI(t *testing.T) {
	_, err := New("not a uri", nil, nil)
	assert.Error(t, err)
}
