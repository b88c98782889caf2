package workflow

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"

	"verigate/internal/clients/entra"
	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/internal/verification"
	dErrors "verigate/pkg/domain-errors"
)

// HeaderAPIKey carries the callback key Entra echoes back when callback
// authentication is enabled.
const HeaderAPIKey = "api-key"

// VariableCallbackState holds the state value sent to the provider, which
// signs the callback api-key and differs from the provider-assigned id.
const VariableCallbackState = "callbackState"

// epochMillisThreshold separates second and millisecond epoch timestamps.
const epochMillisThreshold = 1e11

// entraEngine delegates presentation and verification to Entra Verified ID.
// Results arrive through the verification callback.
type entraEngine struct {
	factory *Factory
	rp      *relyingparty.RelyingParty
	wf      *relyingparty.EntraWorkflow
}

func (e *entraEngine) Initiate(ctx context.Context, in InitiateInput) (*Initiation, error) {
	headers := map[string]string{"Authorization": "Bearer " + in.AccessToken}
	if e.wf.CredentialVerificationCallbackAuthEnabled {
		headers[HeaderAPIKey] = CallbackAPIKey(e.rp.ClientSecret, in.ExchangeID)
	}

	resp, err := e.factory.deps.Entra.CreatePresentationRequest(ctx, e.wf, entra.PresentationRequest{
		Authority:      e.wf.VerifierDID,
		IncludeQRCode:  false,
		IncludeReceipt: true,
		Registration:   entra.Registration{ClientName: e.wf.VerifierName},
		Callback: entra.Callback{
			URL:     e.factory.CallbackURL(),
			State:   in.ExchangeID,
			Headers: headers,
		},
		RequestedCredentials: []entra.RequestedCredential{{
			Type:            e.wf.AcceptedCredentialType,
			AcceptedIssuers: []string{},
			Configuration: entra.Configuration{
				Validation: entra.Validation{ValidateLinkedDomain: true},
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	return &Initiation{
		ExchangeID: resp.RequestID,
		OID4VP:     resp.URL,
		VCAPI:      e.factory.ExchangeURL(e.wf.ID, resp.RequestID),
		Variables:  map[string]any{VariableCallbackState: in.ExchangeID},
		ExpiresAt:  ProviderExpiry(resp.Expiry),
	}, nil
}

func (e *entraEngine) BuildClientRequest(context.Context, *models.Exchange) (string, error) {
	return "", ErrExternallyDelegated
}

func (e *entraEngine) AcceptResponse(context.Context, *models.Exchange, *models.Submission) (*verification.Outcome, error) {
	return nil, ErrExternallyDelegated
}

func (e *entraEngine) Status(_ context.Context, ex *models.Exchange) (map[string]any, error) {
	return ex.Variables, nil
}

// CallbackAPIKey derives the per-exchange callback key from the relying
// party's client secret.
func CallbackAPIKey(secret, exchangeID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(exchangeID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackAPIKey compares key with the expected callback key in constant time.
func VerifyCallbackAPIKey(secret, exchangeID, key string) bool {
	expected := CallbackAPIKey(secret, exchangeID)
	return hmac.Equal([]byte(expected), []byte(key))
}

// ProviderExpiry converts an epoch timestamp in seconds or milliseconds. Zero
// yields the zero time.
func ProviderExpiry(epoch int64) time.Time {
	switch {
	case epoch <= 0:
		return time.Time{}
	case epoch > epochMillisThreshold:
		return time.UnixMilli(epoch).UTC()
	default:
		return time.Unix(epoch, 0).UTC()
	}
}

// NormalizeVPToken turns a callback receipt vp_token into the stored
// presentation. Objects are kept as they are. A compact token, possibly
// wrapped across lines, is reduced to its "vp" claim, and embedded
// credential tokens are replaced by their "vc" claims.
func NormalizeVPToken(raw json.RawMessage) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, dErrors.New(dErrors.CodeMalformedSubmission, "vp_token is not valid JSON")
	}
	switch t := value.(type) {
	case map[string]any:
		return t, nil
	case string:
		vp, err := claimOf(t, "vp")
		if err != nil {
			return nil, err
		}
		if creds, ok := vp["verifiableCredential"].([]any); ok {
			for i, c := range creds {
				token, ok := c.(string)
				if !ok {
					continue
				}
				if vc, err := claimOf(token, "vc"); err == nil {
					creds[i] = vc
				}
			}
		}
		return vp, nil
	default:
		return nil, dErrors.New(dErrors.CodeMalformedSubmission, "unsupported vp_token format")
	}
}

func claimOf(token, claim string) (map[string]any, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, token)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(compact, claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedSubmission, "vp_token is not a compact token")
	}
	value, ok := claims[claim].(map[string]any)
	if !ok {
		return nil, dErrors.New(dErrors.CodeMalformedSubmission, "vp_token has no "+claim+" claim")
	}
	return value, nil
}
