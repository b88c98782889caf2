package workflow

import (
	"context"
	"net/url"
	"path"
	"strings"

	"verigate/internal/clients/exchanger"
	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/internal/verification"
	dErrors "verigate/pkg/domain-errors"
)

// vcapiEngine delegates the exchange to a remote VC-API exchanger. Wallets
// talk to the exchanger directly, so request and response handling is not
// served here.
type vcapiEngine struct {
	factory *Factory
	wf      *relyingparty.VCAPIWorkflow
}

func (e *vcapiEngine) Initiate(ctx context.Context, in InitiateInput) (*Initiation, error) {
	location, err := e.factory.deps.Exchanger.CreateExchange(ctx, e.wf, exchanger.CreateRequest{
		TTL: int64(in.TTL.Seconds()),
		Variables: exchanger.CreateVariables{
			Challenge: in.Challenge,
			VPR:       e.wf.VPR,
		},
	})
	if err != nil {
		return nil, err
	}

	id, err := remoteExchangeID(location)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("request_uri", strings.TrimRight(location, "/")+"/openid/client/authorization/request")

	return &Initiation{
		ExchangeID: id,
		OID4VP:     "openid4vp://?" + query.Encode(),
		VCAPI:      location,
		Variables:  map[string]any{},
	}, nil
}

// remoteExchangeID is the final path segment of the exchanger's Location.
func remoteExchangeID(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "exchanger returned an invalid Location")
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "/" || id == "." {
		return "", dErrors.New(dErrors.CodeUpstreamFailure, "exchanger Location has no exchange id")
	}
	return id, nil
}

func (e *vcapiEngine) BuildClientRequest(context.Context, *models.Exchange) (string, error) {
	return "", ErrExternallyDelegated
}

func (e *vcapiEngine) AcceptResponse(context.Context, *models.Exchange, *models.Submission) (*verification.Outcome, error) {
	return nil, ErrExternallyDelegated
}

// Status returns the remote exchange document.
func (e *vcapiEngine) Status(ctx context.Context, ex *models.Exchange) (map[string]any, error) {
	return e.factory.deps.Exchanger.GetExchange(ctx, e.wf, ex.VCAPI)
}
