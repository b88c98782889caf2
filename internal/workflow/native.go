package workflow

import (
	"context"
	"net/url"

	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/internal/verification"
	"verigate/internal/workflow/authrequest"
	dErrors "verigate/pkg/domain-errors"
)

// nativeEngine serves OID4VP from this service: wallets fetch a signed
// request object here and post their response back.
type nativeEngine struct {
	factory *Factory
	rp      *relyingparty.RelyingParty
	wf      *relyingparty.NativeWorkflow
}

func (e *nativeEngine) Initiate(_ context.Context, in InitiateInput) (*Initiation, error) {
	stepName, step, ok := e.wf.CurrentStep()
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "workflow has no initial step")
	}
	pd, err := presentationDefinition(step)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "workflow presentation request is invalid")
	}
	pdVar, err := definitionToVariable(pd)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("client_id", e.factory.deps.Requests.DID())
	query.Set("request_uri", e.factory.requestURI(e.wf.ID, in.ExchangeID))

	return &Initiation{
		ExchangeID: in.ExchangeID,
		OID4VP:     "openid4vp://?" + query.Encode(),
		VCAPI:      e.factory.ExchangeURL(e.wf.ID, in.ExchangeID),
		Step:       stepName,
		Variables:  map[string]any{variablePresentationDefinition: pdVar},
	}, nil
}

func (e *nativeEngine) BuildClientRequest(ctx context.Context, ex *models.Exchange) (string, error) {
	pd, ok := ex.Variables[variablePresentationDefinition]
	if !ok {
		return "", dErrors.New(dErrors.CodeInternal, "exchange has no presentation definition")
	}
	return e.factory.deps.Requests.Build(ctx, e.rp, authrequest.Request{
		ExchangeID:             ex.ID,
		Challenge:              ex.Challenge,
		ResponseURI:            e.factory.responseURI(ex.WorkflowID, ex.ID),
		PresentationDefinition: pd,
		ExpiresAt:              ex.RecordExpiresAt,
	})
}

func (e *nativeEngine) AcceptResponse(ctx context.Context, ex *models.Exchange, sub *models.Submission) (*verification.Outcome, error) {
	pd, err := definitionFromVariables(ex.Variables)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "exchange presentation definition is unreadable")
	}
	if err := validateSubmission(pd, sub); err != nil {
		e.factory.logger.InfoContext(ctx, "presentation submission rejected",
			"exchange_id", ex.ID,
			"workflow_id", ex.WorkflowID,
			"reason", err.Error(),
		)
		return nil, err
	}
	return e.factory.deps.Verifier.Verify(ctx, sub.VPToken, ex.Challenge)
}

func (e *nativeEngine) Status(_ context.Context, ex *models.Exchange) (map[string]any, error) {
	return ex.Variables, nil
}
