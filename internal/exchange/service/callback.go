package service

import (
	"context"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	"verigate/internal/platform/tracer"
	"verigate/internal/relyingparty"
	"verigate/internal/workflow"
	dErrors "verigate/pkg/domain-errors"
)

// HandleCallback applies an Entra Verified ID status callback. The exchange
// is located by the provider request id and authenticated by its access
// token, plus the derived api-key when the workflow enables callback auth.
func (s *Service) HandleCallback(ctx context.Context, accessToken, apiKey string, cb *models.CallbackRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCallback)
	defer func() { span.End(err) }()

	if cb == nil {
		return dErrors.New(dErrors.CodeBadRequest, "callback body is required")
	}
	ex, err := s.find(ctx, cb.RequestID)
	if err != nil {
		return err
	}
	rp, ok := s.registry.Lookup(ex.WorkflowID)
	if !ok {
		return errExchangeNotFound()
	}
	wf, ok := rp.Workflow.(*relyingparty.EntraWorkflow)
	if !ok {
		return errExchangeNotFound()
	}
	span.SetAttributes(tracer.String(tracer.AttrWorkflowID, wf.ID))

	if err := checkAccessToken(ex, accessToken); err != nil {
		s.logAudit(ctx, "callback_unauthorized", "exchange_id", ex.ID, "workflow_id", ex.WorkflowID)
		return err
	}
	state := callbackState(ex)
	if wf.CredentialVerificationCallbackAuthEnabled && !workflow.VerifyCallbackAPIKey(rp.ClientSecret, state, apiKey) {
		s.logAudit(ctx, "callback_unauthorized", "exchange_id", ex.ID, "workflow_id", ex.WorkflowID)
		return dErrors.New(dErrors.CodeUnauthorized, "invalid callback api key")
	}
	if cb.State != "" && cb.State != state {
		return dErrors.New(dErrors.CodeBadRequest, "callback state does not match exchange")
	}
	if err := s.checkLive(ctx, ex); err != nil {
		return err
	}

	switch cb.RequestStatus {
	case models.CallbackRequestRetrieved:
		return s.markRetrieved(ctx, ex)
	case models.CallbackPresentationVerified:
		if cb.Receipt == nil {
			return dErrors.New(dErrors.CodeMalformedSubmission, "receipt.vp_token is required")
		}
		presentation, err := workflow.NormalizeVPToken(cb.Receipt.VPToken)
		if err != nil {
			return err
		}
		return s.complete(context.WithoutCancel(ctx), ex, presentation, "entra")
	case models.CallbackPresentationError:
		return s.failFromCallback(ctx, ex, cb.Error)
	default:
		return dErrors.New(dErrors.CodeBadRequest, "unsupported requestStatus")
	}
}

func (s *Service) markRetrieved(ctx context.Context, ex *models.Exchange) error {
	ok, err := s.store.UpdateIfState(ctx, ex.ID, []models.State{models.StatePending}, models.Patch{
		State:     models.StateWaiting,
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update exchange")
	}
	if ok {
		s.incrementTransition(ex.WorkflowType, models.StateWaiting)
		s.publish(ctx, events.ExchangeWaiting, ex, models.StateWaiting, models.CallbackRequestRetrieved)
	}
	return nil
}

// failFromCallback is idempotent for repeated error callbacks.
func (s *Service) failFromCallback(ctx context.Context, ex *models.Exchange, cbErr *models.CallbackError) error {
	reason := models.CallbackPresentationError
	if cbErr != nil && cbErr.Code != "" {
		reason = cbErr.Code
	}
	ok, err := s.store.UpdateIfState(ctx, ex.ID, models.PreTerminal, models.Patch{
		State:     models.StateInvalid,
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update exchange")
	}
	if ok {
		s.incrementTransition(ex.WorkflowType, models.StateInvalid)
		s.publish(ctx, events.ExchangeInvalid, ex, models.StateInvalid, reason)
		return nil
	}
	current, err := s.find(ctx, ex.ID)
	if err != nil {
		return err
	}
	if current.State == models.StateInvalid {
		return nil
	}
	return dErrors.New(dErrors.CodeConflict, "exchange is no longer accepting responses")
}

// callbackState is the id the provider echoes back as state. Records created
// before the provider assigned an id fall back to the exchange id.
func callbackState(ex *models.Exchange) string {
	if state, ok := ex.Variables[workflow.VariableCallbackState].(string); ok && state != "" {
		return state
	}
	return ex.ID
}
