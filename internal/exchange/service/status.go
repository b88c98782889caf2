package service

import (
	"context"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	dErrors "verigate/pkg/domain-errors"
)

// GetExchangeStatus returns the exchange view for the bearer of its access
// token. Delegated workflows refresh variables from the remote exchanger.
func (s *Service) GetExchangeStatus(ctx context.Context, workflowID, exchangeID, accessToken string) (*models.StatusResponse, error) {
	ex, err := s.loadLive(ctx, workflowID, exchangeID)
	if err != nil {
		return nil, err
	}
	if err := checkAccessToken(ex, accessToken); err != nil {
		return nil, err
	}

	_, engine, err := s.engineFor(ex.WorkflowID)
	if err != nil {
		return nil, err
	}
	variables, err := engine.Status(ctx, ex)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "failed to load exchange status")
	}

	view := models.ToView(ex)
	if variables != nil {
		view.Variables = variables
	}
	return &models.StatusResponse{Exchange: view}, nil
}

// TouchExchange is the unauthenticated keep-alive. It only reports whether the
// exchange is still live under the workflow and reveals nothing about it.
func (s *Service) TouchExchange(ctx context.Context, workflowID, exchangeID string) error {
	_, err := s.loadLive(ctx, workflowID, exchangeID)
	return err
}

// GetAuthorizationRequest returns the signed request object for a wallet and
// moves a pending exchange to waiting.
func (s *Service) GetAuthorizationRequest(ctx context.Context, workflowID, exchangeID string) (string, error) {
	ex, err := s.loadLive(ctx, workflowID, exchangeID)
	if err != nil {
		return "", err
	}
	if ex.State.IsTerminal() {
		return "", errExchangeNotFound()
	}

	_, engine, err := s.engineFor(ex.WorkflowID)
	if err != nil {
		return "", err
	}
	requestObject, err := engine.BuildClientRequest(ctx, ex)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to build authorization request")
	}

	if ex.State == models.StatePending {
		ok, err := s.store.UpdateIfState(ctx, ex.ID, []models.State{models.StatePending}, models.Patch{
			State:     models.StateWaiting,
			UpdatedAt: s.clock.Now(),
		})
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update exchange")
		}
		// A lost race means another fetch or a response already moved it on.
		if ok {
			s.incrementTransition(ex.WorkflowType, models.StateWaiting)
			s.publish(ctx, events.ExchangeWaiting, ex, models.StateWaiting, "request object fetched")
		}
	}
	return requestObject, nil
}
