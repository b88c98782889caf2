package service

import (
	"context"
	"time"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	"verigate/internal/platform/tracer"
	"verigate/internal/verification"
	"verigate/internal/workflow"
	dErrors "verigate/pkg/domain-errors"
)

// Rejection reasons recorded in metrics.
const (
	reasonChallengeMismatch = "challenge_mismatch"
	reasonMalformed         = "malformed"
	reasonVerification      = "verification_failed"
	reasonTerminal          = "terminal_state"
)

// SubmitResponse verifies a wallet's direct_post response and completes the
// exchange. Verification and the final write are not cancelled with ctx.
func (s *Service) SubmitResponse(ctx context.Context, workflowID, exchangeID string, sub *models.Submission) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSubmitResponse,
		tracer.String(tracer.AttrWorkflowID, workflowID),
	)
	defer func() { span.End(err) }()

	if sub == nil {
		return dErrors.New(dErrors.CodeMalformedSubmission, "submission is required")
	}
	ex, err := s.loadLive(ctx, workflowID, exchangeID)
	if err != nil {
		return err
	}
	switch {
	case ex.State == models.StateComplete:
		// A repeat of a response that already completed the exchange observes
		// the completion, the same as a loser of the completion race.
		s.logger.InfoContext(ctx, "exchange already complete, response not re-verified",
			"exchange_id", ex.ID,
		)
		return nil
	case ex.State.IsTerminal():
		s.incrementRejected(reasonTerminal)
		return dErrors.New(dErrors.CodeConflict, "exchange is no longer accepting responses")
	}
	_, engine, err := s.engineFor(ex.WorkflowID)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	outcome, err := engine.AcceptResponse(ctx, ex, sub)
	if err != nil {
		s.observeVerification("rejected", time.Since(started))
		return s.rejectSubmission(ctx, ex, err)
	}
	s.observeVerification("verified", time.Since(started))

	presentation, err := outcome.Presentation.AsMap()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store presentation")
	}
	return s.complete(ctx, ex, presentation, string(outcome.Format))
}

// complete writes the final result exactly once. A loser of the completion
// race re-reads and succeeds only if the winner completed the exchange.
func (s *Service) complete(ctx context.Context, ex *models.Exchange, presentation any, format string) error {
	ok, err := s.store.UpdateIfState(ctx, ex.ID, models.PreTerminal, models.Patch{
		State:     models.StateComplete,
		Final:     models.FinalResult(presentation),
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete exchange")
	}
	if !ok {
		return s.resolveLostCompletion(ctx, ex.ID)
	}
	s.incrementTransition(ex.WorkflowType, models.StateComplete)
	s.publish(ctx, events.ExchangeCompleted, ex, models.StateComplete, format)
	return nil
}

func (s *Service) resolveLostCompletion(ctx context.Context, exchangeID string) error {
	current, err := s.find(ctx, exchangeID)
	if err != nil {
		return err
	}
	switch current.State {
	case models.StateComplete:
		s.incrementConcurrentCompletion()
		s.logger.InfoContext(ctx, "exchange already completed by a concurrent response",
			"exchange_id", exchangeID,
		)
		return nil
	case models.StateExpired:
		return errExchangeNotFound()
	default:
		return dErrors.New(dErrors.CodeConflict, "exchange is no longer accepting responses")
	}
}

// rejectSubmission maps an engine failure. Only a failed verification of a
// well-formed, correctly bound presentation invalidates the exchange.
func (s *Service) rejectSubmission(ctx context.Context, ex *models.Exchange, err error) error {
	switch {
	case workflow.IsExternallyDelegated(err):
		return err
	case verification.IsChallengeMismatch(err):
		s.incrementRejected(reasonChallengeMismatch)
		return dErrors.Wrap(err, dErrors.CodeVerificationFailed, "presentation challenge does not match")
	case dErrors.HasCode(err, dErrors.CodeMalformedSubmission):
		s.incrementRejected(reasonMalformed)
		return err
	case dErrors.HasCode(err, dErrors.CodeVerificationFailed):
		s.incrementRejected(reasonVerification)
		s.invalidate(ctx, ex, err.Error())
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify presentation")
	}
}

// invalidate moves an open exchange to invalid. Losing the race leaves the
// other outcome in place; the caller still reports its own failure.
func (s *Service) invalidate(ctx context.Context, ex *models.Exchange, reason string) {
	ok, err := s.store.UpdateIfState(ctx, ex.ID, models.PreTerminal, models.Patch{
		State:     models.StateInvalid,
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate exchange", "exchange_id", ex.ID, "error", err)
		return
	}
	if ok {
		s.incrementTransition(ex.WorkflowType, models.StateInvalid)
		s.publish(ctx, events.ExchangeInvalid, ex, models.StateInvalid, reason)
	}
}
