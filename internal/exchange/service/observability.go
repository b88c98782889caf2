package service

import (
	"context"
	"time"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	"verigate/internal/platform/middleware"
	"verigate/internal/relyingparty"
)

// Observability helpers for logging, events, and metrics.
// These methods are on *Service to access logger, events, and metrics.

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func (s *Service) publish(ctx context.Context, typ events.Type, ex *models.Exchange, state models.State, reason string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{
		Type:         typ,
		ExchangeID:   ex.ID,
		WorkflowID:   ex.WorkflowID,
		WorkflowType: string(ex.WorkflowType),
		State:        string(state),
		Reason:       reason,
		Timestamp:    s.clock.Now(),
	})
}

func (s *Service) incrementCreated(workflowType relyingparty.WorkflowType) {
	if s.metrics != nil {
		s.metrics.IncrementCreated(string(workflowType))
	}
}

func (s *Service) incrementTransition(workflowType relyingparty.WorkflowType, state models.State) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(workflowType), string(state))
	}
}

func (s *Service) incrementRejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
}

func (s *Service) incrementConcurrentCompletion() {
	if s.metrics != nil {
		s.metrics.IncrementConcurrentCompletion()
	}
}

func (s *Service) observeVerification(outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveVerification(outcome, d)
	}
}

func (s *Service) observeUpstream(workflowType relyingparty.WorkflowType, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveUpstream(string(workflowType), d)
	}
}
