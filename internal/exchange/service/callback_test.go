package service

import (
	"context"
	"encoding/json"

	"go.uber.org/mock/gomock"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/internal/workflow"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/testutil"
)

func entraRelyingParty(callbackAuth bool) *relyingparty.RelyingParty {
	wf := &relyingparty.EntraWorkflow{
		ID:                     testutil.TestIDs.EntraWorkflow,
		APIBaseURL:             "https://verifiedid.did.msidentity.com/v1.0",
		APILoginBaseURL:        "https://login.microsoftonline.com",
		APITenantID:            "tenant",
		APIClientID:            "client",
		APIClientSecret:        "secret",
		VerifierDID:            "did:web:verifier.example.com",
		VerifierName:           "Verifier",
		AcceptedCredentialType: "VerifiedEmployee",
	}
	wf.CredentialVerificationCallbackAuthEnabled = callbackAuth
	return testutil.NewRelyingPartyBuilder().WithWorkflow(wf).Build()
}

func entraExchange() *models.Exchange {
	return testutil.NewExchangeBuilder().
		WithID("provider-request-id").
		WithWorkflow(testutil.TestIDs.EntraWorkflow, relyingparty.WorkflowEntra).
		WithVariables(map[string]any{workflow.VariableCallbackState: "local-id"}).
		Build()
}

func (s *ServiceSuite) expectEntraLookup(rp *relyingparty.RelyingParty) {
	s.mockRegistry.EXPECT().Lookup(testutil.TestIDs.EntraWorkflow).Return(rp, true)
}

func (s *ServiceSuite) TestHandleCallback_Authentication() {
	ctx := context.Background()

	s.Run("unknown request id", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), "nope").Return(nil, sentinel.ErrNotFound)

		err := s.service.HandleCallback(ctx, "token", "", &models.CallbackRequest{
			RequestID: "nope", RequestStatus: models.CallbackRequestRetrieved,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("Exchange not found", err.Error())
	})

	s.Run("exchange of a non-entra workflow", func() {
		ex := testutil.NewExchangeBuilder().Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.mockRegistry.EXPECT().Lookup(ex.WorkflowID).Return(s.rp, true)

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackRequestRetrieved,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("wrong bearer", func() {
		ex := entraExchange()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(entraRelyingParty(false))

		err := s.service.HandleCallback(ctx, "access-wrong", "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackRequestRetrieved,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing api-key when callback auth is enabled", func() {
		ex := entraExchange()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(entraRelyingParty(true))

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackRequestRetrieved,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("api-key derived from the callback state is accepted", func() {
		ex := entraExchange()
		rp := entraRelyingParty(true)
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(rp)
		s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, []models.State{models.StatePending}, gomock.Any()).Return(true, nil)

		err := s.service.HandleCallback(ctx, ex.AccessToken, workflow.CallbackAPIKey(rp.ClientSecret, "local-id"), &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackRequestRetrieved, State: "local-id",
		})
		s.NoError(err)
	})

	s.Run("state that does not match the exchange", func() {
		ex := entraExchange()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(entraRelyingParty(false))

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackRequestRetrieved, State: "someone-else",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestHandleCallback_Transitions() {
	ctx := context.Background()
	rp := entraRelyingParty(false)

	s.Run("request_retrieved moves pending to waiting", func() {
		ex := entraExchange()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(rp)
		s.mockStore.EXPECT().
			UpdateIfState(gomock.Any(), ex.ID, []models.State{models.StatePending}, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ []models.State, patch models.Patch) (bool, error) {
				s.Equal(models.StateWaiting, patch.State)
				return true, nil
			})

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackRequestRetrieved,
		})
		s.Require().NoError(err)
		s.Equal(1, s.events.count(events.ExchangeWaiting))
	})

	s.Run("presentation_verified completes with the normalized presentation", func() {
		ex := entraExchange()
		ex.State = models.StateWaiting
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(rp)
		s.mockStore.EXPECT().
			UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ []models.State, patch models.Patch) (bool, error) {
				s.Equal(models.StateComplete, patch.State)
				s.Equal(map[string]any{"holder": "did:key:h"}, patch.Final["verifiablePresentation"])
				return true, nil
			})

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID:     ex.ID,
			RequestStatus: models.CallbackPresentationVerified,
			Receipt:       &models.CallbackReceipt{VPToken: json.RawMessage(`{"holder":"did:key:h"}`)},
		})
		s.Require().NoError(err)
		s.Equal(1, s.events.count(events.ExchangeCompleted))
	})

	s.Run("unreadable vp_token leaves the exchange untouched", func() {
		ex := entraExchange()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(rp)

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID:     ex.ID,
			RequestStatus: models.CallbackPresentationVerified,
			Receipt:       &models.CallbackReceipt{VPToken: json.RawMessage(`[1]`)},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedSubmission))
	})

	s.Run("presentation_error invalidates", func() {
		ex := entraExchange()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEntraLookup(rp)
		s.mockStore.EXPECT().
			UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ []models.State, patch models.Patch) (bool, error) {
				s.Equal(models.StateInvalid, patch.State)
				return true, nil
			})

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID:     ex.ID,
			RequestStatus: models.CallbackPresentationError,
			Error:         &models.CallbackError{Code: "badOrMissingField", Message: "bad field"},
		})
		s.Require().NoError(err)
		s.Equal(1, s.events.count(events.ExchangeInvalid))
	})

	s.Run("repeated presentation_error is idempotent", func() {
		ex := entraExchange()
		ex.State = models.StateWaiting
		invalid := entraExchange()
		invalid.State = models.StateInvalid
		gomock.InOrder(
			s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil),
			s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(invalid, nil),
		)
		s.expectEntraLookup(rp)
		s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).Return(false, nil)

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackPresentationError,
		})
		s.NoError(err)
	})

	s.Run("presentation_error after completion conflicts", func() {
		ex := entraExchange()
		complete := entraExchange()
		complete.State = models.StateComplete
		gomock.InOrder(
			s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil),
			s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(complete, nil),
		)
		s.expectEntraLookup(rp)
		s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).Return(false, nil)

		err := s.service.HandleCallback(ctx, ex.AccessToken, "", &models.CallbackRequest{
			RequestID: ex.ID, RequestStatus: models.CallbackPresentationError,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
