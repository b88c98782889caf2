package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/models"
	"verigate/internal/exchange/service/mocks"
	"verigate/internal/exchange/store"
	"verigate/internal/verification"
	"verigate/internal/workflow"
	workflowmocks "verigate/internal/workflow/mocks"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/clock"
	"verigate/pkg/testutil"
)

func testSubmission(t testing.TB) *models.Submission {
	t.Helper()
	sub, err := models.NewSubmission(`{"type":["VerifiablePresentation"],"proof":{}}`,
		`{"id":"s","definition_id":"pd","descriptor_map":[{"id":"d","format":"ldp_vp","path":"$"}]}`)
	require.NoError(t, err)
	return sub
}

func verifiedOutcome() *verification.Outcome {
	return &verification.Outcome{
		Format: verification.FormatDataIntegrity,
		Presentation: &verification.VerifiablePresentation{
			Context:              []any{"https://www.w3.org/2018/credentials/v1"},
			Type:                 []string{"VerifiablePresentation"},
			Holder:               "did:key:holder",
			VerifiableCredential: []any{map[string]any{"id": "urn:uuid:1"}},
		},
	}
}

func challengeMismatch() error {
	return &dErrors.Error{
		Code:    dErrors.CodeVerificationFailed,
		Message: "challenge does not match",
		Err:     verification.ErrChallengeMismatch,
	}
}

func (s *ServiceSuite) TestSubmitResponse() {
	ctx := context.Background()
	sub := testSubmission(s.T())

	s.Run("success completes the exchange with the final result", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).Return(verifiedOutcome(), nil)
		s.mockStore.EXPECT().
			UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ []models.State, patch models.Patch) (bool, error) {
				s.Equal(models.StateComplete, patch.State)
				s.Equal(s.clock.Now(), patch.UpdatedAt)
				vp, ok := patch.Final["verifiablePresentation"].(map[string]any)
				s.Require().True(ok)
				s.Equal("did:key:holder", vp["holder"])
				return true, nil
			})

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.Require().NoError(err)
		s.Equal([]events.Type{events.ExchangeCompleted}, s.events.types())
	})

	s.Run("pending exchange may complete directly", func() {
		ex := testutil.NewExchangeBuilder().Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).Return(verifiedOutcome(), nil)
		s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).Return(true, nil)

		s.NoError(s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub))
	})

	s.Run("invalid exchange rejects without verifying", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateInvalid).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("complete exchange observes the completion without verifying or writing", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateComplete).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		published := len(s.events.types())

		s.NoError(s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub))
		s.Len(s.events.types(), published)
	})

	s.Run("expired state reads as not found", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateExpired).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("expiry wins over an open state", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
		s.clock.Set(ex.CreatedAt.Add(20 * time.Minute))
		defer s.clock.Set(testutil.BaseTime.Add(time.Minute))
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).Return(true, nil)

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSubmitResponse_Rejections() {
	ctx := context.Background()
	sub := testSubmission(s.T())

	s.Run("challenge mismatch never mutates", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).Return(nil, challengeMismatch())

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
		s.True(verification.IsChallengeMismatch(err))
	})

	s.Run("malformed submission never mutates", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).
			Return(nil, dErrors.New(dErrors.CodeMalformedSubmission, "unknown descriptor id"))

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedSubmission))
	})

	s.Run("failed verification invalidates the exchange", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).
			Return(nil, dErrors.New(dErrors.CodeVerificationFailed, "credential expired"))
		s.mockStore.EXPECT().
			UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ []models.State, patch models.Patch) (bool, error) {
				s.Equal(models.StateInvalid, patch.State)
				s.Nil(patch.Final)
				return true, nil
			})

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
		s.Equal("credential expired", err.Error())
		s.Equal(1, s.events.count(events.ExchangeInvalid))
	})

	s.Run("own failure takes precedence over a concurrent winner", func() {
		ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).
			Return(nil, dErrors.New(dErrors.CodeVerificationFailed, "signature invalid"))
		s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, gomock.Any(), gomock.Any()).Return(false, nil)

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
	})

	s.Run("delegated workflows answer not found", func() {
		ex := testutil.NewExchangeBuilder().Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).Return(nil, workflow.ErrExternallyDelegated)

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unexpected verifier failure is internal and keeps state", func() {
		ex := testutil.NewExchangeBuilder().Build()
		s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
		s.expectEngine(s.rp)
		s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).Return(nil, assert.AnError)

		err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestSubmitResponse_LostCompletionRace() {
	ctx := context.Background()
	sub := testSubmission(s.T())

	tests := []struct {
		name     string
		observed models.State
		wantCode dErrors.Code
	}{
		{name: "winner completed", observed: models.StateComplete},
		{name: "winner invalidated", observed: models.StateInvalid, wantCode: dErrors.CodeConflict},
		{name: "sweeper expired", observed: models.StateExpired, wantCode: dErrors.CodeNotFound},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
			after := testutil.NewExchangeBuilder().WithState(tt.observed).Build()
			gomock.InOrder(
				s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil),
				s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(after, nil),
			)
			s.expectEngine(s.rp)
			s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).Return(verifiedOutcome(), nil)
			s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).Return(false, nil)

			err := s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub)
			if tt.wantCode == "" {
				s.NoError(err)
				return
			}
			s.True(dErrors.HasCode(err, tt.wantCode))
		})
	}
}

func (s *ServiceSuite) TestSubmitResponse_OutlivesCancelledRequest() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := testSubmission(s.T())
	ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()

	s.mockStore.EXPECT().FindByID(gomock.Any(), ex.ID).Return(ex, nil)
	s.expectEngine(s.rp)
	s.mockEngine.EXPECT().AcceptResponse(gomock.Any(), ex, sub).
		DoAndReturn(func(ctx context.Context, _ *models.Exchange, _ *models.Submission) (*verification.Outcome, error) {
			cancel()
			s.NoError(ctx.Err())
			return verifiedOutcome(), nil
		})
	s.mockStore.EXPECT().UpdateIfState(gomock.Any(), ex.ID, models.PreTerminal, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ []models.State, _ models.Patch) (bool, error) {
			s.NoError(ctx.Err())
			return true, nil
		})

	s.NoError(s.service.SubmitResponse(ctx, ex.WorkflowID, ex.ID, sub))
}

// concurrentService wires a real in-memory store so CAS races are exercised end to end.
func concurrentService(t *testing.T, engine *workflowmocks.MockEngine, publisher *recordingPublisher) (*Service, *store.InMemoryStore, *models.Exchange) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rp := testutil.NewRelyingPartyBuilder().Build()
	registry := mocks.NewMockRegistry(ctrl)
	registry.EXPECT().Lookup(rp.Workflow.WorkflowID()).Return(rp, true).AnyTimes()
	factory := mocks.NewMockEngineFactory(ctrl)
	factory.EXPECT().ForWorkflow(rp).Return(engine, nil).AnyTimes()

	st := store.NewInMemory()
	ex := testutil.NewExchangeBuilder().WithState(models.StateWaiting).Build()
	require.NoError(t, st.Create(context.Background(), ex))

	svc, err := New(st, registry, factory,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEvents(publisher),
		WithClock(clock.Fixed(testutil.BaseTime.Add(time.Minute))),
	)
	require.NoError(t, err)
	return svc, st, ex
}

func TestSubmitResponse_ConcurrentSuccessesCompleteOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := workflowmocks.NewMockEngine(ctrl)
	engine.EXPECT().AcceptResponse(gomock.Any(), gomock.Any(), gomock.Any()).Return(verifiedOutcome(), nil).AnyTimes()
	publisher := &recordingPublisher{}
	svc, st, ex := concurrentService(t, engine, publisher)
	sub := testSubmission(t)

	result := testutil.RunConcurrent(20, func(int) error {
		return svc.SubmitResponse(context.Background(), ex.WorkflowID, ex.ID, sub)
	})

	// Late arrivals and racers that lost the CAS both observe the completion.
	assert.Equal(t, int32(20), result.Successes)
	assert.Equal(t, 1, publisher.count(events.ExchangeCompleted))

	stored, err := st.FindByID(context.Background(), ex.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateComplete, stored.State)
	vp, ok := stored.FinalPresentation()
	require.True(t, ok)
	assert.Equal(t, "did:key:holder", vp.(map[string]any)["holder"])
}

func TestSubmitResponse_RepeatedValidResponseSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := workflowmocks.NewMockEngine(ctrl)
	engine.EXPECT().AcceptResponse(gomock.Any(), gomock.Any(), gomock.Any()).Return(verifiedOutcome(), nil).Times(1)
	publisher := &recordingPublisher{}
	svc, st, ex := concurrentService(t, engine, publisher)
	sub := testSubmission(t)

	require.NoError(t, svc.SubmitResponse(context.Background(), ex.WorkflowID, ex.ID, sub))
	require.NoError(t, svc.SubmitResponse(context.Background(), ex.WorkflowID, ex.ID, sub))

	stored, err := st.FindByID(context.Background(), ex.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateComplete, stored.State)
	assert.Equal(t, 1, publisher.count(events.ExchangeCompleted))
}

func TestSubmitResponse_ConcurrentMixedOutcomesReachOneTerminalState(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := workflowmocks.NewMockEngine(ctrl)
	publisher := &recordingPublisher{}
	svc, st, ex := concurrentService(t, engine, publisher)

	good := testSubmission(t)
	bad, err := models.NewSubmission(`{"proof":{}}`, `{"id":"bad"}`)
	require.NoError(t, err)
	engine.EXPECT().AcceptResponse(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *models.Exchange, sub *models.Submission) (*verification.Outcome, error) {
			if sub == bad {
				return nil, dErrors.New(dErrors.CodeVerificationFailed, "signature invalid")
			}
			return verifiedOutcome(), nil
		}).AnyTimes()

	result := testutil.RunConcurrent(20, func(idx int) error {
		sub := good
		if idx%2 == 0 {
			sub = bad
		}
		return svc.SubmitResponse(context.Background(), ex.WorkflowID, ex.ID, sub)
	})

	assert.Equal(t, int32(20), result.Total())
	assert.Zero(t, result.Errors)
	assert.Zero(t, result.NotFounds)

	stored, err := st.FindByID(context.Background(), ex.ID)
	require.NoError(t, err)
	require.True(t, stored.State.IsTerminal())
	terminal := publisher.count(events.ExchangeCompleted) + publisher.count(events.ExchangeInvalid)
	assert.Equal(t, 1, terminal)

	if stored.State == models.StateComplete {
		assert.GreaterOrEqual(t, result.Successes, int32(1))
		_, ok := stored.FinalPresentation()
		assert.True(t, ok)
	} else {
		assert.Equal(t, models.StateInvalid, stored.State)
		assert.Zero(t, result.Successes)
		_, ok := stored.FinalPresentation()
		assert.False(t, ok)
	}
}
