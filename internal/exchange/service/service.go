// Package service orchestrates exchange creation, status, wallet responses
// and provider callbacks on top of the exchange store and workflow engines.
package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/metrics"
	"verigate/internal/exchange/models"
	"verigate/internal/platform/tracer"
	"verigate/internal/relyingparty"
	"verigate/internal/workflow"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/clock"
	"verigate/pkg/platform/sentinel"
)

// Store persists exchanges.
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when no record exists
// - Create returns sentinel.ErrAlreadyExists when the id is taken
// - UpdateIfState returns (false, nil) when the record left the expected states
type Store interface {
	Create(ctx context.Context, exchange *models.Exchange) error
	FindByID(ctx context.Context, id string) (*models.Exchange, error)
	UpdateIfState(ctx context.Context, id string, expected []models.State, patch models.Patch) (bool, error)
}

// Registry resolves workflow ids to relying parties.
type Registry interface {
	Lookup(workflowID string) (*relyingparty.RelyingParty, bool)
}

// EngineFactory returns the workflow engine for a relying party.
type EngineFactory interface {
	ForWorkflow(rp *relyingparty.RelyingParty) (workflow.Engine, error)
}

// ClientCredentials are the Basic credentials a relying party presents.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

const (
	defaultExchangeTTL = 15 * time.Minute
	defaultRecordTTL   = 24 * time.Hour
	accessTokenBytes   = 32
	qrSize             = 256
)

// Service is the exchange manager.
type Service struct {
	store       Store
	registry    Registry
	engines     EngineFactory
	events      events.Publisher
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	logger      *slog.Logger
	clock       clock.Clock
	exchangeTTL time.Duration
	recordTTL   time.Duration
}

type Option func(*Service)

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithEvents sets where lifecycle events are published.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithExchangeTTL sets how long after creation an exchange stays usable.
// Zero or negative values keep the default of 15 minutes.
func WithExchangeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.exchangeTTL = ttl
		}
	}
}

// WithRecordTTL sets the absolute lifetime of an exchange record.
// Zero or negative values keep the default of 24 hours.
func WithRecordTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.recordTTL = ttl
		}
	}
}

func New(store Store, registry Registry, engines EngineFactory, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("exchange store is required")
	}
	if registry == nil {
		return nil, errors.New("relying party registry is required")
	}
	if engines == nil {
		return nil, errors.New("workflow engine factory is required")
	}
	svc := &Service{
		store:       store,
		registry:    registry,
		engines:     engines,
		tracer:      tracer.NewNoop(),
		logger:      slog.Default(),
		clock:       clock.System{},
		exchangeTTL: defaultExchangeTTL,
		recordTTL:   defaultRecordTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateExchange authenticates the relying party that owns workflowID and
// starts a new exchange for it.
func (s *Service) CreateExchange(ctx context.Context, workflowID string, creds ClientCredentials) (inv *models.Invitation, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCreateExchange,
		tracer.String(tracer.AttrWorkflowID, workflowID),
	)
	defer func() { span.End(err) }()

	rp, ok := s.registry.Lookup(workflowID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownWorkflow, "Unknown workflow id")
	}
	if !equalSecret(creds.ClientID, rp.ClientID) || !equalSecret(creds.ClientSecret, rp.ClientSecret) {
		s.logAudit(ctx, "exchange_create_unauthorized", "workflow_id", workflowID)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid client credentials")
	}
	workflowType := rp.Workflow.Type()
	span.SetAttributes(tracer.String(tracer.AttrWorkflowType, string(workflowType)))

	engine, err := s.engines.ForWorkflow(rp)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "workflow is not available")
	}

	accessToken, err := newAccessToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	now := s.clock.Now()
	challenge := uuid.NewString()

	started := time.Now()
	initiation, err := engine.Initiate(ctx, workflow.InitiateInput{
		ExchangeID:  uuid.NewString(),
		Challenge:   challenge,
		AccessToken: accessToken,
		TTL:         s.exchangeTTL,
		Now:         now,
	})
	s.observeUpstream(workflowType, time.Since(started))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "failed to initiate exchange")
	}

	qr, err := invitationQR(initiation.OID4VP)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render invitation")
	}

	expiresAt := now.Add(s.recordTTL)
	if !initiation.ExpiresAt.IsZero() && initiation.ExpiresAt.Before(expiresAt) {
		expiresAt = initiation.ExpiresAt
	}
	variables := initiation.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	ex := &models.Exchange{
		ID:              initiation.ExchangeID,
		WorkflowID:      workflowID,
		WorkflowType:    workflowType,
		State:           models.StatePending,
		Step:            initiation.Step,
		Challenge:       challenge,
		AccessToken:     accessToken,
		OID4VP:          initiation.OID4VP,
		VCAPI:           initiation.VCAPI,
		Variables:       variables,
		CreatedAt:       now,
		UpdatedAt:       now,
		RecordExpiresAt: expiresAt,
	}
	if err := s.store.Create(ctx, ex); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "exchange already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save exchange")
	}

	s.incrementCreated(workflowType)
	s.publish(ctx, events.ExchangeCreated, ex, models.StatePending, "")

	return &models.Invitation{
		ID:          ex.ID,
		WorkflowID:  workflowID,
		AccessToken: accessToken,
		VCAPI:       ex.VCAPI,
		OID4VP:      ex.OID4VP,
		QR:          qr,
	}, nil
}

// loadLive returns the exchange if it exists under workflowID and has not
// expired. An expired record that is still open is moved to expired.
func (s *Service) loadLive(ctx context.Context, workflowID, exchangeID string) (*models.Exchange, error) {
	ex, err := s.find(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if ex.WorkflowID != workflowID {
		return nil, errExchangeNotFound()
	}
	if err := s.checkLive(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *Service) find(ctx context.Context, exchangeID string) (*models.Exchange, error) {
	ex, err := s.store.FindByID(ctx, exchangeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errExchangeNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load exchange")
	}
	return ex, nil
}

// checkLive evaluates expiry before anything else looks at the state.
func (s *Service) checkLive(ctx context.Context, ex *models.Exchange) error {
	if ex.State == models.StateExpired {
		return errExchangeNotFound()
	}
	if ex.IsExpired(s.clock.Now(), s.exchangeTTL) {
		if !ex.State.IsTerminal() {
			s.expire(ctx, ex)
		}
		return errExchangeNotFound()
	}
	return nil
}

// expire is best-effort: the caller answers NotFound either way and the
// sweeper retries later.
func (s *Service) expire(ctx context.Context, ex *models.Exchange) {
	ok, err := s.store.UpdateIfState(ctx, ex.ID, models.PreTerminal, models.Patch{
		State:     models.StateExpired,
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to expire exchange", "exchange_id", ex.ID, "error", err)
		return
	}
	if ok {
		s.incrementTransition(ex.WorkflowType, models.StateExpired)
		s.publish(ctx, events.ExchangeExpired, ex, models.StateExpired, "ttl elapsed")
	}
}

func (s *Service) engineFor(workflowID string) (*relyingparty.RelyingParty, workflow.Engine, error) {
	rp, ok := s.registry.Lookup(workflowID)
	if !ok {
		return nil, nil, errExchangeNotFound()
	}
	engine, err := s.engines.ForWorkflow(rp)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "workflow is not available")
	}
	return rp, engine, nil
}

func errExchangeNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "Exchange not found")
}

func checkAccessToken(ex *models.Exchange, token string) error {
	if token == "" || !equalSecret(token, ex.AccessToken) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid access token")
	}
	return nil
}

func equalSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func newAccessToken() (string, error) {
	b := make([]byte, accessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// invitationQR renders the OID4VP link as a PNG data URL.
func invitationQR(content string) (string, error) {
	if content == "" {
		return "", errors.New("invitation has no OID4VP link")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
