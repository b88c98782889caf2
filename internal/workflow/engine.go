// Package workflow binds exchanges to the protocol of their relying party's
// workflow: native OID4VP, a delegated VC-API exchanger, or Microsoft Entra
// Verified ID. The variant set is closed and dispatched by type switch.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"verigate/internal/clients/entra"
	"verigate/internal/clients/exchanger"
	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/internal/verification"
	"verigate/internal/workflow/authrequest"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/clock"
)

// ErrExternallyDelegated is returned by operations another system performs
// for delegated workflows. It maps to 404 at the HTTP boundary.
var ErrExternallyDelegated = dErrors.New(dErrors.CodeNotFound, "operation is handled by an external exchanger")

// Engine runs one workflow variant.
type Engine interface {
	// Initiate prepares a new exchange. It may contact an upstream service.
	Initiate(ctx context.Context, in InitiateInput) (*Initiation, error)
	// BuildClientRequest returns the signed request object a wallet fetches.
	BuildClientRequest(ctx context.Context, ex *models.Exchange) (string, error)
	// AcceptResponse verifies a wallet submission. It never writes state.
	AcceptResponse(ctx context.Context, ex *models.Exchange, sub *models.Submission) (*verification.Outcome, error)
	// Status returns the variables shown in status views.
	Status(ctx context.Context, ex *models.Exchange) (map[string]any, error)
}

// InitiateInput carries the values the manager generated for a new exchange.
type InitiateInput struct {
	ExchangeID  string
	Challenge   string
	AccessToken string
	TTL         time.Duration
	Now         time.Time
}

// Initiation is what an engine contributes to a new exchange record.
// ExchangeID may differ from the requested one when a provider assigns it.
// A non-zero ExpiresAt caps the record's expiry.
type Initiation struct {
	ExchangeID string
	OID4VP     string
	VCAPI      string
	Step       string
	Variables  map[string]any
	ExpiresAt  time.Time
}

// PresentationVerifier checks a submitted vp_token against the exchange challenge.
type PresentationVerifier interface {
	Verify(ctx context.Context, raw json.RawMessage, challenge string) (*verification.Outcome, error)
}

// RequestBuilder signs OID4VP request objects.
type RequestBuilder interface {
	DID() string
	Build(ctx context.Context, rp *relyingparty.RelyingParty, req authrequest.Request) (string, error)
}

// ExchangerClient talks to a remote VC-API exchanger.
type ExchangerClient interface {
	CreateExchange(ctx context.Context, wf *relyingparty.VCAPIWorkflow, body exchanger.CreateRequest) (string, error)
	GetExchange(ctx context.Context, wf *relyingparty.VCAPIWorkflow, location string) (map[string]any, error)
}

// EntraClient creates Verified ID presentation requests.
type EntraClient interface {
	CreatePresentationRequest(ctx context.Context, wf *relyingparty.EntraWorkflow, body entra.PresentationRequest) (*entra.PresentationResponse, error)
}

// Dependencies are the collaborators shared by every engine.
type Dependencies struct {
	Verifier  PresentationVerifier
	Requests  RequestBuilder
	Exchanger ExchangerClient
	Entra     EntraClient
}

// Factory hands out engines bound to a relying party.
type Factory struct {
	baseURI string
	deps    Dependencies
	clock   clock.Clock
	logger  *slog.Logger
}

// Option configures the Factory.
type Option func(*Factory)

// WithClock sets the clock engines use for timestamps.
func WithClock(c clock.Clock) Option {
	return func(f *Factory) {
		f.clock = c
	}
}

// WithLogger sets the logger engines use.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a Factory for the service reachable at baseURI.
func NewFactory(baseURI string, deps Dependencies, opts ...Option) (*Factory, error) {
	if _, err := url.ParseRequestURI(baseURI); err != nil {
		return nil, fmt.Errorf("invalid base uri: %w", err)
	}
	if deps.Verifier == nil || deps.Requests == nil {
		return nil, fmt.Errorf("verifier and request builder are required")
	}
	f := &Factory{
		baseURI: strings.TrimRight(baseURI, "/"),
		deps:    deps,
		clock:   clock.System{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// ForWorkflow returns the engine for rp's workflow variant.
func (f *Factory) ForWorkflow(rp *relyingparty.RelyingParty) (Engine, error) {
	switch wf := rp.Workflow.(type) {
	case *relyingparty.NativeWorkflow:
		return &nativeEngine{factory: f, rp: rp, wf: wf}, nil
	case *relyingparty.VCAPIWorkflow:
		if f.deps.Exchanger == nil {
			return nil, fmt.Errorf("workflow %s: no exchanger client configured", wf.ID)
		}
		return &vcapiEngine{factory: f, wf: wf}, nil
	case *relyingparty.EntraWorkflow:
		if f.deps.Entra == nil {
			return nil, fmt.Errorf("workflow %s: no entra client configured", wf.ID)
		}
		return &entraEngine{factory: f, rp: rp, wf: wf}, nil
	default:
		return nil, fmt.Errorf("unsupported workflow type %T", rp.Workflow)
	}
}

// ExchangeURL is the status URL of an exchange, also used as its vcapi link.
func (f *Factory) ExchangeURL(workflowID, exchangeID string) string {
	return fmt.Sprintf("%s/workflows/%s/exchanges/%s", f.baseURI, url.PathEscape(workflowID), url.PathEscape(exchangeID))
}

// CallbackURL is where Entra reports presentation progress.
func (f *Factory) CallbackURL() string {
	return f.baseURI + "/verification/callback"
}

func (f *Factory) requestURI(workflowID, exchangeID string) string {
	return f.ExchangeURL(workflowID, exchangeID) + "/openid/client/authorization/request"
}

func (f *Factory) responseURI(workflowID, exchangeID string) string {
	return f.ExchangeURL(workflowID, exchangeID) + "/openid/client/authorization/response"
}

// IsExternallyDelegated reports whether err is ErrExternallyDelegated.
func IsExternallyDelegated(err error) bool {
	return err == ErrExternallyDelegated
}
