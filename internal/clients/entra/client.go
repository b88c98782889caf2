// Package entra talks to Microsoft Entra Verified ID: it obtains
// client-credentials access tokens and creates presentation requests.
package entra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"verigate/internal/platform/tracer"
	"verigate/internal/relyingparty"
	"verigate/pkg/platform/circuit"
	dErrors "verigate/pkg/domain-errors"
)

// VerifiedIDScope is the resource scope of the Verified ID request service.
const VerifiedIDScope = "3db474b9-6a0c-4840-96ac-1fceb342124f/.default"

const maxResponseBytes = 1 << 20

// PresentationRequest is the createPresentationRequest body.
type PresentationRequest struct {
	Authority            string                `json:"authority"`
	IncludeQRCode        bool                  `json:"includeQRCode"`
	IncludeReceipt       bool                  `json:"includeReceipt"`
	Registration         Registration          `json:"registration"`
	Callback             Callback              `json:"callback"`
	RequestedCredentials []RequestedCredential `json:"requestedCredentials"`
}

// Registration names the verifier shown in the wallet.
type Registration struct {
	ClientName string `json:"clientName"`
}

// Callback tells Entra where to report request progress.
type Callback struct {
	URL     string            `json:"url"`
	State   string            `json:"state"`
	Headers map[string]string `json:"headers,omitempty"`
}

// RequestedCredential is one credential type the holder must present.
type RequestedCredential struct {
	Type            string        `json:"type"`
	Purpose         string        `json:"purpose,omitempty"`
	AcceptedIssuers []string      `json:"acceptedIssuers"`
	Configuration   Configuration `json:"configuration"`
}

// Configuration carries validation switches for a requested credential.
type Configuration struct {
	Validation Validation `json:"validation"`
}

// Validation controls how Entra validates presented credentials.
type Validation struct {
	AllowRevoked         bool `json:"allowRevoked"`
	ValidateLinkedDomain bool `json:"validateLinkedDomain"`
}

// PresentationResponse is what Entra returns for a created request. Expiry
// is an epoch timestamp, in seconds or milliseconds depending on the tenant.
type PresentationResponse struct {
	RequestID string `json:"requestId"`
	URL       string `json:"url"`
	Expiry    int64  `json:"expiry"`
}

// Client creates Verified ID presentation requests.
type Client struct {
	http    *http.Client
	breaker *circuit.Breaker
	tracer  tracer.Tracer

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for token and API calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithBreaker sets the circuit breaker guarding Entra.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithTracer configures span creation around upstream calls.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates a Client with a 10s default timeout.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New("entra"),
		tracer:  tracer.NewNoop(),
		sources: make(map[string]oauth2.TokenSource),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePresentationRequest posts body to the workflow's request service.
func (c *Client) CreatePresentationRequest(ctx context.Context, wf *relyingparty.EntraWorkflow, body PresentationRequest) (_ *PresentationResponse, err error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, upstream(err, "entra unavailable")
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanEntraCall,
		tracer.String(tracer.AttrWorkflowID, wf.ID),
	)
	defer func() { span.End(err) }()

	token, err := c.tokenSource(wf).Token()
	if err != nil {
		c.breaker.RecordFailure()
		return nil, upstream(err, "entra token request failed")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal presentation request: %w", err)
	}
	endpoint := strings.TrimRight(wf.APIBaseURL, "/") + "/verifiableCredentials/createPresentationRequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build entra request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, upstream(err, "entra request timed out")
		}
		return nil, upstream(err, "entra request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, upstream(err, "read entra response")
	}
	span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.StatusCode)))

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure()
		return nil, upstream(nil, fmt.Sprintf("entra returned %d", resp.StatusCode))
	}
	c.breaker.RecordSuccess()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, upstream(nil, fmt.Sprintf("entra rejected presentation request: %d", resp.StatusCode))
	}

	var out PresentationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, upstream(err, "entra returned an invalid response")
	}
	if out.RequestID == "" || out.URL == "" {
		return nil, upstream(nil, "entra response is missing requestId or url")
	}
	return &out, nil
}

// tokenSource returns a cached, self-refreshing token source per workflow.
func (c *Client) tokenSource(wf *relyingparty.EntraWorkflow) oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src, ok := c.sources[wf.ID]; ok {
		return src
	}
	cfg := clientcredentials.Config{
		ClientID:     wf.APIClientID,
		ClientSecret: wf.APIClientSecret,
		TokenURL:     TokenURL(wf),
		Scopes:       []string{VerifiedIDScope},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	src := cfg.TokenSource(ctx)
	c.sources[wf.ID] = src
	return src
}

// TokenURL is the tenant's OAuth2 v2 token endpoint.
func TokenURL(wf *relyingparty.EntraWorkflow) string {
	return strings.TrimRight(wf.APILoginBaseURL, "/") + "/" + wf.APITenantID + "/oauth2/v2.0/token"
}

func upstream(err error, msg string) error {
	return &dErrors.Error{Code: dErrors.CodeUpstreamFailure, Message: msg, Err: err}
}
