// Package exchanger calls external VC-API exchangers on behalf of vc-api workflows.
//
// Requests carry the workflow's capability in a zcap-style
// Capability-Invocation header and, when configured, the workflow client
// secret as a bearer token.
package exchanger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"verigate/internal/platform/tracer"
	"verigate/internal/relyingparty"
	"verigate/pkg/platform/circuit"
	dErrors "verigate/pkg/domain-errors"
)

const (
	headerCapability = "Capability-Invocation"
	maxResponseBytes = 1 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CreateRequest is the body posted to <baseUrl>/exchanges.
type CreateRequest struct {
	TTL       int64           `json:"ttl"`
	Variables CreateVariables `json:"variables"`
}

// CreateVariables seeds the remote exchange.
type CreateVariables struct {
	Challenge string          `json:"challenge"`
	VPR       json.RawMessage `json:"vpr,omitempty"`
}

// Client is a capability-authorized VC-API client.
type Client struct {
	http    HTTPDoer
	breaker *circuit.Breaker
	tracer  tracer.Tracer
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

// WithBreaker sets the circuit breaker guarding the exchanger.
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
		breaker: circuit.New("exchanger"),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateExchange creates a remote exchange and returns its Location.
func (c *Client) CreateExchange(ctx context.Context, wf *relyingparty.VCAPIWorkflow, body CreateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal create exchange request: %w", err)
	}
	endpoint := strings.TrimRight(wf.BaseURL, "/") + "/exchanges"

	resp, err := c.do(ctx, wf, http.MethodPost, endpoint, "write", payload)
	if err != nil {
		return "", err
	}
	location := resp.header.Get("Location")
	if location == "" {
		return "", upstream(nil, "exchanger returned no Location header")
	}
	return location, nil
}

// GetExchange fetches the remote exchange document at location.
func (c *Client) GetExchange(ctx context.Context, wf *relyingparty.VCAPIWorkflow, location string) (map[string]any, error) {
	resp, err := c.do(ctx, wf, http.MethodGet, location, "read", nil)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(resp.body, &doc); err != nil {
		return nil, upstream(err, "exchanger returned an invalid exchange document")
	}
	return doc, nil
}

type response struct {
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, wf *relyingparty.VCAPIWorkflow, method, endpoint, action string, payload []byte) (_ *response, err error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, upstream(err, "exchanger unavailable")
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanExchangerCall,
		tracer.String(tracer.AttrWorkflowID, wf.ID),
	)
	defer func() { span.End(err) }()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build exchanger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if header := invocationHeader(wf.Capability, action); header != "" {
		req.Header.Set(headerCapability, header)
	}
	if wf.ClientSecret != "" {
		req.Header.Set("Authorization", "Bearer "+wf.ClientSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, upstream(err, "exchanger request timed out")
		}
		return nil, upstream(err, "exchanger request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, upstream(err, "read exchanger response")
	}
	span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.StatusCode)))

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure()
		return nil, upstream(nil, fmt.Sprintf("exchanger returned %d", resp.StatusCode))
	}
	c.breaker.RecordSuccess()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, upstream(nil, fmt.Sprintf("exchanger rejected request: %d", resp.StatusCode))
	}
	return &response{header: resp.Header, body: body}, nil
}

// invocationHeader encodes capability for the Capability-Invocation header.
// An empty capability yields no header.
func invocationHeader(capability json.RawMessage, action string) string {
	trimmed := bytes.TrimSpace(capability)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return ""
	}
	encoded := base64.RawURLEncoding.EncodeToString(compact.Bytes())
	return fmt.Sprintf(`zcap capability="%s",action="%s"`, encoded, action)
}

func upstream(err error, msg string) error {
	return &dErrors.Error{Code: dErrors.CodeUpstreamFailure, Message: msg, Err: err}
}
