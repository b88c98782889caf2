package exchanger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/relyingparty"
	"verigate/pkg/platform/circuit"
	dErrors "verigate/pkg/domain-errors"
)

func newWorkflow(baseURL string) *relyingparty.VCAPIWorkflow {
	return &relyingparty.VCAPIWorkflow{
		ID:           "vcapi-flow",
		BaseURL:      baseURL,
		ClientSecret: "exchanger-secret",
		Capability:   json.RawMessage(`{"id": "urn:zcap:root", "controller": "did:key:z6Mk"}`),
	}
}

func TestCreateExchange(t *testing.T) {
	var (
		gotBody   CreateRequest
		gotHeader http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/exchanges", r.URL.Path)
		gotHeader = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Location", "https://someexchanges.com/123")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New()
	location, err := client.CreateExchange(context.Background(), newWorkflow(srv.URL+"/"), CreateRequest{
		TTL: 900,
		Variables: CreateVariables{
			Challenge: "challenge-1",
			VPR:       json.RawMessage(`{"query":{"type":"QueryByExample"}}`),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://someexchanges.com/123", location)
	assert.Equal(t, int64(900), gotBody.TTL)
	assert.Equal(t, "challenge-1", gotBody.Variables.Challenge)
	assert.JSONEq(t, `{"query":{"type":"QueryByExample"}}`, string(gotBody.Variables.VPR))
	assert.Equal(t, "Bearer exchanger-secret", gotHeader.Get("Authorization"))

	invocation := gotHeader.Get(headerCapability)
	require.True(t, strings.HasPrefix(invocation, `zcap capability="`))
	assert.Contains(t, invocation, `action="write"`)
	encoded := strings.TrimSuffix(strings.TrimPrefix(invocation, `zcap capability="`), `",action="write"`)
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"urn:zcap:root","controller":"did:key:z6Mk"}`, string(decoded))
}

func TestCreateExchangeWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := New().CreateExchange(context.Background(), newWorkflow(srv.URL), CreateRequest{TTL: 60})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstreamFailure))
}

func TestGetExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get(headerCapability), `action="read"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"123","state":"complete","variables":{"results":{}}}`))
	}))
	defer srv.Close()

	doc, err := New().GetExchange(context.Background(), newWorkflow(srv.URL), srv.URL+"/exchanges/123")
	require.NoError(t, err)
	assert.Equal(t, "complete", doc["state"])
}

func TestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`},
		{name: "client error", status: http.StatusForbidden, body: `{}`},
		{name: "invalid document", status: http.StatusOK, body: `not-json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New().GetExchange(context.Background(), newWorkflow(srv.URL), srv.URL+"/exchanges/1")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstreamFailure))
		})
	}
}

func TestBreakerFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(WithBreaker(circuit.New("exchanger-test", circuit.WithFailureThreshold(2))))
	wf := newWorkflow(srv.URL)
	for range 2 {
		_, err := client.GetExchange(context.Background(), wf, srv.URL+"/exchanges/1")
		require.Error(t, err)
	}

	_, err := client.GetExchange(context.Background(), wf, srv.URL+"/exchanges/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, 2, calls)
}

func TestInvocationHeaderOmittedWithoutCapability(t *testing.T) {
	assert.Empty(t, invocationHeader(nil, "read"))
	assert.Empty(t, invocationHeader(json.RawMessage(`null`), "read"))
}
