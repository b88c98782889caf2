package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "verigate/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callbackLike struct {
	RequestID string `json:"requestId"`
	Status    string `json:"requestStatus"`
	normalized bool
}

func (r *callbackLike) Normalize() {
	r.normalized = true
}

func (r *callbackLike) Validate() error {
	if r.RequestID == "" {
		return errors.New("requestId is required")
	}
	if r.Status == "unknown" {
		return dErrors.New(dErrors.CodeBadRequest, "unsupported requestStatus")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestReadRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantDesc string
	}{
		{name: "valid body", body: `{"requestId":"abc","requestStatus":"presentation_verified"}`, wantOK: true},
		{name: "malformed json", body: `{"requestId":`, wantDesc: "invalid request body"},
		{name: "empty body", body: ``, wantDesc: "request body is required"},
		{name: "plain validation error", body: `{}`, wantDesc: "requestId is required"},
		{name: "domain validation error", body: `{"requestId":"abc","requestStatus":"unknown"}`, wantDesc: "unsupported requestStatus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			got, ok := ReadRequest[callbackLike](context.Background(), rec, req, discardLogger())
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "abc", got.RequestID)
				assert.Equal(t, "presentation_verified", got.Status)
				assert.True(t, got.normalized)
				return
			}
			assert.Nil(t, got)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeErrorBody(t, rec)
			assert.Equal(t, "bad_request", body["error"])
			assert.Equal(t, tt.wantDesc, body["error_description"])
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "Exchange not found"), http.StatusNotFound, "not_found"},
		{"unknown workflow", dErrors.New(dErrors.CodeUnknownWorkflow, "Unknown workflow id"), http.StatusNotFound, "not_found"},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"), http.StatusUnauthorized, "unauthorized"},
		{"verification failed", dErrors.New(dErrors.CodeVerificationFailed, "signature_invalid"), http.StatusBadRequest, "verification_failed"},
		{"malformed", dErrors.New(dErrors.CodeMalformedSubmission, "vp_token is required"), http.StatusBadRequest, "invalid_request"},
		{"conflict", dErrors.New(dErrors.CodeConflict, "exchange is complete"), http.StatusConflict, "conflict"},
		{"upstream", dErrors.New(dErrors.CodeUpstreamFailure, "exchanger unavailable"), http.StatusBadGateway, "upstream_failure"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeErrorBody(t, rec)["error"])
		})
	}

	t.Run("internal errors hide their message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to load exchange"))
		_, has := decodeErrorBody(t, rec)["error_description"]
		assert.False(t, has)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic dGVzdDpzaGho", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, BearerToken(req), tt.header)
	}
}
