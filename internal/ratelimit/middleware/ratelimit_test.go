package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	platformMW "verigate/internal/platform/middleware"
	"verigate/internal/ratelimit/models"
)

type stubLimiter struct {
	result  *models.Result
	err     error
	seenIP  string
	seenCls models.EndpointClass
}

func (s *stubLimiter) CheckIPRateLimit(_ context.Context, ip string, class models.EndpointClass) (*models.Result, error) {
	s.seenIP, s.seenCls = ip, class
	return s.result, s.err
}

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *MiddlewareSuite) serve(limiter RateLimiter) (*httptest.ResponseRecorder, bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})
	h := New(limiter, s.logger).RateLimit(models.ClassWallet)(next)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(platformMW.WithClientIP(req.Context(), "198.51.100.4"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func (s *MiddlewareSuite) TestAllowed() {
	limiter := &stubLimiter{result: &models.Result{
		Allowed: true, Limit: 10, Remaining: 9, ResetAt: time.Unix(1700000000, 0),
	}}

	rec, called := s.serve(limiter)

	s.True(called)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal("10", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("9", rec.Header().Get("X-RateLimit-Remaining"))
	s.Equal("1700000000", rec.Header().Get("X-RateLimit-Reset"))
	s.Equal("198.51.100.4", limiter.seenIP)
	s.Equal(models.ClassWallet, limiter.seenCls)
}

func (s *MiddlewareSuite) TestExceeded() {
	rec, called := s.serve(&stubLimiter{result: &models.Result{
		Allowed: false, Limit: 10, ResetAt: time.Unix(1700000000, 0), RetryAfter: 42,
	}})

	s.False(called)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("42", rec.Header().Get("Retry-After"))

	var body models.ExceededResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("rate_limit_exceeded", body.Error)
	s.Equal(42, body.RetryAfter)
}

func (s *MiddlewareSuite) TestFailsOpenOnLimiterError() {
	rec, called := s.serve(&stubLimiter{err: errors.New("redis: i/o timeout")})

	s.True(called)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
}

func (s *MiddlewareSuite) TestUnlimitedClassSetsNoHeaders() {
	rec, called := s.serve(&stubLimiter{result: &models.Result{Allowed: true}})

	s.True(called)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
}
