package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	platformMW "verigate/internal/platform/middleware"
	"verigate/internal/platform/privacy"
	"verigate/internal/ratelimit/models"
	"verigate/pkg/platform/httputil"
)

type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip string, class models.EndpointClass) (*models.Result, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{
		limiter: limiter,
		logger:  logger,
	}
}

// RateLimit enforces the per-IP budget of class. Limiter failures let the
// request through.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := platformMW.GetClientIP(ctx)

			result, err := m.limiter.CheckIPRateLimit(ctx, ip, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"class", class,
					"request_id", platformMW.GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"ip_prefix", privacy.AnonymizeIP(ip),
					"class", class,
					"request_id", platformMW.GetRequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// addRateLimitHeaders sets X-RateLimit-* for limited classes.
func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "Too many requests from this IP address. Please try again later.",
		RetryAfter:       result.RetryAfter,
	})
}
