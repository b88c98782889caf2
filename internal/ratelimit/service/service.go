package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"verigate/internal/ratelimit/models"
)

var rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "verigate_rate_limit_rejections_total",
	Help: "Requests rejected by the per-IP rate limiter, by endpoint class",
}, []string{"class"})

// BucketStore consumes slots from a sliding window.
type BucketStore interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.Result, error)
}

// Service applies per-class budgets to client IPs.
type Service struct {
	store  BucketStore
	limits map[models.EndpointClass]models.Limit
}

// New validates limits and creates a Service. Classes absent from limits are unlimited.
func New(store BucketStore, limits map[models.EndpointClass]models.Limit) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("bucket store is required")
	}
	for class, l := range limits {
		if l.Requests <= 0 || l.Window <= 0 {
			return nil, fmt.Errorf("rate limit for %s must have positive requests and window", class)
		}
	}
	return &Service{store: store, limits: limits}, nil
}

// CheckIPRateLimit consumes one request from ip's budget for class.
func (s *Service) CheckIPRateLimit(ctx context.Context, ip string, class models.EndpointClass) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok {
		return &models.Result{Allowed: true}, nil
	}
	res, err := s.store.AllowN(ctx, models.NewIPKey(ip, class).String(), 1, limit.Requests, limit.Window)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		rejections.WithLabelValues(string(class)).Inc()
	}
	return res, nil
}
