package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"verigate/internal/platform/config"
)

var (
	poolEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verigate_redis_pool_events_total",
		Help: "Redis connection pool events by kind (hit, miss, timeout, stale)",
	}, []string{"kind"})
	poolConns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "verigate_redis_pool_conns",
		Help: "Redis connections in the pool by kind (total, idle)",
	}, []string{"kind"})
)

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
	lastStats redis.PoolStats
}

// New creates a Redis client from cfg and pings it.
// Returns nil if the URL is empty (Redis not configured).
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats publishes pool statistics as deltas since the previous call.
// The exchange sweeper calls it once per tick.
func (c *Client) RecordPoolStats() {
	stats := c.PoolStats()

	poolConns.WithLabelValues("total").Set(float64(stats.TotalConns))
	poolConns.WithLabelValues("idle").Set(float64(stats.IdleConns))

	addDelta("hit", stats.Hits, c.lastStats.Hits)
	addDelta("miss", stats.Misses, c.lastStats.Misses)
	addDelta("timeout", stats.Timeouts, c.lastStats.Timeouts)
	addDelta("stale", stats.StaleConns, c.lastStats.StaleConns)

	c.lastStats = *stats
}

func addDelta(kind string, current, previous uint32) {
	if current > previous {
		poolEvents.WithLabelValues(kind).Add(float64(current - previous))
	}
}
