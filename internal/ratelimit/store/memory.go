// Package store keeps sliding-window request counters.
package store

import (
	"context"
	"math"
	"sync"
	"time"

	"verigate/internal/ratelimit/models"
	"verigate/pkg/platform/clock"
)

// InMemoryStore keeps one sliding window per key. Suitable for a single
// replica; multi-replica deployments use RedisStore.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	clock   clock.Clock
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) tryConsume(cost, limit int, now time.Time) *models.Result {
	sw.evict(now)

	if len(sw.timestamps)+cost > limit {
		resetAt := now.Add(sw.window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(sw.window)
		}
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}
	}

	for range cost {
		sw.timestamps = append(sw.timestamps, now)
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(sw.window),
	}
}

func (sw *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// NewInMemory creates an empty store reading time from c.
func NewInMemory(c clock.Clock) *InMemoryStore {
	if c == nil {
		c = clock.System{}
	}
	return &InMemoryStore{
		windows: make(map[string]*slidingWindow),
		clock:   c,
	}
}

// AllowN consumes cost slots from key's window when the budget allows it.
func (s *InMemoryStore) AllowN(_ context.Context, key string, cost, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.windows[key]
	if !ok {
		sw = &slidingWindow{window: window}
		s.windows[key] = sw
	}
	return sw.tryConsume(cost, limit, s.clock.Now()), nil
}

// Prune drops windows with no live entries. Returns how many were dropped.
func (s *InMemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	dropped := 0
	for key, sw := range s.windows {
		sw.evict(now)
		if len(sw.timestamps) == 0 {
			delete(s.windows, key)
			dropped++
		}
	}
	return dropped
}

func retryAfterSeconds(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
