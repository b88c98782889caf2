package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"verigate/internal/exchange/events"
	"verigate/internal/exchange/metrics"
	"verigate/internal/exchange/models"
	"verigate/pkg/platform/clock"
	"verigate/pkg/platform/sentinel"
)

// Store exposes the expiry scan and the state CAS.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Exchange, error)
	UpdateIfState(ctx context.Context, id string, expected []models.State, patch models.Patch) (bool, error)
	ListExpirable(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Expired int
}

// Sweeper periodically moves open exchanges past either expiry horizon to
// expired. Request paths expire lazily; this keeps stored state honest for
// exchanges nobody asks about again.
type Sweeper struct {
	store       Store
	events      events.Publisher
	metrics     *metrics.Metrics
	clock       clock.Clock
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	exchangeTTL time.Duration
	onTick      func()
}

// Option configures Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithBatchSize caps how many exchanges one sweep expires.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithEvents(p events.Publisher) Option {
	return func(s *Sweeper) {
		s.events = p
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Sweeper) {
		s.clock = c
	}
}

// WithTickHook runs fn on every tick before sweeping, e.g. to record
// connection pool stats.
func WithTickHook(fn func()) Option {
	return func(s *Sweeper) {
		s.onTick = fn
	}
}

// New constructs a Sweeper. exchangeTTL is the age-based horizon applied on
// top of each record's own expiry.
func New(store Store, exchangeTTL time.Duration, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("exchange store is required")
	}
	s := &Sweeper{
		store:       store,
		clock:       clock.System{},
		logger:      slog.Default(),
		interval:    time.Minute,
		batchSize:   500,
		exchangeTTL: exchangeTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start sweeps periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.onTick != nil {
				s.onTick()
			}
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "exchange sweep failed", "error", err)
			}
			if res.Expired > 0 {
				s.logger.InfoContext(ctx, "expired stale exchanges",
					"scanned", res.Scanned,
					"expired", res.Expired,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep. Exchanges that left the open states
// between the scan and the CAS are skipped. Per-exchange failures are joined
// and returned after the whole batch has been attempted.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()
	var res SweepResult

	ids, err := s.store.ListExpirable(ctx, now, s.exchangeTTL, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list expirable exchanges: %w", err)
	}
	res.Scanned = len(ids)

	var errs []error
	for _, id := range ids {
		ok, err := s.store.UpdateIfState(ctx, id, models.PreTerminal, models.Patch{
			State:     models.StateExpired,
			UpdatedAt: now,
		})
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("expire exchange %s: %w", id, err))
			continue
		}
		if !ok {
			continue
		}
		res.Expired++
		s.publishExpired(ctx, id, now)
	}

	if s.metrics != nil && res.Expired > 0 {
		s.metrics.AddSwept(res.Expired)
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (s *Sweeper) publishExpired(ctx context.Context, id string, now time.Time) {
	if s.events == nil && s.metrics == nil {
		return
	}
	ex, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load swept exchange", "exchange_id", id, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(ex.WorkflowType), string(models.StateExpired))
	}
	if s.events != nil {
		s.events.Publish(ctx, events.Event{
			Type:         events.ExchangeExpired,
			ExchangeID:   ex.ID,
			WorkflowID:   ex.WorkflowID,
			WorkflowType: string(ex.WorkflowType),
			State:        string(models.StateExpired),
			Reason:       "swept",
			Timestamp:    now,
		})
	}
}
