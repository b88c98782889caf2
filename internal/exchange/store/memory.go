package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"verigate/internal/exchange/models"
	"verigate/pkg/platform/sentinel"
)

// InMemoryStore keeps exchanges in a map guarded by a single mutex.
// Records are cloned on the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	exchanges map[string]*models.Exchange
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		exchanges: make(map[string]*models.Exchange),
	}
}

func (s *InMemoryStore) Create(_ context.Context, exchange *models.Exchange) error {
	if exchange == nil {
		return fmt.Errorf("exchange is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exchanges[exchange.ID]; ok {
		return fmt.Errorf("exchange %s: %w", exchange.ID, sentinel.ErrAlreadyExists)
	}
	s.exchanges[exchange.ID] = exchange.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if exchange, ok := s.exchanges[id]; ok {
		return exchange.Clone(), nil
	}
	return nil, fmt.Errorf("exchange not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) UpdateIfState(_ context.Context, id string, expected []models.State, patch models.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exchange, ok := s.exchanges[id]
	if !ok {
		return false, fmt.Errorf("exchange not found: %w", sentinel.ErrNotFound)
	}
	if !stateIn(exchange.State, expected) {
		return false, nil
	}
	return patch.Apply(exchange), nil
}

func (s *InMemoryStore) ListExpirable(_ context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*models.Exchange
	for _, exchange := range s.exchanges {
		if !exchange.State.IsTerminal() && exchange.IsExpired(now, ttl) {
			candidates = append(candidates, exchange)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]string, len(candidates))
	for i, exchange := range candidates {
		ids[i] = exchange.ID
	}
	return ids, nil
}
