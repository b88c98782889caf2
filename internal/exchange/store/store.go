package store

import (
	"context"
	"slices"
	"time"

	"verigate/internal/exchange/models"
)

// Error contract:
// - FindByID returns sentinel.ErrNotFound (wrapped) when the exchange does not exist.
// - Create returns sentinel.ErrAlreadyExists when the id is taken.
// - UpdateIfState returns (false, nil) when the record is not in one of the
//   expected states, and sentinel.ErrNotFound when it does not exist.
// - Infrastructure failures are wrapped with context.

// Store persists exchanges. UpdateIfState is the only primitive that changes state.
type Store interface {
	Create(ctx context.Context, exchange *models.Exchange) error
	FindByID(ctx context.Context, id string) (*models.Exchange, error)
	UpdateIfState(ctx context.Context, id string, expected []models.State, patch models.Patch) (bool, error)
	// ListExpirable returns ids of non-terminal exchanges past either expiry horizon at now.
	ListExpirable(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error)
}

func stateIn(state models.State, expected []models.State) bool {
	return slices.Contains(expected, state)
}
