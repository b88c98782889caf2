package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/pkg/platform/sentinel"
)

const (
	exchangeKeyPrefix = "exchange:"

	// Sorted sets of non-terminal exchange ids, scored by creation time and by
	// record horizon in unix milliseconds. Terminal transitions remove the id.
	activeByCreatedKey = "exchanges:active:created"
	activeByHorizonKey = "exchanges:active:horizon"

	// maxCASAttempts bounds optimistic retries when a concurrent writer touches the key.
	maxCASAttempts = 3

	minRecordTTL = time.Second
)

// createScript indexes and stores a new exchange in one step. Index writes come
// first so a failure never leaves a stored record the sweeper cannot find.
// Returns 1 when created and 0 when the key already exists.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
if ARGV[3] == '1' then
	redis.call('ZADD', KEYS[2], ARGV[4], ARGV[6])
	redis.call('ZADD', KEYS[3], ARGV[5], ARGV[6])
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// exchangeJSON is the serialized form stored under exchange:<id>.
type exchangeJSON struct {
	ID              string         `json:"id"`
	WorkflowID      string         `json:"workflow_id"`
	WorkflowType    string         `json:"workflow_type"`
	State           string         `json:"state"`
	Step            string         `json:"step,omitempty"`
	Challenge       string         `json:"challenge"`
	AccessToken     string         `json:"access_token"`
	OID4VP          string         `json:"oid4vp,omitempty"`
	VCAPI           string         `json:"vcapi,omitempty"`
	Variables       map[string]any `json:"variables,omitempty"`
	CreatedAt       int64          `json:"created_at"`        // Unix nano
	UpdatedAt       int64          `json:"updated_at"`        // Unix nano
	RecordExpiresAt int64          `json:"record_expires_at"` // Unix nano
}

func exchangeToJSON(e *models.Exchange) *exchangeJSON {
	return &exchangeJSON{
		ID:              e.ID,
		WorkflowID:      e.WorkflowID,
		WorkflowType:    string(e.WorkflowType),
		State:           string(e.State),
		Step:            e.Step,
		Challenge:       e.Challenge,
		AccessToken:     e.AccessToken,
		OID4VP:          e.OID4VP,
		VCAPI:           e.VCAPI,
		Variables:       e.Variables,
		CreatedAt:       e.CreatedAt.UnixNano(),
		UpdatedAt:       e.UpdatedAt.UnixNano(),
		RecordExpiresAt: e.RecordExpiresAt.UnixNano(),
	}
}

func exchangeFromJSON(j *exchangeJSON) *models.Exchange {
	return &models.Exchange{
		ID:              j.ID,
		WorkflowID:      j.WorkflowID,
		WorkflowType:    relyingparty.WorkflowType(j.WorkflowType),
		State:           models.State(j.State),
		Step:            j.Step,
		Challenge:       j.Challenge,
		AccessToken:     j.AccessToken,
		OID4VP:          j.OID4VP,
		VCAPI:           j.VCAPI,
		Variables:       j.Variables,
		CreatedAt:       time.Unix(0, j.CreatedAt).UTC(),
		UpdatedAt:       time.Unix(0, j.UpdatedAt).UTC(),
		RecordExpiresAt: time.Unix(0, j.RecordExpiresAt).UTC(),
	}
}

// RedisStore persists exchanges in Redis for deployments running several replicas.
// Keys expire at the record horizon; state changes use WATCH/MULTI.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedis constructs a Redis-backed exchange store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func exchangeKey(id string) string {
	return exchangeKeyPrefix + id
}

// recordTTL keeps an existing key TTL, falling back to the time left until the record horizon.
func (s *RedisStore) recordTTL(ctx context.Context, getter redis.Cmdable, key string, e *models.Exchange) time.Duration {
	if getter != nil {
		ttl, err := getter.PTTL(ctx, key).Result()
		if err == nil && ttl > 0 {
			return ttl
		}
	}
	if remaining := e.RecordExpiresAt.Sub(s.now()); remaining > minRecordTTL {
		return remaining
	}
	return minRecordTTL
}

func (s *RedisStore) Create(ctx context.Context, exchange *models.Exchange) error {
	if exchange == nil {
		return fmt.Errorf("exchange is required")
	}
	data, err := json.Marshal(exchangeToJSON(exchange))
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}

	key := exchangeKey(exchange.ID)
	index := "0"
	if !exchange.State.IsTerminal() {
		index = "1"
	}
	created, err := createScript.Run(ctx, s.client,
		[]string{key, activeByCreatedKey, activeByHorizonKey},
		data,
		s.recordTTL(ctx, nil, key, exchange).Milliseconds(),
		index,
		exchange.CreatedAt.UnixMilli(),
		exchange.RecordExpiresAt.UnixMilli(),
		exchange.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("exchange %s: %w", exchange.ID, sentinel.ErrAlreadyExists)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Exchange, error) {
	data, err := s.client.Get(ctx, exchangeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("exchange not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange: %w", err)
	}
	var j exchangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal exchange: %w", err)
	}
	return exchangeFromJSON(&j), nil
}

func (s *RedisStore) UpdateIfState(ctx context.Context, id string, expected []models.State, patch models.Patch) (bool, error) {
	key := exchangeKey(id)

	for range maxCASAttempts {
		var updated bool
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return sentinel.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("get exchange for update: %w", err)
			}

			var j exchangeJSON
			if err := json.Unmarshal(data, &j); err != nil {
				return fmt.Errorf("unmarshal exchange: %w", err)
			}
			exchange := exchangeFromJSON(&j)
			if !stateIn(exchange.State, expected) || !patch.Apply(exchange) {
				return nil
			}

			newData, err := json.Marshal(exchangeToJSON(exchange))
			if err != nil {
				return fmt.Errorf("marshal exchange: %w", err)
			}

			ttl := s.recordTTL(ctx, tx, key, exchange)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, newData, ttl)
				if exchange.State.IsTerminal() {
					pipe.ZRem(ctx, activeByCreatedKey, id)
					pipe.ZRem(ctx, activeByHorizonKey, id)
				}
				return nil
			})
			if err != nil {
				return err
			}
			updated = true
			return nil
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, sentinel.ErrNotFound):
			s.forget(ctx, id)
			return false, fmt.Errorf("exchange not found: %w", sentinel.ErrNotFound)
		case err != nil:
			return false, fmt.Errorf("update exchange: %w", err)
		}
		return updated, nil
	}
	return false, fmt.Errorf("update exchange %s: %w", id, sentinel.ErrConflict)
}

func (s *RedisStore) ListExpirable(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	collect := func(key string, before time.Time) error {
		by := &redis.ZRangeBy{
			Min: "-inf",
			Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
		}
		if limit > 0 {
			by.Count = int64(limit)
		}
		members, err := s.client.ZRangeByScore(ctx, key, by).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", key, err)
		}
		for _, id := range members {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		return nil
	}

	if err := collect(activeByHorizonKey, now); err != nil {
		return nil, err
	}
	if ttl > 0 {
		if err := collect(activeByCreatedKey, now.Add(-ttl)); err != nil {
			return nil, err
		}
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// forget drops index entries whose record key has already expired.
func (s *RedisStore) forget(ctx context.Context, id string) {
	_, _ = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, activeByCreatedKey, id)
		pipe.ZRem(ctx, activeByHorizonKey, id)
		return nil
	})
}
