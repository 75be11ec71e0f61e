package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polyedge/polyedge/internal/domain"
)

// stateTTL keeps previous-scan state long enough to survive restarts and
// multi-hour outages, but not so long that a stale baseline triggers bogus
// momentum signals after a long gap.
const stateTTL = 48 * time.Hour

// StateCache implements domain.StateCache using JSON values under
// state:{marketID}. It backs the generator's previous-state memory so price
// and volume deltas survive process restarts.
type StateCache struct {
	rdb *redis.Client
}

// NewStateCache creates a StateCache backed by the given Client.
func NewStateCache(c *Client) *StateCache {
	return &StateCache{rdb: c.Underlying()}
}

func stateKey(marketID string) string { return "state:" + marketID }

// SetState stores the last observed price and 24h volume for a market.
func (sc *StateCache) SetState(ctx context.Context, marketID string, state domain.MarketState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal state %s: %w", marketID, err)
	}
	if err := sc.rdb.Set(ctx, stateKey(marketID), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("redis: set state %s: %w", marketID, err)
	}
	return nil
}

// GetState retrieves the last observed state for a market.
// It returns domain.ErrNotFound when no state has been recorded.
func (sc *StateCache) GetState(ctx context.Context, marketID string) (domain.MarketState, error) {
	data, err := sc.rdb.Get(ctx, stateKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketState{}, domain.ErrNotFound
		}
		return domain.MarketState{}, fmt.Errorf("redis: get state %s: %w", marketID, err)
	}

	var state domain.MarketState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.MarketState{}, fmt.Errorf("redis: unmarshal state %s: %w", marketID, err)
	}
	return state, nil
}

// Compile-time interface check.
var _ domain.StateCache = (*StateCache)(nil)
