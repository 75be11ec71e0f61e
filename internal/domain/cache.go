package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// MarketState is the last observed (price, 24h volume) pair for a market,
// used by the momentum and surge rules to detect change between scans.
type MarketState struct {
	Price      float64   `json:"price"`
	Volume24h  float64   `json:"volume_24h"`
	ObservedAt time.Time `json:"observed_at"`
}

// StateCache persists the generator's previous-state memory so momentum
// detection survives process restarts. Correctness does not depend on it;
// it only warms the in-memory map.
type StateCache interface {
	SetState(ctx context.Context, marketID string, state MarketState) error
	GetState(ctx context.Context, marketID string) (MarketState, error)
}

// SignalBus publishes pipeline events (new signals, resolutions) for live
// subscribers and appends them to a durable stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
