package domain

import (
	"context"
	"time"
)

// SignalListOpts filters and paginates signal list queries. Zero-value Status
// and Type mean "any".
type SignalListOpts struct {
	Status SignalStatus
	Type   SignalType
	Limit  int
	Offset int
}

// ListOpts provides pagination for simple list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// SignalStore persists signals and their track record.
type SignalStore interface {
	CreateSignal(ctx context.Context, sig Signal) error
	// UpdateSignal applies a partial patch: only non-nil fields of upd are
	// written.
	UpdateSignal(ctx context.Context, id string, upd SignalUpdate) error
	GetSignal(ctx context.Context, id string) (Signal, error)
	ListSignals(ctx context.Context, opts SignalListOpts) ([]Signal, error)
	ListActiveSignals(ctx context.Context) ([]Signal, error)
	SignalStats(ctx context.Context) (SignalStats, error)
	SignalStatsByType(ctx context.Context) (map[SignalType]SignalStats, error)

	// Archival support: terminal signals resolved before the cutoff, and
	// batch deletion after they have been archived to cold storage.
	ListTerminalBefore(ctx context.Context, before time.Time, limit int) ([]Signal, error)
	DeleteSignals(ctx context.Context, ids []string) error
}

// MarketStore persists market metadata referenced by signals.
type MarketStore interface {
	UpsertMarket(ctx context.Context, m Market) error
	UpsertMarkets(ctx context.Context, markets []Market) error
	GetMarket(ctx context.Context, id string) (Market, error)
	ListMarkets(ctx context.Context, opts ListOpts) ([]Market, error)
}
