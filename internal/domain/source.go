package domain

import "context"

// MarketQuery parameterizes market list fetches. FilterCurrent applies the
// lifecycle+expiry filter locally regardless of what the upstream already
// filtered.
type MarketQuery struct {
	Active        *bool
	Limit         int
	Offset        int
	FilterCurrent bool
}

// MarketSource fetches market snapshots from an upstream exchange API. All
// implementations, mock and real, are behaviorally interchangeable.
type MarketSource interface {
	// GetMarket returns the market with the given ID, or ErrNotFound.
	GetMarket(ctx context.Context, id string) (Market, error)
	// GetMarketBySlug returns the market with the given slug. When
	// requireCurrent is set, a market that exists but is no longer live
	// yields ErrNotFound.
	GetMarketBySlug(ctx context.Context, slug string, requireCurrent bool) (Market, error)
	GetMarkets(ctx context.Context, q MarketQuery) ([]Market, error)
	// Available reports whether the source is currently usable (not rate
	// limited or backed off).
	Available() bool
}

// NewsSource provides aggregated news sentiment per market.
type NewsSource interface {
	GetSentimentForMarket(ctx context.Context, marketID, query string) (NewsSentiment, error)
	Available() bool
}

// SocialSource provides aggregated social mention and sentiment data per
// market.
type SocialSource interface {
	GetMentionsForMarket(ctx context.Context, marketID, query string) (SocialMention, error)
	GetSentimentForMarket(ctx context.Context, marketID, query string) (SocialSentiment, error)
	Available() bool
}
