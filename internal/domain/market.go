package domain

import "time"

// MarketTier is the liquidity bucket a market falls into, derived from total
// volume. Tiers order THIN < LOW < MEDIUM < HIGH.
type MarketTier string

const (
	TierThin   MarketTier = "THIN"   // < $10K volume
	TierLow    MarketTier = "LOW"    // $10K - $27K
	TierMedium MarketTier = "MEDIUM" // $27K - $95K
	TierHigh   MarketTier = "HIGH"   // >= $95K
)

// tierRanks orders tiers for ordinal comparison.
var tierRanks = map[MarketTier]int{
	TierThin:   0,
	TierLow:    1,
	TierMedium: 2,
	TierHigh:   3,
}

// Rank returns the ordinal position of the tier. Unknown tiers rank lowest.
func (t MarketTier) Rank() int {
	return tierRanks[t]
}

// ParseTier normalizes a tier name. Unrecognized input falls back to LOW,
// the default minimum for signal generation.
func ParseTier(s string) MarketTier {
	switch MarketTier(s) {
	case TierThin, TierLow, TierMedium, TierHigh:
		return MarketTier(s)
	default:
		return TierLow
	}
}

// Market is a point-in-time view of a Polymarket prediction market as seen by
// the signal pipeline. CurrentPrice is the primary (Yes) outcome probability;
// a nil price means the upstream did not report one.
type Market struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`

	Active          bool       `json:"active"`
	Closed          bool       `json:"closed"`
	Archived        bool       `json:"archived"`
	AcceptingOrders bool       `json:"accepting_orders"`
	EndDate         *time.Time `json:"end_date,omitempty"`

	CurrentPrice *float64 `json:"current_price,omitempty"`
	Volume       float64  `json:"volume"`
	Volume24h    float64  `json:"volume_24h"`
	Liquidity    float64  `json:"liquidity"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Tier computes the liquidity tier from total volume. The tier is never
// stored on Market itself so it can never drift from the volume it was
// derived from.
func (m Market) Tier() MarketTier {
	switch {
	case m.Volume < 10_000:
		return TierThin
	case m.Volume < 27_000:
		return TierLow
	case m.Volume < 95_000:
		return TierMedium
	default:
		return TierHigh
	}
}

// IsCurrent reports whether the market is still live and tradeable at the
// given time: not closed, not archived, accepting orders, and not past its
// end date.
func (m Market) IsCurrent(now time.Time) bool {
	if m.Closed || m.Archived || !m.AcceptingOrders {
		return false
	}
	if m.EndDate != nil && m.EndDate.Before(now) {
		return false
	}
	return true
}
