// Package signal implements the rule engine that turns market state and
// external sentiment into trade signals.
package signal

import (
	"fmt"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
)

// QualityFilter decides whether a market is worth evaluating at all. Checks
// run in a fixed order so the reported skip reason is deterministic; missing
// optional data (end date, price) fails open and lets the market through.
type QualityFilter struct {
	MinDaysToExpiry int
	MinTier         domain.MarketTier
	MinPrice        float64
	MaxPrice        float64
}

// NewQualityFilter builds a filter from the configured thresholds.
func NewQualityFilter(minDaysToExpiry int, minTier string, minPrice, maxPrice float64) QualityFilter {
	return QualityFilter{
		MinDaysToExpiry: minDaysToExpiry,
		MinTier:         domain.ParseTier(minTier),
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
	}
}

// ShouldSkip reports whether the market should be skipped, with a reason for
// the log line. Lifecycle checks come before quality checks: a closed market
// reports "closed" even if it would also fail the tier gate.
func (f QualityFilter) ShouldSkip(m domain.Market, now time.Time) (bool, string) {
	if m.Closed {
		return true, "market is closed"
	}
	if m.Archived {
		return true, "market is archived"
	}
	if !m.AcceptingOrders {
		return true, "market is not accepting orders"
	}

	if m.EndDate != nil {
		if m.EndDate.Before(now) {
			return true, "market has already expired"
		}
		daysToExpiry := int(m.EndDate.Sub(now).Hours() / 24)
		if daysToExpiry < f.MinDaysToExpiry {
			return true, fmt.Sprintf("market expires in %d days (min: %d)", daysToExpiry, f.MinDaysToExpiry)
		}
	}

	if tier := m.Tier(); tier.Rank() < f.MinTier.Rank() {
		return true, fmt.Sprintf("market tier %s below minimum %s", tier, f.MinTier)
	}

	if m.CurrentPrice != nil {
		p := *m.CurrentPrice
		if p < f.MinPrice {
			return true, fmt.Sprintf("price %.2f below minimum %.2f", p, f.MinPrice)
		}
		if p > f.MaxPrice {
			return true, fmt.Sprintf("price %.2f above maximum %.2f", p, f.MaxPrice)
		}
	}

	return false, ""
}
