package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/polyedge/polyedge/internal/domain"
)

func defaultFilter() QualityFilter {
	return NewQualityFilter(7, "LOW", 0.05, 0.95)
}

func currentMarket() domain.Market {
	end := time.Now().AddDate(0, 1, 0)
	price := 0.50
	return domain.Market{
		ID:              "m1",
		Question:        "Q?",
		Active:          true,
		AcceptingOrders: true,
		EndDate:         &end,
		CurrentPrice:    &price,
		Volume:          100_000,
	}
}

func TestFilterPassesHealthyMarket(t *testing.T) {
	skip, reason := defaultFilter().ShouldSkip(currentMarket(), time.Now())
	assert.False(t, skip)
	assert.Empty(t, reason)
}

func TestFilterSkipReasons(t *testing.T) {
	now := time.Now()
	f := defaultFilter()

	m := currentMarket()
	m.Closed = true
	skip, reason := f.ShouldSkip(m, now)
	assert.True(t, skip)
	assert.Equal(t, "market is closed", reason)

	m = currentMarket()
	m.Archived = true
	_, reason = f.ShouldSkip(m, now)
	assert.Equal(t, "market is archived", reason)

	m = currentMarket()
	m.AcceptingOrders = false
	_, reason = f.ShouldSkip(m, now)
	assert.Equal(t, "market is not accepting orders", reason)

	m = currentMarket()
	past := now.Add(-time.Hour)
	m.EndDate = &past
	_, reason = f.ShouldSkip(m, now)
	assert.Equal(t, "market has already expired", reason)

	m = currentMarket()
	soon := now.Add(3 * 24 * time.Hour)
	m.EndDate = &soon
	skip, reason = f.ShouldSkip(m, now)
	assert.True(t, skip)
	assert.Contains(t, reason, "expires in 3 days")

	m = currentMarket()
	m.Volume = 5_000 // THIN
	skip, reason = f.ShouldSkip(m, now)
	assert.True(t, skip)
	assert.Contains(t, reason, "tier THIN below minimum LOW")

	m = currentMarket()
	low := 0.02
	m.CurrentPrice = &low
	skip, reason = f.ShouldSkip(m, now)
	assert.True(t, skip)
	assert.Contains(t, reason, "below minimum")

	m = currentMarket()
	high := 0.98
	m.CurrentPrice = &high
	skip, reason = f.ShouldSkip(m, now)
	assert.True(t, skip)
	assert.Contains(t, reason, "above maximum")
}

func TestFilterPriorityClosedBeatsTier(t *testing.T) {
	// A market failing several checks reports the highest-priority reason.
	m := currentMarket()
	m.Closed = true
	m.Volume = 5_000 // would also fail the tier gate
	low := 0.01
	m.CurrentPrice = &low // and the price band

	_, reason := defaultFilter().ShouldSkip(m, time.Now())
	assert.Equal(t, "market is closed", reason)
}

func TestFilterFailsOpenOnMissingData(t *testing.T) {
	f := defaultFilter()
	now := time.Now()

	// No end date: the expiry checks pass.
	m := currentMarket()
	m.EndDate = nil
	skip, _ := f.ShouldSkip(m, now)
	assert.False(t, skip)

	// No price: the band checks pass.
	m = currentMarket()
	m.CurrentPrice = nil
	skip, _ = f.ShouldSkip(m, now)
	assert.False(t, skip)
}

func TestFilterTierThresholdIsInclusive(t *testing.T) {
	f := NewQualityFilter(7, "MEDIUM", 0.05, 0.95)
	now := time.Now()

	m := currentMarket()
	m.Volume = 27_000 // exactly MEDIUM
	skip, _ := f.ShouldSkip(m, now)
	assert.False(t, skip)

	m.Volume = 26_999 // LOW
	skip, reason := f.ShouldSkip(m, now)
	assert.True(t, skip)
	assert.Contains(t, reason, "tier LOW below minimum MEDIUM")
}
