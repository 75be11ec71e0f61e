package polymarket

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
)

// MockSource serves deterministic market fixtures for development and tests,
// so the scanner can run end to end without touching the Gamma API.
type MockSource struct {
	markets map[string]domain.Market // keyed by ID
	bySlug  map[string]string        // slug -> ID
}

var _ domain.MarketSource = (*MockSource)(nil)

// NewMockSource returns a MockSource pre-loaded with a handful of plausible
// markets spanning the volume tiers.
func NewMockSource() *MockSource {
	end := time.Now().AddDate(0, 2, 0).Truncate(time.Hour)
	nearEnd := time.Now().AddDate(0, 0, 3).Truncate(time.Hour)

	fixtures := []domain.Market{
		{
			ID:              "mock-1001",
			Question:        "Will the Republican candidate win the 2028 presidential election?",
			Slug:            "mock-election-2028",
			Description:     "Resolves YES if the Republican nominee wins the 2028 US presidential election.",
			Active:          true,
			AcceptingOrders: true,
			EndDate:         &end,
			CurrentPrice:    ptr(0.52),
			Volume:          2_400_000,
			Volume24h:       310_000,
			Liquidity:       85_000,
		},
		{
			ID:              "mock-1002",
			Question:        "Will the Fed cut rates at the next FOMC meeting?",
			Slug:            "mock-fed-rate-cut",
			Description:     "Resolves YES on an announced federal funds target cut.",
			Active:          true,
			AcceptingOrders: true,
			EndDate:         &end,
			CurrentPrice:    ptr(0.31),
			Volume:          480_000,
			Volume24h:       52_000,
			Liquidity:       22_000,
		},
		{
			ID:              "mock-1003",
			Question:        "Will Bitcoin close above $150k this year?",
			Slug:            "mock-btc-150k",
			Active:          true,
			AcceptingOrders: true,
			EndDate:         &end,
			CurrentPrice:    ptr(0.18),
			Volume:          64_000,
			Volume24h:       7_500,
			Liquidity:       4_100,
		},
		{
			// Thin market, filtered out by the tier gate.
			ID:              "mock-1004",
			Question:        "Will it snow in Miami this winter?",
			Slug:            "mock-miami-snow",
			Active:          true,
			AcceptingOrders: true,
			EndDate:         &end,
			CurrentPrice:    ptr(0.03),
			Volume:          6_200,
			Volume24h:       150,
			Liquidity:       900,
		},
		{
			// Near expiry, filtered out by min days to expiry.
			ID:              "mock-1005",
			Question:        "Will the home team win Sunday's game?",
			Slug:            "mock-sunday-game",
			Active:          true,
			AcceptingOrders: true,
			EndDate:         &nearEnd,
			CurrentPrice:    ptr(0.55),
			Volume:          900_000,
			Volume24h:       210_000,
			Liquidity:       40_000,
		},
		{
			// Closed market: visible to the tracker, never scanned.
			ID:           "mock-1006",
			Question:     "Did the incumbent win the 2024 election?",
			Slug:         "mock-election-2024",
			Closed:       true,
			CurrentPrice: ptr(0.99),
			Volume:       3_800_000,
			Volume24h:    0,
			Liquidity:    0,
		},
	}

	s := &MockSource{
		markets: make(map[string]domain.Market, len(fixtures)),
		bySlug:  make(map[string]string, len(fixtures)),
	}
	for _, m := range fixtures {
		m.FetchedAt = time.Now().UTC()
		s.markets[m.ID] = m
		s.bySlug[m.Slug] = m.ID
	}
	return s
}

// Available always reports true; the mock has no upstream to rate limit.
func (s *MockSource) Available() bool { return true }

// GetMarket returns a fixture market by ID.
func (s *MockSource) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("polymarket/mock: %w: id=%s", domain.ErrNotFound, id)
	}
	return m, nil
}

// GetMarketBySlug returns a fixture market by slug.
func (s *MockSource) GetMarketBySlug(ctx context.Context, slug string, requireCurrent bool) (domain.Market, error) {
	id, ok := s.bySlug[slug]
	if !ok {
		return domain.Market{}, fmt.Errorf("polymarket/mock: %w: slug=%s", domain.ErrNotFound, slug)
	}
	m := s.markets[id]
	if requireCurrent && !m.IsCurrent(time.Now()) {
		return domain.Market{}, fmt.Errorf("polymarket/mock: %w: slug=%s is not a current market", domain.ErrNotFound, slug)
	}
	return m, nil
}

// GetMarkets returns fixture markets matching the query, ordered by total
// volume descending to match the Gamma discovery ordering.
func (s *MockSource) GetMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.Market, error) {
	now := time.Now()
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if q.Active != nil && m.Active != *q.Active {
			continue
		}
		if q.FilterCurrent && !m.IsCurrent(now) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Volume > out[j].Volume })

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SetPrice overrides a fixture's price, letting tracker tests move the market.
func (s *MockSource) SetPrice(id string, price float64) {
	if m, ok := s.markets[id]; ok {
		m.CurrentPrice = &price
		s.markets[id] = m
	}
}

func ptr(v float64) *float64 { return &v }
