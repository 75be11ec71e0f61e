package signal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyedge/polyedge/internal/domain"
)

// memMarketSource serves canned markets for scanner tests.
type memMarketSource struct {
	mu        sync.Mutex
	bySlug    map[string]domain.Market
	available bool
}

func newMemMarketSource(markets ...domain.Market) *memMarketSource {
	s := &memMarketSource{bySlug: make(map[string]domain.Market), available: true}
	for _, m := range markets {
		s.bySlug[m.Slug] = m
	}
	return s
}

func (s *memMarketSource) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *memMarketSource) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.bySlug {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketSource) GetMarketBySlug(ctx context.Context, slug string, requireCurrent bool) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.bySlug[slug]
	if !ok {
		return domain.Market{}, fmt.Errorf("mem: %w: %s", domain.ErrNotFound, slug)
	}
	if requireCurrent && !m.IsCurrent(time.Now()) {
		return domain.Market{}, fmt.Errorf("mem: %w: %s not current", domain.ErrNotFound, slug)
	}
	return m, nil
}

func (s *memMarketSource) GetMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.bySlug {
		if q.FilterCurrent && !m.IsCurrent(time.Now()) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

var _ domain.MarketSource = (*memMarketSource)(nil)

func newTestScanner(src domain.MarketSource, store *memSignalStore, cfg ScannerConfig) *Scanner {
	gen := newTestGenerator(store, cfg.MinConfidence)
	return NewScanner(ScannerOpts{
		Config:      cfg,
		Markets:     src,
		Generator:   gen,
		SignalStore: store,
		Logger:      testLogger(),
	})
}

func TestRunScanIsolatesPerMarketFailure(t *testing.T) {
	// Three watchlist markets; the middle one has no ID, which the generator
	// rejects. The other two must still be scanned.
	good1 := scannable("m1", 0.50)
	good1.Slug = "good-1"
	bad := scannable("", 0.50)
	bad.Slug = "bad"
	good2 := scannable("m2", 0.50)
	good2.Slug = "good-2"

	src := newMemMarketSource(good1, bad, good2)
	store := newMemSignalStore()
	sc := newTestScanner(src, store, ScannerConfig{
		Watchlist:     []string{"good-1", "bad", "good-2"},
		Concurrency:   1,
		MinConfidence: 0.5,
		MinPrice:      0.05,
		MaxPrice:      0.95,
	})

	result := sc.RunScan(context.Background(), nil, true)

	assert.Equal(t, 2, result.MarketsScanned)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad")
}

func TestRunScanEmptyWatchlist(t *testing.T) {
	sc := newTestScanner(newMemMarketSource(), newMemSignalStore(), ScannerConfig{
		Concurrency:   1,
		MinConfidence: 0.5,
	})

	result := sc.RunScan(context.Background(), nil, true)
	assert.Zero(t, result.MarketsScanned)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no markets to scan")
}

func TestRunScanSkipsClosedWatchlistMarket(t *testing.T) {
	open := scannable("m1", 0.50)
	open.Slug = "open"
	closed := scannable("m2", 0.50)
	closed.Slug = "closed"
	closed.Closed = true

	sc := newTestScanner(newMemMarketSource(open, closed), newMemSignalStore(), ScannerConfig{
		Watchlist:     []string{"open", "closed", "missing"},
		Concurrency:   1,
		MinConfidence: 0.5,
	})

	result := sc.RunScan(context.Background(), nil, true)
	assert.Equal(t, 1, result.MarketsScanned)
	assert.Empty(t, result.Errors)
}

func TestRunScanOverrideSlugsBypassWatchlistAndDiscovery(t *testing.T) {
	listed := scannable("m1", 0.50)
	listed.Slug = "listed"
	override := scannable("m2", 0.50)
	override.Slug = "override"

	sc := newTestScanner(newMemMarketSource(listed, override), newMemSignalStore(), ScannerConfig{
		Watchlist:        []string{"listed"},
		DiscoveryEnabled: true,
		Concurrency:      1,
		MinConfidence:    0.5,
	})

	result := sc.RunScan(context.Background(), []string{"override"}, false)
	assert.Equal(t, 1, result.MarketsScanned)
}

func TestRunScanPersistsSignals(t *testing.T) {
	m := scannable("m1", 0.50)
	m.Slug = "watch"
	m.Volume24h = 10_000
	src := newMemMarketSource(m)
	store := newMemSignalStore()
	sc := newTestScanner(src, store, ScannerConfig{
		Watchlist:     []string{"watch"},
		Concurrency:   2,
		MinConfidence: 0.5,
	})
	ctx := context.Background()

	// First scan establishes baselines.
	first := sc.RunScan(ctx, nil, true)
	assert.Zero(t, first.SignalsGenerated)

	// Move the market hard: surge plus momentum fire and persist.
	moved := m
	price := 0.60
	moved.CurrentPrice = &price
	moved.Volume24h = 50_000
	src.mu.Lock()
	src.bySlug["watch"] = moved
	src.mu.Unlock()

	second := sc.RunScan(ctx, nil, true)
	assert.Equal(t, 2, second.SignalsGenerated)

	active, err := store.ListActiveSignals(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestRunScanDegradationMap(t *testing.T) {
	m := scannable("m1", 0.50)
	m.Slug = "watch"
	src := newMemMarketSource(m)

	// No news or social sources wired and social skipped by config.
	sc := newTestScanner(src, newMemSignalStore(), ScannerConfig{
		Watchlist:     []string{"watch"},
		SkipSocialAPI: true,
		Concurrency:   1,
		MinConfidence: 0.5,
	})

	result := sc.RunScan(context.Background(), nil, false)
	assert.True(t, result.Degraded["news_api"])
	assert.True(t, result.Degraded["social_api"])
	assert.False(t, result.Degraded["polymarket_api"])

	src.mu.Lock()
	src.available = false
	src.mu.Unlock()
	result = sc.RunScan(context.Background(), nil, false)
	assert.True(t, result.Degraded["polymarket_api"])
}

func TestScannerStatusTracksLastScan(t *testing.T) {
	m := scannable("m1", 0.50)
	m.Slug = "watch"
	sc := newTestScanner(newMemMarketSource(m), newMemSignalStore(), ScannerConfig{
		Watchlist:     []string{"watch"},
		Concurrency:   1,
		MinConfidence: 0.5,
	})

	st := sc.Status()
	assert.Nil(t, st.LastScan)

	sc.RunScan(context.Background(), nil, false)

	st = sc.Status()
	require.NotNil(t, st.LastScan)
	assert.Equal(t, []string{"watch"}, st.Watchlist)
	assert.InDelta(t, 0.5, st.MinConfidence, 1e-9)
}

func TestDiscoveryRespectsVolumeAndPriceBand(t *testing.T) {
	big := scannable("big", 0.50)
	big.Slug = "big"
	big.Volume = 2_000_000
	small := scannable("small", 0.50)
	small.Slug = "small"
	small.Volume = 100_000
	extreme := scannable("extreme", 0.97)
	extreme.Slug = "extreme"
	extreme.Volume = 3_000_000

	sc := newTestScanner(newMemMarketSource(big, small, extreme), newMemSignalStore(), ScannerConfig{
		DiscoveryEnabled:    true,
		DiscoveryMaxMarkets: 5,
		DiscoveryMinVolume:  1_000_000,
		Concurrency:         1,
		MinConfidence:       0.5,
		MinPrice:            0.05,
		MaxPrice:            0.95,
	})

	markets := sc.marketsToScan(context.Background(), nil)
	require.Len(t, markets, 1)
	assert.Equal(t, "big", markets[0].ID)
}
