package polymarket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/source"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*GammaClient, *source.Gate) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := source.NewGate("gamma", 15*time.Minute, logger)
	return NewGammaClient(srv.URL, gate, logger), gate
}

func TestGetMarketDecodesFlexibleFields(t *testing.T) {
	// Gamma sends booleans and numbers as strings on some endpoints.
	body := `{
		"id": "0xabc",
		"question": "Will X happen?",
		"slug": "will-x-happen",
		"active": "true",
		"closed": false,
		"acceptingOrders": true,
		"endDate": "2027-01-01T00:00:00Z",
		"outcomePrices": "[\"0.62\", \"0.38\"]",
		"volume": "125000.5",
		"volume24hr": 9800,
		"liquidity": "4100"
	}`
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/0xabc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	m, err := client.GetMarket(context.Background(), "0xabc")
	require.NoError(t, err)

	assert.Equal(t, "0xabc", m.ID)
	assert.True(t, m.Active)
	assert.False(t, m.Closed)
	assert.True(t, m.AcceptingOrders)
	require.NotNil(t, m.CurrentPrice)
	assert.InDelta(t, 0.62, *m.CurrentPrice, 1e-9)
	assert.InDelta(t, 125000.5, m.Volume, 1e-9)
	assert.InDelta(t, 9800, m.Volume24h, 1e-9)
	require.NotNil(t, m.EndDate)
	assert.Equal(t, 2027, m.EndDate.Year())
	assert.False(t, m.FetchedAt.IsZero())
}

func TestGetMarketMissingPriceIsNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "m1", "question": "Q?", "active": true, "volume": 5000}`))
	})

	m, err := client.GetMarket(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, m.CurrentPrice)
	assert.Nil(t, m.EndDate)
}

func TestGetMarketBySlug(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "will-x-happen", r.URL.Query().Get("slug"))
		_, _ = w.Write([]byte(`[{"id": "m1", "question": "Will X happen?", "slug": "will-x-happen",
			"active": true, "acceptingOrders": true, "endDate": "2099-01-01T00:00:00Z", "volume": 50000}]`))
	})

	m, err := client.GetMarketBySlug(context.Background(), "will-x-happen", true)
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
}

func TestGetMarketBySlugNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.GetMarketBySlug(context.Background(), "nope", false)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetMarketBySlugRequireCurrentRejectsClosed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": "m1", "question": "Q?", "slug": "s", "active": true, "closed": true}]`))
	})

	_, err := client.GetMarketBySlug(context.Background(), "s", true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Without the currency requirement the closed market comes back fine.
	m, err := client.GetMarketBySlug(context.Background(), "s", false)
	require.NoError(t, err)
	assert.True(t, m.Closed)
}

func TestGetMarketsFilterCurrent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": "open", "question": "A?", "active": true, "acceptingOrders": true, "endDate": "2099-01-01T00:00:00Z"},
			{"id": "closed", "question": "B?", "active": true, "closed": true}
		]`))
	})

	markets, err := client.GetMarkets(context.Background(), domain.MarketQuery{FilterCurrent: true})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "open", markets[0].ID)
}

func TestRateLimitClosesGate(t *testing.T) {
	client, gate := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetMarket(context.Background(), "m1")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.False(t, gate.Available())
	assert.False(t, client.Available())

	st := gate.Status()
	require.NotNil(t, st.LimitedUntil)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), *st.LimitedUntil, 2*time.Second)
}

func TestSuccessReopensGateStreak(t *testing.T) {
	var fail bool
	client, gate := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id": "m1", "question": "Q?"}`))
	})

	fail = true
	_, err := client.GetMarket(context.Background(), "m1")
	require.Error(t, err)
	assert.Equal(t, 1, gate.Status().Failures)

	// Expired gate window is simulated by resetting directly; a live success
	// clears the streak.
	gate.MarkSuccess()
	fail = false
	_, err = client.GetMarket(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, gate.Status().Failures)
}

func TestMockSourceFixtures(t *testing.T) {
	src := NewMockSource()
	ctx := context.Background()

	m, err := src.GetMarketBySlug(ctx, "mock-election-2028", true)
	require.NoError(t, err)
	assert.Equal(t, domain.TierHigh, m.Tier())

	// Closed fixture is rejected when currency is required.
	_, err = src.GetMarketBySlug(ctx, "mock-election-2024", true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Discovery ordering is by total volume descending.
	markets, err := src.GetMarkets(ctx, domain.MarketQuery{FilterCurrent: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.GreaterOrEqual(t, markets[0].Volume, markets[1].Volume)
}
