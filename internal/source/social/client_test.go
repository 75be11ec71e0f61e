package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/source"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *source.Gate) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := source.NewGate("social", 15*time.Minute, logger)
	return NewClient(srv.URL, "test-token", gate, logger), gate
}

func TestGetMentionsAggregatesWindows(t *testing.T) {
	// 48 hourly buckets of 10 mentions each, plus a final spike hour of 100.
	var buckets []string
	for i := 0; i < 48; i++ {
		buckets = append(buckets, `{"tweet_count": 10}`)
	}
	buckets = append(buckets, `{"tweet_count": 100}`)
	body := fmt.Sprintf(`{"data": [%s], "meta": {"total_tweet_count": %d}}`,
		strings.Join(buckets, ","), 48*10+100)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/counts/recent", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "hour", r.URL.Query().Get("granularity"))
		_, _ = w.Write([]byte(body))
	})

	m, err := client.GetMentionsForMarket(context.Background(), "m1", "bitcoin 150k")
	require.NoError(t, err)

	assert.Equal(t, 100, m.MentionCount1h)
	assert.Equal(t, 23*10+100, m.MentionCount24h)
	assert.Equal(t, 580, m.MentionCount7d)
}

func TestGetMentionsEmptyData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [], "meta": {"total_tweet_count": 0}}`))
	})

	m, err := client.GetMentionsForMarket(context.Background(), "m1", "q")
	require.NoError(t, err)
	assert.Zero(t, m.MentionCount1h)
	assert.Zero(t, m.MentionCount24h)
	assert.Zero(t, m.MentionCount7d)
}

func TestGetSentimentScoresPosts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/recent", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [
			{"text": "so bullish on this, easy win"},
			{"text": "this market is cooked, total scam"},
			{"text": "interesting odds on this one"},
			{"text": "LFG huge pump incoming"}
		]}`))
	})

	sent, err := client.GetSentimentForMarket(context.Background(), "m1", "q")
	require.NoError(t, err)

	assert.Equal(t, 4, sent.PostsAnalyzed)
	assert.InDelta(t, 0.5, sent.PositivePct, 1e-9)
	assert.InDelta(t, 0.25, sent.NegativePct, 1e-9)
	assert.InDelta(t, 0.25, sent.NeutralPct, 1e-9)
	assert.InDelta(t, 0.25, sent.SentimentScore, 1e-9)
	assert.Equal(t, "twitter", sent.Platform)
}

func TestRateLimitUsesResetHeader(t *testing.T) {
	reset := time.Now().Add(90 * time.Second).Unix()
	client, gate := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", fmt.Sprintf("%d", reset))
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetMentionsForMarket(context.Background(), "m1", "q")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.False(t, gate.Available())

	st := gate.Status()
	require.NotNil(t, st.LimitedUntil)
	assert.WithinDuration(t, time.Unix(reset, 0), *st.LimitedUntil, 2*time.Second)
}

func TestMockSourceSpikeShape(t *testing.T) {
	src := NewMockSource()
	ctx := context.Background()

	m, err := src.GetMentionsForMarket(ctx, "mock-1001", "q")
	require.NoError(t, err)
	assert.Positive(t, m.MentionCount1h)
	assert.Greater(t, m.MentionCount7d, m.MentionCount24h)

	// Deterministic per market ID.
	again, err := src.GetMentionsForMarket(ctx, "mock-1001", "q")
	require.NoError(t, err)
	assert.Equal(t, m.MentionCount1h, again.MentionCount1h)
	assert.Equal(t, m.MentionCount24h, again.MentionCount24h)
	assert.Equal(t, m.MentionCount7d, again.MentionCount7d)
}
