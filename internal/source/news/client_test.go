package news

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

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *source.Gate) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := source.NewGate("news", 15*time.Minute, logger)
	return NewClient(srv.URL, "test-key", gate, logger), gate
}

func TestGetSentimentAggregatesArticles(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/everything", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "Trump win the 2028", r.URL.Query().Get("q"))

		_, _ = w.Write([]byte(`{
			"status": "ok",
			"totalResults": 4,
			"articles": [
				{"title": "Candidate surges in polls after rally", "source": {"name": "Reuters"}},
				{"title": "Campaign gains momentum with record turnout", "source": {"name": "AP"}},
				{"title": "Opponent faces scandal amid fraud claims", "source": {"name": "Reuters"}},
				{"title": "Debate scheduled for next month", "source": {"name": "BBC"}}
			]
		}`))
	})

	sent, err := client.GetSentimentForMarket(context.Background(), "m1", "Trump win the 2028")
	require.NoError(t, err)

	assert.Equal(t, "m1", sent.MarketID)
	assert.Equal(t, 4, sent.ArticleCount)
	assert.Equal(t, 2, sent.PositiveCount)
	assert.Equal(t, 1, sent.NegativeCount)
	assert.Equal(t, 1, sent.NeutralCount)
	assert.InDelta(t, 0.25, sent.SentimentScore, 1e-9) // (2-1)/4
	assert.InDelta(t, 0.2, sent.Confidence, 1e-9)      // 4/20
	assert.Len(t, sent.TopHeadlines, 4)
	assert.ElementsMatch(t, []string{"Reuters", "AP", "BBC"}, sent.Sources)
}

func TestGetSentimentNoArticles(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok", "totalResults": 0, "articles": []}`))
	})

	sent, err := client.GetSentimentForMarket(context.Background(), "m1", "obscure topic")
	require.NoError(t, err)
	assert.Zero(t, sent.ArticleCount)
	assert.Zero(t, sent.SentimentScore)
	assert.Zero(t, sent.Confidence)
}

func TestGetSentimentAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "code": "apiKeyInvalid", "message": "bad key"}`))
	})

	_, err := client.GetSentimentForMarket(context.Background(), "m1", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}

func TestRateLimitClosesGate(t *testing.T) {
	client, gate := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetSentimentForMarket(context.Background(), "m1", "q")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.False(t, gate.Available())
}

func TestMockSourceIsDeterministic(t *testing.T) {
	src := NewMockSource()
	ctx := context.Background()

	a, err := src.GetSentimentForMarket(ctx, "mock-1001", "q")
	require.NoError(t, err)
	b, err := src.GetSentimentForMarket(ctx, "mock-1001", "q")
	require.NoError(t, err)

	assert.Equal(t, a.SentimentScore, b.SentimentScore)
	assert.Equal(t, a.ArticleCount, b.ArticleCount)
	assert.GreaterOrEqual(t, a.ArticleCount, 5)
	assert.GreaterOrEqual(t, a.SentimentScore, -1.0)
	assert.LessOrEqual(t, a.SentimentScore, 1.0)
}
