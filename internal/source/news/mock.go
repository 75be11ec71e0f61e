package news

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
)

// MockSource returns deterministic news sentiment keyed off the market ID, so
// rule behavior is reproducible in development and tests.
type MockSource struct{}

var _ domain.NewsSource = (*MockSource)(nil)

// NewMockSource returns a MockSource.
func NewMockSource() *MockSource { return &MockSource{} }

// Available always reports true.
func (s *MockSource) Available() bool { return true }

// GetSentimentForMarket returns a synthetic sentiment reading. The score is
// derived from a hash of the market ID and spans roughly [-0.8, 0.8], with
// enough articles to clear the divergence rule's article floor.
func (s *MockSource) GetSentimentForMarket(ctx context.Context, marketID, query string) (domain.NewsSentiment, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(marketID))
	seed := h.Sum32()

	score := (float64(seed%161) - 80) / 100 // [-0.80, 0.80]
	count := 5 + int(seed%16)               // [5, 20]

	sent := domain.NewsSentiment{
		MarketID:       marketID,
		Timestamp:      time.Now().UTC(),
		SentimentScore: score,
		Confidence:     float64(count) / 20,
		ArticleCount:   count,
		TopHeadlines:   []string{"Mock headline for " + query},
		Sources:        []string{"mock-wire"},
	}
	switch {
	case score > 0.1:
		sent.PositiveCount = count
	case score < -0.1:
		sent.NegativeCount = count
	default:
		sent.NeutralCount = count
	}
	return sent, nil
}
