package social

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
)

// MockSource returns deterministic social activity keyed off the market ID.
type MockSource struct{}

var _ domain.SocialSource = (*MockSource)(nil)

// NewMockSource returns a MockSource.
func NewMockSource() *MockSource { return &MockSource{} }

// Available always reports true.
func (s *MockSource) Available() bool { return true }

func seedFor(marketID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(marketID))
	return h.Sum32()
}

// GetMentionsForMarket returns synthetic mention counts. Roughly one market in
// four gets a 1h spike well above its 7-day hourly baseline.
func (s *MockSource) GetMentionsForMarket(ctx context.Context, marketID, query string) (domain.SocialMention, error) {
	seed := seedFor(marketID)

	base := 20 + int(seed%80) // hourly baseline [20, 99]
	m := domain.SocialMention{
		MarketID:       marketID,
		Timestamp:      time.Now().UTC(),
		MentionCount1h: base,
		MentionCount7d: base * 24 * 7,
		TotalLikes:     base * 11,
		TotalRetweets:  base * 3,
		TotalReplies:   base * 2,
	}
	if seed%4 == 0 {
		m.MentionCount1h = base * 8
	}
	m.MentionCount24h = base*23 + m.MentionCount1h
	return m, nil
}

// GetSentimentForMarket returns a synthetic sentiment reading in [-0.6, 0.6].
func (s *MockSource) GetSentimentForMarket(ctx context.Context, marketID, query string) (domain.SocialSentiment, error) {
	seed := seedFor(marketID)
	score := (float64(seed%121) - 60) / 100 // [-0.60, 0.60]

	sent := domain.SocialSentiment{
		MarketID:       marketID,
		Platform:       "twitter",
		Timestamp:      time.Now().UTC(),
		SentimentScore: score,
		Confidence:     0.7,
		PostsAnalyzed:  35,
	}
	sent.PositivePct = (1 + score) / 2
	sent.NegativePct = 1 - sent.PositivePct
	return sent, nil
}
