package domain

import "time"

// NewsSentiment is an aggregate sentiment reading for a market computed from
// recent news coverage. Scores are pre-computed upstream; the pipeline never
// runs sentiment inference itself.
type NewsSentiment struct {
	MarketID  string    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`

	SentimentScore float64 `json:"sentiment_score"` // -1.0 (negative) to 1.0 (positive)
	Confidence     float64 `json:"confidence"`      // 0.0 to 1.0, driven by article count

	ArticleCount  int `json:"article_count"`
	PositiveCount int `json:"positive_count"`
	NegativeCount int `json:"negative_count"`
	NeutralCount  int `json:"neutral_count"`

	TopHeadlines []string `json:"top_headlines,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// SocialMention is an aggregate of social media activity for a market across
// the 1h/24h/7d windows.
type SocialMention struct {
	MarketID  string    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`

	MentionCount1h  int `json:"mention_count_1h"`
	MentionCount24h int `json:"mention_count_24h"`
	MentionCount7d  int `json:"mention_count_7d"`

	TotalLikes    int `json:"total_likes"`
	TotalRetweets int `json:"total_retweets"`
	TotalReplies  int `json:"total_replies"`
}

// SocialSentiment is an aggregate sentiment reading from social media posts.
type SocialSentiment struct {
	MarketID  string    `json:"market_id"`
	Platform  string    `json:"platform"`
	Timestamp time.Time `json:"timestamp"`

	SentimentScore float64 `json:"sentiment_score"` // -1.0 to 1.0
	Confidence     float64 `json:"confidence"`

	PositivePct float64 `json:"positive_pct"`
	NegativePct float64 `json:"negative_pct"`
	NeutralPct  float64 `json:"neutral_pct"`

	PostsAnalyzed int `json:"posts_analyzed"`
}
