// Package social implements the Twitter/X social activity source.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/source"
)

// Client queries the Twitter v2 API for mention counts and recent posts. The
// counts endpoint covers the trailing 7 days in hourly buckets, which is
// exactly the window the social spike rule compares against.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	gate        *source.Gate
	logger      *slog.Logger
}

var _ domain.SocialSource = (*Client)(nil)

// NewClient creates a Twitter v2 API client. baseURL is the API root, e.g.
// "https://api.twitter.com/2".
func NewClient(baseURL, bearerToken string, gate *source.Gate, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		gate:   gate,
		logger: logger.With(slog.String("component", "social_client")),
	}
}

// Available reports whether the Twitter API may be called right now.
func (c *Client) Available() bool {
	return c.gate.Available()
}

type countsResponse struct {
	Data []struct {
		Start      string `json:"start"`
		End        string `json:"end"`
		TweetCount int    `json:"tweet_count"`
	} `json:"data"`
	Meta struct {
		TotalTweetCount int `json:"total_tweet_count"`
	} `json:"meta"`
}

// GetMentionsForMarket returns mention counts for query across the 1h, 24h,
// and 7d windows, from the hourly-granularity counts endpoint.
func (c *Client) GetMentionsForMarket(ctx context.Context, marketID, query string) (domain.SocialMention, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("granularity", "hour")

	body, err := c.doGet(ctx, "/tweets/counts/recent?"+params.Encode())
	if err != nil {
		return domain.SocialMention{}, fmt.Errorf("social: fetch counts for %s: %w", marketID, err)
	}

	var resp countsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SocialMention{}, fmt.Errorf("social: decode counts: %w", err)
	}

	m := domain.SocialMention{
		MarketID:       marketID,
		Timestamp:      time.Now().UTC(),
		MentionCount7d: resp.Meta.TotalTweetCount,
	}
	// Buckets arrive oldest first; the tail is the most recent hour.
	n := len(resp.Data)
	if n > 0 {
		m.MentionCount1h = resp.Data[n-1].TweetCount
	}
	for i := n - 1; i >= 0 && i >= n-24; i-- {
		m.MentionCount24h += resp.Data[i].TweetCount
	}
	return m, nil
}

type searchResponse struct {
	Data []struct {
		Text          string `json:"text"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// GetSentimentForMarket scores a sample of recent posts matching query with a
// keyword lexicon and aggregates them into a SocialSentiment.
func (c *Client) GetSentimentForMarket(ctx context.Context, marketID, query string) (domain.SocialSentiment, error) {
	params := url.Values{}
	params.Set("query", query+" -is:retweet lang:en")
	params.Set("max_results", "50")
	params.Set("tweet.fields", "public_metrics")

	body, err := c.doGet(ctx, "/tweets/search/recent?"+params.Encode())
	if err != nil {
		return domain.SocialSentiment{}, fmt.Errorf("social: fetch posts for %s: %w", marketID, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SocialSentiment{}, fmt.Errorf("social: decode posts: %w", err)
	}

	sent := domain.SocialSentiment{
		MarketID:      marketID,
		Platform:      "twitter",
		Timestamp:     time.Now().UTC(),
		PostsAnalyzed: len(resp.Data),
	}
	if len(resp.Data) == 0 {
		return sent, nil
	}

	var pos, neg, neu int
	for _, tw := range resp.Data {
		switch score := scoreText(tw.Text); {
		case score > 0:
			pos++
		case score < 0:
			neg++
		default:
			neu++
		}
	}
	total := float64(len(resp.Data))
	sent.PositivePct = float64(pos) / total
	sent.NegativePct = float64(neg) / total
	sent.NeutralPct = float64(neu) / total
	sent.SentimentScore = sent.PositivePct - sent.NegativePct
	sent.Confidence = total / 50
	if sent.Confidence > 1 {
		sent.Confidence = 1
	}
	return sent, nil
}

var (
	positiveWords = []string{
		"bullish", "win", "winning", "huge", "moon", "pump", "confident",
		"easy", "lock", "guaranteed", "up", "surge", "rally", "lfg",
	}
	negativeWords = []string{
		"bearish", "lose", "losing", "dump", "crash", "rekt", "doubt",
		"scam", "down", "fade", "dead", "over", "cooked",
	}
)

func scoreText(text string) int {
	text = strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if containsWord(text, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if containsWord(text, w) {
			score--
		}
	}
	return score
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		err := fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
		c.gate.MarkLimited(err, retryAfterHint(resp.Header))
		return nil, err
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	c.gate.MarkSuccess()
	return body, nil
}

// retryAfterHint prefers Twitter's x-rate-limit-reset epoch header, falling
// back to Retry-After seconds.
func retryAfterHint(h http.Header) time.Duration {
	if epoch, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		if d := time.Until(time.Unix(epoch, 0)); d > 0 {
			return d
		}
	}
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
