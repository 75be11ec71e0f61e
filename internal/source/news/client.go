// Package news implements the NewsAPI sentiment source.
package news

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

// Client queries the NewsAPI "everything" endpoint and aggregates recent
// coverage into a sentiment reading. Article headlines are scored with a small
// keyword lexicon; confidence scales with how many articles were found.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	gate       *source.Gate
	logger     *slog.Logger
}

var _ domain.NewsSource = (*Client)(nil)

// NewClient creates a NewsAPI client. baseURL is the API root, e.g.
// "https://newsapi.org/v2".
func NewClient(baseURL, apiKey string, gate *source.Gate, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		gate:   gate,
		logger: logger.With(slog.String("component", "news_client")),
	}
}

// Available reports whether NewsAPI may be called right now.
func (c *Client) Available() bool {
	return c.gate.Available()
}

type apiArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

type everythingResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
	Code         string       `json:"code,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// GetSentimentForMarket fetches articles from the last 7 days matching query
// and aggregates them into a NewsSentiment for the market.
func (c *Client) GetSentimentForMarket(ctx context.Context, marketID, query string) (domain.NewsSentiment, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("from", time.Now().AddDate(0, 0, -7).Format("2006-01-02"))
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("pageSize", "50")

	body, err := c.doGet(ctx, "/everything?"+params.Encode())
	if err != nil {
		return domain.NewsSentiment{}, fmt.Errorf("news: fetch articles for %s: %w", marketID, err)
	}

	var resp everythingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.NewsSentiment{}, fmt.Errorf("news: decode response: %w", err)
	}
	if resp.Status != "ok" {
		return domain.NewsSentiment{}, fmt.Errorf("news: api error %s: %s", resp.Code, resp.Message)
	}

	return aggregate(marketID, resp.Articles), nil
}

// positiveWords and negativeWords form the headline-scoring lexicon. Coarse on
// purpose: a headline either leans, or it counts as neutral.
var (
	positiveWords = []string{
		"win", "wins", "winning", "surge", "surges", "soar", "soars", "rally",
		"gain", "gains", "boost", "record", "success", "breakthrough", "lead",
		"leads", "leading", "rise", "rises", "strong", "approve", "approved",
	}
	negativeWords = []string{
		"lose", "loses", "losing", "crash", "crashes", "plunge", "plunges",
		"fall", "falls", "drop", "drops", "decline", "fail", "fails", "failure",
		"scandal", "fraud", "weak", "reject", "rejected", "collapse", "fear",
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

func aggregate(marketID string, articles []apiArticle) domain.NewsSentiment {
	s := domain.NewsSentiment{
		MarketID:     marketID,
		Timestamp:    time.Now().UTC(),
		ArticleCount: len(articles),
	}

	for _, a := range articles {
		switch score := scoreText(a.Title + " " + a.Description); {
		case score > 0:
			s.PositiveCount++
		case score < 0:
			s.NegativeCount++
		default:
			s.NeutralCount++
		}
		if len(s.TopHeadlines) < 5 && a.Title != "" {
			s.TopHeadlines = append(s.TopHeadlines, a.Title)
		}
		if a.Source.Name != "" && !contains(s.Sources, a.Source.Name) {
			s.Sources = append(s.Sources, a.Source.Name)
		}
	}

	if s.ArticleCount > 0 {
		s.SentimentScore = float64(s.PositiveCount-s.NegativeCount) / float64(s.ArticleCount)
	}
	// Confidence saturates at 20 articles.
	s.Confidence = float64(s.ArticleCount) / 20
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return s
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
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
	req.Header.Set("X-Api-Key", c.apiKey)

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

func retryAfterHint(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
