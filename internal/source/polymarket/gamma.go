// Package polymarket implements the Gamma API market source.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/source"
)

// GammaClient is the REST client for the Polymarket Gamma API, which provides
// market discovery, metadata, and prices.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	gate       *source.Gate
	logger     *slog.Logger
}

var _ domain.MarketSource = (*GammaClient)(nil)

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, gate *source.Gate, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		gate:   gate,
		logger: logger.With(slog.String("component", "gamma_client")),
	}
}

// Available reports whether the Gamma API may be called right now.
func (g *GammaClient) Available() bool {
	return g.gate.Available()
}

// GetMarket returns a single market by its ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return apiMarket.ToDomainMarket(), nil
}

// GetMarketBySlug returns a single market looked up by its URL slug. When
// requireCurrent is set, a market that is closed, archived, expired, or no
// longer accepting orders reports domain.ErrNotFound.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug string, requireCurrent bool) (domain.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	if len(apiMarkets) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	m := apiMarkets[0].ToDomainMarket()
	if requireCurrent && !m.IsCurrent(time.Now()) {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: slug=%s is not a current market", domain.ErrNotFound, slug)
	}

	return m, nil
}

// GetMarkets returns a list of markets matching the query.
func (g *GammaClient) GetMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.Market, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Active != nil {
		params.Set("active", strconv.FormatBool(*q.Active))
	}
	// Discovery wants liquid markets first.
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	now := time.Now()
	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		m := apiMarkets[i].ToDomainMarket()
		if q.FilterCurrent && !m.IsCurrent(now) {
			continue
		}
		markets = append(markets, m)
	}

	return markets, nil
}

// doGet sends an unauthenticated GET request to the Gamma API and updates the
// availability gate from the response.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			g.gate.MarkLimited(err, retryAfterHint(resp.Header))
		}
		return nil, err
	}

	g.gate.MarkSuccess()
	return body, nil
}

// checkHTTPStatus maps HTTP status codes to domain sentinel errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// retryAfterHint parses a Retry-After header, returning zero when absent or
// unparseable.
func retryAfterHint(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
