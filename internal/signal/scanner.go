package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/notify"
	"github.com/polyedge/polyedge/internal/source"
)

// Channel names used on the signal bus.
const (
	ChannelSignal = "ch:signal"
	ChannelStatus = "ch:status"

	// StreamSignals is the durable stream every published signal is
	// appended to.
	StreamSignals = "stream:signals"
)

// ScanResult summarizes one scan pass.
type ScanResult struct {
	SignalsGenerated int             `json:"signals_generated"`
	MarketsScanned   int             `json:"markets_scanned"`
	Signals          []domain.Signal `json:"signals"`
	Degraded         map[string]bool `json:"degraded"`
	Errors           []string        `json:"errors"`
	ScanTime         time.Time       `json:"scan_time"`
}

// ScannerStatus is the scanner half of the status endpoint payload.
type ScannerStatus struct {
	Watchlist        []string            `json:"watchlist"`
	DiscoveryEnabled bool                `json:"discovery_enabled"`
	MinConfidence    float64             `json:"min_confidence"`
	APIs             []source.GateStatus `json:"apis"`
	LastScan         *time.Time          `json:"last_scan,omitempty"`
	LastScanSignals  int                 `json:"last_scan_signals"`
}

// ScannerConfig holds the scan-universe parameters.
type ScannerConfig struct {
	Watchlist           []string
	DiscoveryEnabled    bool
	DiscoveryMaxMarkets int
	DiscoveryMinVolume  float64
	SkipNewsAPI         bool
	SkipSocialAPI       bool
	Concurrency         int
	MinConfidence       float64
	MinPrice            float64
	MaxPrice            float64
}

// Scanner drives the scan pipeline: it assembles the market universe, fans
// out per-market evaluation, persists the results, and publishes new signals.
// A failure on one market or one external source never aborts the scan.
type Scanner struct {
	cfg       ScannerConfig
	markets   domain.MarketSource
	news      domain.NewsSource
	social    domain.SocialSource
	generator *Generator

	signalStore domain.SignalStore // may be nil in ephemeral scan mode
	marketStore domain.MarketStore // may be nil in ephemeral scan mode
	bus         domain.SignalBus   // may be nil
	notifier    Notifier           // may be nil
	gates       []*source.Gate
	logger      *slog.Logger

	mu             sync.Mutex
	lastScanTime   *time.Time
	lastScanResult *ScanResult
}

// Notifier is the slice of the notification API the scanner needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ScannerOpts wires a Scanner.
type ScannerOpts struct {
	Config      ScannerConfig
	Markets     domain.MarketSource
	News        domain.NewsSource
	Social      domain.SocialSource
	Generator   *Generator
	SignalStore domain.SignalStore
	MarketStore domain.MarketStore
	Bus         domain.SignalBus
	Notifier    Notifier
	Gates       []*source.Gate
	Logger      *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(opts ScannerOpts) *Scanner {
	cfg := opts.Config
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Scanner{
		cfg:         cfg,
		markets:     opts.Markets,
		news:        opts.News,
		social:      opts.Social,
		generator:   opts.Generator,
		signalStore: opts.SignalStore,
		marketStore: opts.MarketStore,
		bus:         opts.Bus,
		notifier:    opts.Notifier,
		gates:       opts.Gates,
		logger:      opts.Logger.With(slog.String("component", "scanner")),
	}
}

// marketsToScan assembles the scan universe: the watchlist (or the override
// slugs) plus optional discovery. A slug that fails to fetch is logged and
// dropped, never fatal.
func (s *Scanner) marketsToScan(ctx context.Context, overrideSlugs []string) []domain.Market {
	slugs := overrideSlugs
	if len(slugs) == 0 {
		slugs = s.cfg.Watchlist
	}

	var markets []domain.Market
	if len(slugs) > 0 {
		s.logger.Info("fetching watchlist markets", slog.Int("count", len(slugs)))
		for _, slug := range slugs {
			m, err := s.markets.GetMarketBySlug(ctx, slug, true)
			if err == nil {
				markets = append(markets, m)
				continue
			}
			if errors.Is(err, domain.ErrNotFound) {
				// Distinguish a closed market from one that never existed.
				if _, closedErr := s.markets.GetMarketBySlug(ctx, slug, false); closedErr == nil {
					s.logger.Info("skipping closed or expired market", slog.String("slug", slug))
				} else {
					s.logger.Warn("market not found", slog.String("slug", slug))
				}
				continue
			}
			s.logger.Error("failed to fetch market",
				slog.String("slug", slug), slog.Any("error", err))
		}
	}

	if s.cfg.DiscoveryEnabled && len(overrideSlugs) == 0 {
		exclude := make(map[string]bool, len(markets))
		for _, m := range markets {
			exclude[m.ID] = true
		}
		discovered := s.discoverMarkets(ctx, exclude)
		markets = append(markets, discovered...)
		s.logger.Info("discovered additional markets", slog.Int("count", len(discovered)))
	}

	return markets
}

// discoverMarkets finds high-volume markets outside the watchlist, applying
// the same price band the generator will enforce so discovery does not waste
// API calls on markets that would be filtered anyway.
func (s *Scanner) discoverMarkets(ctx context.Context, exclude map[string]bool) []domain.Market {
	active := true
	all, err := s.markets.GetMarkets(ctx, domain.MarketQuery{
		Active:        &active,
		Limit:         100,
		FilterCurrent: true,
	})
	if err != nil {
		s.logger.Error("market discovery failed", slog.Any("error", err))
		return nil
	}

	var discovered []domain.Market
	for _, m := range all {
		if exclude[m.ID] {
			continue
		}
		if m.Volume < s.cfg.DiscoveryMinVolume {
			continue
		}
		if m.CurrentPrice != nil {
			if *m.CurrentPrice < s.cfg.MinPrice || *m.CurrentPrice > s.cfg.MaxPrice {
				continue
			}
		}
		discovered = append(discovered, m)
	}

	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].Volume > discovered[j].Volume
	})
	if len(discovered) > s.cfg.DiscoveryMaxMarkets {
		discovered = discovered[:s.cfg.DiscoveryMaxMarkets]
	}
	return discovered
}

// newsForMarket fetches news sentiment, degrading to nil when the source is
// disabled, closed, or failing.
func (s *Scanner) newsForMarket(ctx context.Context, m domain.Market) *domain.NewsSentiment {
	if s.cfg.SkipNewsAPI || s.news == nil || !s.news.Available() {
		return nil
	}
	query := source.SearchQuery(m.Question)
	sent, err := s.news.GetSentimentForMarket(ctx, m.ID, query)
	if err != nil {
		s.logger.Warn("failed to get news sentiment",
			slog.String("market_id", m.ID), slog.Any("error", err))
		return nil
	}
	return &sent
}

// socialForMarket fetches mention counts and sentiment, degrading to nils on
// any failure.
func (s *Scanner) socialForMarket(ctx context.Context, m domain.Market) (*domain.SocialMention, *domain.SocialSentiment) {
	if s.cfg.SkipSocialAPI || s.social == nil || !s.social.Available() {
		return nil, nil
	}
	query := source.SearchQuery(m.Question)

	var mentions *domain.SocialMention
	if got, err := s.social.GetMentionsForMarket(ctx, m.ID, query); err == nil {
		mentions = &got
	} else {
		s.logger.Warn("failed to get social mentions",
			slog.String("market_id", m.ID), slog.Any("error", err))
	}

	var sent *domain.SocialSentiment
	if got, err := s.social.GetSentimentForMarket(ctx, m.ID, query); err == nil {
		sent = &got
	} else {
		s.logger.Warn("failed to get social sentiment",
			slog.String("market_id", m.ID), slog.Any("error", err))
	}

	return mentions, sent
}

// ScanMarket evaluates a single market with whatever external data is
// available right now.
func (s *Scanner) ScanMarket(ctx context.Context, m domain.Market) ([]domain.Signal, error) {
	rc := RuleContext{News: s.newsForMarket(ctx, m)}
	rc.SocialMentions, rc.SocialSent = s.socialForMarket(ctx, m)
	return s.generator.ProcessMarket(ctx, m, rc, false)
}

// RunScan runs a full scan pass. Markets are evaluated concurrently up to the
// configured bound; a market that errors is recorded in the result and the
// rest of the scan continues.
func (s *Scanner) RunScan(ctx context.Context, overrideSlugs []string, persist bool) ScanResult {
	result := ScanResult{
		Degraded: map[string]bool{},
		ScanTime: time.Now().UTC(),
	}
	s.logger.Info("starting signal scan")

	markets := s.marketsToScan(ctx, overrideSlugs)
	if len(markets) == 0 {
		result.Errors = append(result.Errors, "no markets to scan, check watchlist configuration")
		s.logger.Warn("no markets found to scan")
		s.finishScan(&result)
		return result
	}
	s.logger.Info("scanning markets", slog.Int("count", len(markets)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, m := range markets {
		m := m
		g.Go(func() error {
			signals, err := s.ScanMarket(gctx, m)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("error scanning market %s: %v", m.Slug, err))
				s.logger.Error("market scan failed",
					slog.String("slug", m.Slug), slog.Any("error", err))
				return nil
			}
			result.MarketsScanned++
			result.Signals = append(result.Signals, signals...)
			if len(signals) > 0 {
				s.logger.Info("market produced signals",
					slog.String("slug", m.Slug), slog.Int("count", len(signals)))
			}
			return nil
		})
	}
	_ = g.Wait()

	result.SignalsGenerated = len(result.Signals)

	if persist && len(result.Signals) > 0 {
		s.persistScan(ctx, result.Signals, markets)
	}
	s.announce(ctx, result.Signals)

	result.Degraded = map[string]bool{
		"news_api":       s.cfg.SkipNewsAPI || s.news == nil || !s.news.Available(),
		"social_api":     s.cfg.SkipSocialAPI || s.social == nil || !s.social.Available(),
		"polymarket_api": !s.markets.Available(),
	}

	s.finishScan(&result)
	s.logger.Info("scan complete",
		slog.Int("signals", result.SignalsGenerated),
		slog.Int("markets", result.MarketsScanned))
	return result
}

// persistScan upserts the scanned markets first so signal rows have their
// market, then writes each signal. Both steps are best effort.
func (s *Scanner) persistScan(ctx context.Context, signals []domain.Signal, markets []domain.Market) {
	if s.marketStore != nil {
		if err := s.marketStore.UpsertMarkets(ctx, markets); err != nil {
			s.logger.Error("failed to upsert markets", slog.Any("error", err))
		}
	}
	if s.signalStore == nil {
		return
	}
	for _, sig := range signals {
		if err := s.signalStore.CreateSignal(ctx, sig); err != nil {
			s.logger.Error("failed to persist signal",
				slog.String("signal_id", sig.ID), slog.Any("error", err))
		}
	}
}

// announce publishes each new signal to the bus and the notifier.
func (s *Scanner) announce(ctx context.Context, signals []domain.Signal) {
	for _, sig := range signals {
		if s.bus != nil {
			payload, err := json.Marshal(sig)
			if err == nil {
				if err := s.bus.Publish(ctx, ChannelSignal, payload); err != nil {
					s.logger.Warn("failed to publish signal",
						slog.String("signal_id", sig.ID), slog.Any("error", err))
				}
				if err := s.bus.StreamAppend(ctx, StreamSignals, payload); err != nil {
					s.logger.Warn("failed to append signal to stream",
						slog.String("signal_id", sig.ID), slog.Any("error", err))
				}
			}
		}
		if s.notifier != nil {
			title, msg := notify.FormatSignal(sig)
			if err := s.notifier.Notify(ctx, notify.EventSignal, title, msg); err != nil {
				s.logger.Warn("failed to send signal notification",
					slog.String("signal_id", sig.ID), slog.Any("error", err))
			}
		}
	}
}

func (s *Scanner) finishScan(result *ScanResult) {
	s.mu.Lock()
	t := result.ScanTime
	s.lastScanTime = &t
	s.lastScanResult = result
	s.mu.Unlock()
}

// Status reports the scanner configuration, per-API gate state, and the last
// scan outcome.
func (s *Scanner) Status() ScannerStatus {
	st := ScannerStatus{
		Watchlist:        s.cfg.Watchlist,
		DiscoveryEnabled: s.cfg.DiscoveryEnabled,
		MinConfidence:    s.cfg.MinConfidence,
	}
	for _, g := range s.gates {
		gs := g.Status()
		st.APIs = append(st.APIs, gs)
	}

	s.mu.Lock()
	if s.lastScanTime != nil {
		t := *s.lastScanTime
		st.LastScan = &t
	}
	if s.lastScanResult != nil {
		st.LastScanSignals = s.lastScanResult.SignalsGenerated
	}
	s.mu.Unlock()
	return st
}

// RunLoop scans on the given interval until the context is done. The first
// scan runs immediately.
func (s *Scanner) RunLoop(ctx context.Context, interval time.Duration) error {
	s.logger.Info("scan loop starting", slog.Duration("interval", interval))

	s.RunScan(ctx, nil, true)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scan loop stopping")
			return ctx.Err()
		case <-ticker.C:
			s.RunScan(ctx, nil, true)
		}
	}
}
