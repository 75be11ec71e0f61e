package signal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polyedge/polyedge/internal/domain"
)

// Generator evaluates rules against market state and promotes qualifying
// candidates to persisted signals. It remembers each market's previous
// (price, volume) pair between evaluations so the surge and momentum rules
// have something to compare against.
type Generator struct {
	rules         []Rule
	filter        QualityFilter
	minConfidence float64

	store  domain.SignalStore // may be nil: signals are still returned, just not persisted
	states domain.StateCache  // may be nil: previous-state memory is process-local only
	logger *slog.Logger

	mu   sync.Mutex
	prev map[string]domain.MarketState
}

// GeneratorOpts configures a Generator.
type GeneratorOpts struct {
	Rules         []Rule
	Filter        QualityFilter
	MinConfidence float64
	Store         domain.SignalStore
	StateCache    domain.StateCache
	Logger        *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(opts GeneratorOpts) *Generator {
	return &Generator{
		rules:         opts.Rules,
		filter:        opts.Filter,
		minConfidence: opts.MinConfidence,
		store:         opts.Store,
		states:        opts.StateCache,
		logger:        opts.Logger.With(slog.String("component", "generator")),
		prev:          make(map[string]domain.MarketState),
	}
}

// SetPreviousState records a market's (price, 24h volume) pair for the next
// evaluation. Exposed so callers can seed momentum detection.
func (g *Generator) SetPreviousState(ctx context.Context, marketID string, price, volume24h float64) {
	state := domain.MarketState{
		Price:      price,
		Volume24h:  volume24h,
		ObservedAt: time.Now().UTC(),
	}

	g.mu.Lock()
	g.prev[marketID] = state
	g.mu.Unlock()

	if g.states != nil {
		if err := g.states.SetState(ctx, marketID, state); err != nil {
			g.logger.Warn("failed to cache market state",
				slog.String("market_id", marketID), slog.Any("error", err))
		}
	}
}

// previousState returns the remembered state for a market, falling back to
// the warm cache after a restart.
func (g *Generator) previousState(ctx context.Context, marketID string) (domain.MarketState, bool) {
	g.mu.Lock()
	state, ok := g.prev[marketID]
	g.mu.Unlock()
	if ok {
		return state, true
	}

	if g.states != nil {
		state, err := g.states.GetState(ctx, marketID)
		if err == nil {
			g.mu.Lock()
			g.prev[marketID] = state
			g.mu.Unlock()
			return state, true
		}
	}
	return domain.MarketState{}, false
}

// EvaluateMarket runs every rule against the market and returns the
// candidates that cleared the raw confidence floor. The market's state is
// recorded afterwards, so the comparison baseline always trails by one
// evaluation.
func (g *Generator) EvaluateMarket(ctx context.Context, m domain.Market, rc RuleContext) []domain.Candidate {
	if prev, ok := g.previousState(ctx, m.ID); ok {
		price, vol := prev.Price, prev.Volume24h
		rc.PreviousPrice = &price
		rc.PreviousVolume24h = &vol
	}

	var candidates []domain.Candidate
	for _, rule := range g.rules {
		c := rule.Evaluate(m, rc)
		if c == nil {
			continue
		}
		if c.Confidence >= g.minConfidence {
			candidates = append(candidates, *c)
		}
	}

	if m.CurrentPrice != nil {
		g.SetPreviousState(ctx, m.ID, *m.CurrentPrice, m.Volume24h)
	}

	return candidates
}

// adjustConfidence applies market-quality penalties to a candidate's raw
// confidence: lower tiers take a haircut and markets inside two weeks of
// expiry decay linearly to a floor of one half.
func (g *Generator) adjustConfidence(c domain.Candidate, m domain.Market, now time.Time) float64 {
	confidence := c.Confidence

	switch m.Tier() {
	case domain.TierLow:
		confidence *= 0.85
	case domain.TierMedium:
		confidence *= 0.95
	}

	if m.EndDate != nil {
		daysToExpiry := m.EndDate.Sub(now).Hours() / 24
		if daysToExpiry < 14 {
			factor := daysToExpiry / 14
			if factor < 0.5 {
				factor = 0.5
			}
			confidence *= factor
		}
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// buildSignal freezes a candidate plus the market context into a Signal.
func (g *Generator) buildSignal(m domain.Market, c domain.Candidate, rc RuleContext) domain.Signal {
	entryPrice := 0.5
	if m.CurrentPrice != nil {
		entryPrice = *m.CurrentPrice
	}

	sig := domain.Signal{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),

		MarketID:       m.ID,
		MarketQuestion: m.Question,
		MarketSlug:     m.Slug,
		MarketEndDate:  m.EndDate,

		Type:       c.Type,
		Direction:  c.Direction,
		Confidence: c.Confidence,
		Reasoning:  c.Reasoning,

		EntryPrice:       entryPrice,
		EntryVolume24h:   m.Volume24h,
		EntryVolumeTotal: m.Volume,
		EntryLiquidity:   m.Liquidity,
		MarketTier:       m.Tier(),

		NewsSentimentScore:    c.NewsSentimentScore,
		SocialMentionCount24h: c.SocialMentionCount24h,
		SocialSentimentScore:  c.SocialSentimentScore,

		Status: domain.StatusActive,
	}

	// Fill in context the rule did not carry.
	if sig.NewsSentimentScore == nil && rc.News != nil {
		score := rc.News.SentimentScore
		sig.NewsSentimentScore = &score
	}
	if sig.SocialMentionCount24h == nil && rc.SocialMentions != nil {
		count := rc.SocialMentions.MentionCount24h
		sig.SocialMentionCount24h = &count
	}

	return sig
}

// ProcessMarket runs the full per-market pipeline: quality filter, rule
// evaluation, confidence adjustment, signal construction, and optional
// persistence. Persistence is best effort: a store failure is logged and the
// signal is still returned.
func (g *Generator) ProcessMarket(ctx context.Context, m domain.Market, rc RuleContext, persist bool) ([]domain.Signal, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("signal: %w: market has no ID", domain.ErrInvalidMarket)
	}

	now := time.Now().UTC()
	if skip, reason := g.filter.ShouldSkip(m, now); skip {
		g.logger.Debug("skipping market",
			slog.String("slug", m.Slug), slog.String("reason", reason))
		return nil, nil
	}

	candidates := g.EvaluateMarket(ctx, m, rc)
	if len(candidates) == 0 {
		return nil, nil
	}

	var signals []domain.Signal
	for _, c := range candidates {
		adjusted := g.adjustConfidence(c, m, now)
		if adjusted < g.minConfidence {
			g.logger.Debug("dropping candidate after quality adjustment",
				slog.String("slug", m.Slug),
				slog.String("type", string(c.Type)),
				slog.Float64("confidence", adjusted))
			continue
		}
		c.Confidence = round2(adjusted)

		sig := g.buildSignal(m, c, rc)
		signals = append(signals, sig)

		g.logger.Info("generated signal",
			slog.String("signal_id", sig.ID),
			slog.String("type", string(sig.Type)),
			slog.String("direction", string(sig.Direction)),
			slog.Float64("confidence", sig.Confidence),
			slog.String("market", m.Slug))

		if persist && g.store != nil {
			if err := g.store.CreateSignal(ctx, sig); err != nil {
				g.logger.Error("failed to persist signal",
					slog.String("signal_id", sig.ID), slog.Any("error", err))
			}
		}
	}

	return signals, nil
}
