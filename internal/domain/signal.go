package domain

import "time"

// SignalType identifies which rule produced a signal.
type SignalType string

const (
	SignalSentimentDivergence SignalType = "SENTIMENT_DIVERGENCE"
	SignalVolumeSurge         SignalType = "VOLUME_SURGE"
	SignalSocialSpike         SignalType = "SOCIAL_SPIKE"
	SignalPriceMomentum       SignalType = "PRICE_MOMENTUM"
)

// SignalDirection is the recommended trade direction.
type SignalDirection string

const (
	DirectionBuy  SignalDirection = "BUY"
	DirectionSell SignalDirection = "SELL"
)

// SignalStatus is the lifecycle state of a signal. ACTIVE signals are still
// being tracked; the other three states are terminal.
type SignalStatus string

const (
	StatusActive       SignalStatus = "ACTIVE"
	StatusResolvedWin  SignalStatus = "RESOLVED_WIN"
	StatusResolvedLoss SignalStatus = "RESOLVED_LOSS"
	StatusExpired      SignalStatus = "EXPIRED"
)

// Terminal reports whether the status permits no further tracking mutation.
func (s SignalStatus) Terminal() bool {
	return s == StatusResolvedWin || s == StatusResolvedLoss || s == StatusExpired
}

// Candidate is a potential signal detected by a single rule. Candidates are
// ephemeral: they are either promoted to a Signal by the generator or
// discarded, never persisted.
type Candidate struct {
	Type       SignalType
	Direction  SignalDirection
	Confidence float64
	Reasoning  string

	// Context that triggered the rule, carried into the Signal when set.
	NewsSentimentScore    *float64
	SocialMentionCount24h *int
	SocialSentimentScore  *float64
}

// Signal is a trade recommendation with the full market context frozen at
// generation time plus a mutable tracking block that records how the market
// moved at fixed horizons after the signal fired.
type Signal struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Market context at signal time.
	MarketID       string     `json:"market_id"`
	MarketQuestion string     `json:"market_question"`
	MarketSlug     string     `json:"market_slug,omitempty"`
	MarketEndDate  *time.Time `json:"market_end_date,omitempty"`

	// Signal details.
	Type       SignalType      `json:"signal_type"`
	Direction  SignalDirection `json:"direction"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`

	// Market state at signal time.
	EntryPrice       float64    `json:"entry_price"`
	EntryVolume24h   float64    `json:"entry_volume_24h"`
	EntryVolumeTotal float64    `json:"entry_volume_total"`
	EntryLiquidity   float64    `json:"entry_liquidity"`
	MarketTier       MarketTier `json:"market_tier"`

	// External context at signal time.
	NewsSentimentScore    *float64 `json:"news_sentiment_score,omitempty"`
	SocialMentionCount24h *int     `json:"social_mention_count_24h,omitempty"`
	SocialSentimentScore  *float64 `json:"social_sentiment_score,omitempty"`

	// Tracking block. Each horizon price is written at most once, in time
	// order, by the tracker.
	Price1h           *float64 `json:"price_1h,omitempty"`
	Price24h          *float64 `json:"price_24h,omitempty"`
	Price7d           *float64 `json:"price_7d,omitempty"`
	PriceAtResolution *float64 `json:"price_at_resolution,omitempty"`

	Gain1hPct    *float64 `json:"gain_1h_pct,omitempty"`
	Gain24hPct   *float64 `json:"gain_24h_pct,omitempty"`
	Gain7dPct    *float64 `json:"gain_7d_pct,omitempty"`
	GainFinalPct *float64 `json:"gain_final_pct,omitempty"`

	Status     SignalStatus `json:"status"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

// CalculateGain returns the percentage gain at the given price relative to
// the entry price, oriented by direction: a BUY profits when the price rises,
// a SELL profits when it falls. This one formula is used for every horizon
// and for final resolution.
func (s Signal) CalculateGain(currentPrice float64) float64 {
	if s.Direction == DirectionBuy {
		return (currentPrice - s.EntryPrice) / s.EntryPrice * 100
	}
	return (s.EntryPrice - currentPrice) / s.EntryPrice * 100
}

// SignalUpdate is a partial patch applied by SignalStore.UpdateSignal. Only
// non-nil fields are written, so tracking checkpoints never overwrite each
// other.
type SignalUpdate struct {
	Price1h           *float64
	Price24h          *float64
	Price7d           *float64
	PriceAtResolution *float64

	Gain1hPct    *float64
	Gain24hPct   *float64
	Gain7dPct    *float64
	GainFinalPct *float64

	Status     *SignalStatus
	ResolvedAt *time.Time
}

// SignalStats aggregates signal performance for the track record.
type SignalStats struct {
	TotalSignals    int     `json:"total_signals"`
	ActiveSignals   int     `json:"active_signals"`
	ResolvedSignals int     `json:"resolved_signals"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"win_rate"`
	AvgGainPct      float64 `json:"avg_gain_pct"`
	BestGainPct     float64 `json:"best_gain_pct"`
	WorstGainPct    float64 `json:"worst_gain_pct"`
}
