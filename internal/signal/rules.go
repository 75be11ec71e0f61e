package signal

import (
	"fmt"
	"math"

	"github.com/polyedge/polyedge/internal/domain"
)

// RuleContext carries everything a rule may consult for one market. Nil
// pointers mean the data was unavailable this scan; rules that need a missing
// input decline rather than error.
type RuleContext struct {
	News           *domain.NewsSentiment
	SocialMentions *domain.SocialMention
	SocialSent     *domain.SocialSentiment

	PreviousPrice     *float64
	PreviousVolume24h *float64
}

// Rule evaluates one detection heuristic against a market. A nil candidate
// means the rule declined.
type Rule interface {
	Name() string
	Evaluate(m domain.Market, rc RuleContext) *domain.Candidate
}

// DefaultRules returns the standard rule set in evaluation order.
func DefaultRules(cfg RulesConfig) []Rule {
	return []Rule{
		&SentimentDivergenceRule{
			Threshold:            cfg.SentimentDivergenceThreshold,
			MinSentimentStrength: cfg.MinSentimentStrength,
			MinArticleCount:      cfg.MinArticleCount,
		},
		&VolumeSurgeRule{
			VolumeMultiplier:     cfg.VolumeSurgeMultiplier,
			PriceChangeThreshold: 0.05,
		},
		&SocialSpikeRule{
			MentionMultiplier:  cfg.SocialSpikeMultiplier,
			SentimentThreshold: 0.3,
		},
		&PriceMomentumRule{
			PriceThreshold: cfg.PriceMomentumThreshold,
			MinVolumeRatio: 1.5,
		},
	}
}

// RulesConfig holds the tunable thresholds for the default rule set.
type RulesConfig struct {
	SentimentDivergenceThreshold float64
	VolumeSurgeMultiplier        float64
	SocialSpikeMultiplier        float64
	PriceMomentumThreshold       float64
	MinSentimentStrength         float64
	MinArticleCount              int
}

// round2 keeps confidences stable at two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SentimentDivergenceRule fires when news sentiment strongly contradicts the
// market price: bullish coverage on a cheap market or bearish coverage on an
// expensive one. Neutral sentiment never fires.
type SentimentDivergenceRule struct {
	Threshold            float64
	MinSentimentStrength float64
	MinArticleCount      int
}

func (r *SentimentDivergenceRule) Name() string { return "sentiment_divergence" }

func (r *SentimentDivergenceRule) Evaluate(m domain.Market, rc RuleContext) *domain.Candidate {
	if rc.News == nil || m.CurrentPrice == nil {
		return nil
	}

	sentiment := rc.News.SentimentScore
	price := *m.CurrentPrice

	// The dead zone: sentiment near zero carries no direction.
	if math.Abs(sentiment) < r.MinSentimentStrength {
		return nil
	}
	if rc.News.ArticleCount < r.MinArticleCount {
		return nil
	}
	// Sentiment signals are unreliable at the price extremes.
	if price < 0.05 || price > 0.95 {
		return nil
	}

	var (
		direction  domain.SignalDirection
		divergence float64
		reasoning  string
	)

	if sentiment > r.MinSentimentStrength {
		// Bullish coverage needs a price with room to grow.
		if price > 0.70 {
			return nil
		}
		// Maps sentiment in [0.3, 1.0] to an expected price of [0.59, 0.80].
		priceExpectation := 0.5 + sentiment*0.3
		divergence = priceExpectation - price
		if divergence < r.Threshold {
			return nil
		}
		direction = domain.DirectionBuy
		reasoning = fmt.Sprintf(
			"Strongly positive news sentiment (%+.2f) suggests higher probability than current price (%.0f%%). "+
				"Based on %d articles, the market appears undervalued by %.0f%%.",
			sentiment, price*100, rc.News.ArticleCount, divergence*100)
	} else {
		// Bearish coverage needs a price with room to fall.
		if price < 0.30 {
			return nil
		}
		priceExpectation := 0.5 + sentiment*0.3
		divergence = price - priceExpectation
		if divergence < r.Threshold {
			return nil
		}
		direction = domain.DirectionSell
		reasoning = fmt.Sprintf(
			"Strongly negative news sentiment (%+.2f) suggests lower probability than current price (%.0f%%). "+
				"Based on %d articles, the market appears overvalued by %.0f%%.",
			sentiment, price*100, rc.News.ArticleCount, divergence*100)
	}

	sentimentFactor := math.Min(1.0, math.Abs(sentiment)/0.6)
	divergenceFactor := math.Min(1.0, divergence/0.30)
	articleFactor := math.Min(1.0, float64(rc.News.ArticleCount)/15)

	confidence := sentimentFactor*0.4 + divergenceFactor*0.4 + articleFactor*0.2
	confidence = math.Max(0.3, math.Min(0.9, confidence))

	score := sentiment
	return &domain.Candidate{
		Type:               domain.SignalSentimentDivergence,
		Direction:          direction,
		Confidence:         round2(confidence),
		Reasoning:          reasoning,
		NewsSentimentScore: &score,
	}
}

// VolumeSurgeRule fires when 24h volume jumps well past the previous scan's
// level while the price moves. Volume plus movement reads as informed flow;
// the signal follows the move.
type VolumeSurgeRule struct {
	VolumeMultiplier     float64
	PriceChangeThreshold float64
}

func (r *VolumeSurgeRule) Name() string { return "volume_surge" }

func (r *VolumeSurgeRule) Evaluate(m domain.Market, rc RuleContext) *domain.Candidate {
	if rc.PreviousPrice == nil || rc.PreviousVolume24h == nil {
		return nil
	}
	if m.CurrentPrice == nil || *rc.PreviousVolume24h == 0 {
		return nil
	}

	volumeRatio := m.Volume24h / *rc.PreviousVolume24h
	if volumeRatio < r.VolumeMultiplier {
		return nil
	}

	priceChange := (*m.CurrentPrice - *rc.PreviousPrice) / *rc.PreviousPrice
	if math.Abs(priceChange) < r.PriceChangeThreshold {
		return nil
	}

	var (
		direction domain.SignalDirection
		reasoning string
	)
	if priceChange > 0 {
		direction = domain.DirectionBuy
		reasoning = fmt.Sprintf(
			"Volume surged %.1fx (from $%.0f to $%.0f) with price rising %+.1f%%. "+
				"Strong buying pressure suggests continued upward momentum.",
			volumeRatio, *rc.PreviousVolume24h, m.Volume24h, priceChange*100)
	} else {
		direction = domain.DirectionSell
		reasoning = fmt.Sprintf(
			"Volume surged %.1fx (from $%.0f to $%.0f) with price falling %+.1f%%. "+
				"Strong selling pressure suggests continued downward momentum.",
			volumeRatio, *rc.PreviousVolume24h, m.Volume24h, priceChange*100)
	}

	// 3x surge -> 0.5, 5x and above -> 1.0.
	confidence := math.Min(1.0, (volumeRatio-r.VolumeMultiplier)/2+0.5)

	return &domain.Candidate{
		Type:       domain.SignalVolumeSurge,
		Direction:  direction,
		Confidence: round2(confidence),
		Reasoning:  reasoning,
	}
}

// SocialSpikeRule fires when the last hour's mention count spikes far above
// the 24h hourly average and social sentiment leans clearly one way.
type SocialSpikeRule struct {
	MentionMultiplier  float64
	SentimentThreshold float64
}

func (r *SocialSpikeRule) Name() string { return "social_spike" }

func (r *SocialSpikeRule) Evaluate(m domain.Market, rc RuleContext) *domain.Candidate {
	if rc.SocialMentions == nil || rc.SocialSent == nil {
		return nil
	}

	avgHourly := 1.0
	if rc.SocialMentions.MentionCount24h > 0 {
		avgHourly = float64(rc.SocialMentions.MentionCount24h) / 24
	}
	hourlyRatio := 0.0
	if avgHourly > 0 {
		hourlyRatio = float64(rc.SocialMentions.MentionCount1h) / avgHourly
	}

	if hourlyRatio < r.MentionMultiplier {
		return nil
	}
	if math.Abs(rc.SocialSent.SentimentScore) < r.SentimentThreshold {
		return nil
	}

	var (
		direction domain.SignalDirection
		reasoning string
	)
	if rc.SocialSent.SentimentScore > 0 {
		direction = domain.DirectionBuy
		reasoning = fmt.Sprintf(
			"Social mentions spiked %.1fx above average (%d in last hour vs %.0f/hr average) "+
				"with strongly positive sentiment (%+.2f). Viral bullish activity may drive price higher.",
			hourlyRatio, rc.SocialMentions.MentionCount1h, avgHourly, rc.SocialSent.SentimentScore)
	} else {
		direction = domain.DirectionSell
		reasoning = fmt.Sprintf(
			"Social mentions spiked %.1fx above average (%d in last hour vs %.0f/hr average) "+
				"with strongly negative sentiment (%+.2f). Viral bearish activity may drive price lower.",
			hourlyRatio, rc.SocialMentions.MentionCount1h, avgHourly, rc.SocialSent.SentimentScore)
	}

	spikeConfidence := math.Min(1.0, (hourlyRatio-r.MentionMultiplier)/r.MentionMultiplier+0.5)
	confidence := (spikeConfidence + math.Abs(rc.SocialSent.SentimentScore)) / 2

	count := rc.SocialMentions.MentionCount24h
	score := rc.SocialSent.SentimentScore
	return &domain.Candidate{
		Type:                  domain.SignalSocialSpike,
		Direction:             direction,
		Confidence:            round2(confidence),
		Reasoning:             reasoning,
		SocialMentionCount24h: &count,
		SocialSentimentScore:  &score,
	}
}

// PriceMomentumRule fires on a large price move since the previous scan. A
// volume increase confirms the move; without confirmation the move must be
// half again past the threshold.
type PriceMomentumRule struct {
	PriceThreshold float64
	MinVolumeRatio float64
}

func (r *PriceMomentumRule) Name() string { return "price_momentum" }

func (r *PriceMomentumRule) Evaluate(m domain.Market, rc RuleContext) *domain.Candidate {
	if rc.PreviousPrice == nil || m.CurrentPrice == nil {
		return nil
	}

	priceChange := (*m.CurrentPrice - *rc.PreviousPrice) / *rc.PreviousPrice
	if math.Abs(priceChange) < r.PriceThreshold {
		return nil
	}

	volumeConfirmed := false
	volumeRatio := 0.0
	if rc.PreviousVolume24h != nil && *rc.PreviousVolume24h > 0 {
		volumeRatio = m.Volume24h / *rc.PreviousVolume24h
		volumeConfirmed = volumeRatio >= r.MinVolumeRatio
	}

	if !volumeConfirmed && math.Abs(priceChange) < r.PriceThreshold*1.5 {
		return nil
	}

	volNote := ""
	if volumeConfirmed {
		volNote = fmt.Sprintf(" with %.1fx volume increase", volumeRatio)
	}

	var (
		direction domain.SignalDirection
		reasoning string
	)
	if priceChange > 0 {
		direction = domain.DirectionBuy
		reasoning = fmt.Sprintf(
			"Price jumped %+.1f%%%s. Strong upward momentum suggests continued gains in the short term.",
			priceChange*100, volNote)
	} else {
		direction = domain.DirectionSell
		reasoning = fmt.Sprintf(
			"Price dropped %+.1f%%%s. Strong downward momentum suggests continued decline in the short term.",
			priceChange*100, volNote)
	}

	confidence := math.Min(1.0, math.Abs(priceChange)/r.PriceThreshold*0.5)
	if volumeConfirmed {
		confidence += 0.3
	}
	confidence = math.Min(1.0, confidence)

	return &domain.Candidate{
		Type:       domain.SignalPriceMomentum,
		Direction:  direction,
		Confidence: round2(confidence),
		Reasoning:  reasoning,
	}
}
