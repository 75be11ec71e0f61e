package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyedge/polyedge/internal/domain"
)

func marketWith(price float64, volume, volume24h float64) domain.Market {
	return domain.Market{
		ID:              "test-1",
		Question:        "Test market?",
		Slug:            "test-market",
		Active:          true,
		AcceptingOrders: true,
		CurrentPrice:    &price,
		Volume:          volume,
		Volume24h:       volume24h,
		Liquidity:       50_000,
	}
}

func TestSentimentDivergenceBuyOnBullishNewsLowPrice(t *testing.T) {
	rule := &SentimentDivergenceRule{Threshold: 0.15, MinSentimentStrength: 0.3, MinArticleCount: 5}

	m := marketWith(0.35, 100_000, 10_000)
	rc := RuleContext{News: &domain.NewsSentiment{
		SentimentScore: 0.7,
		ArticleCount:   10,
	}}

	c := rule.Evaluate(m, rc)
	require.NotNil(t, c)
	assert.Equal(t, domain.SignalSentimentDivergence, c.Type)
	assert.Equal(t, domain.DirectionBuy, c.Direction)
	assert.Greater(t, c.Confidence, 0.5)
	require.NotNil(t, c.NewsSentimentScore)
	assert.InDelta(t, 0.7, *c.NewsSentimentScore, 1e-9)
}

func TestSentimentDivergenceSellOnBearishNewsHighPrice(t *testing.T) {
	rule := &SentimentDivergenceRule{Threshold: 0.15, MinSentimentStrength: 0.3, MinArticleCount: 5}

	m := marketWith(0.75, 100_000, 10_000)
	rc := RuleContext{News: &domain.NewsSentiment{
		SentimentScore: -0.5,
		ArticleCount:   10,
	}}

	c := rule.Evaluate(m, rc)
	require.NotNil(t, c)
	assert.Equal(t, domain.DirectionSell, c.Direction)
}

func TestSentimentDivergenceDeadZone(t *testing.T) {
	rule := &SentimentDivergenceRule{Threshold: 0.20, MinSentimentStrength: 0.3, MinArticleCount: 5}

	// Sentiment at exactly +/-0.29 is inside the dead zone no matter how
	// mispriced the market looks.
	for _, score := range []float64{0.29, -0.29, 0.0, 0.1} {
		m := marketWith(0.20, 100_000, 10_000)
		c := rule.Evaluate(m, RuleContext{News: &domain.NewsSentiment{
			SentimentScore: score,
			ArticleCount:   20,
		}})
		assert.Nil(t, c, "score=%v must not fire", score)
	}
}

func TestSentimentDivergenceRequiresArticleFloor(t *testing.T) {
	rule := &SentimentDivergenceRule{Threshold: 0.15, MinSentimentStrength: 0.3, MinArticleCount: 5}

	m := marketWith(0.35, 100_000, 10_000)
	c := rule.Evaluate(m, RuleContext{News: &domain.NewsSentiment{
		SentimentScore: 0.7,
		ArticleCount:   4,
	}})
	assert.Nil(t, c)
}

func TestSentimentDivergenceSkipsAlignedPrice(t *testing.T) {
	rule := &SentimentDivergenceRule{Threshold: 0.20, MinSentimentStrength: 0.3, MinArticleCount: 5}

	// Bullish sentiment but the price is already high: no room to grow.
	m := marketWith(0.72, 100_000, 10_000)
	c := rule.Evaluate(m, RuleContext{News: &domain.NewsSentiment{
		SentimentScore: 0.8,
		ArticleCount:   10,
	}})
	assert.Nil(t, c)

	// Bearish sentiment but the price is already low.
	m = marketWith(0.25, 100_000, 10_000)
	c = rule.Evaluate(m, RuleContext{News: &domain.NewsSentiment{
		SentimentScore: -0.8,
		ArticleCount:   10,
	}})
	assert.Nil(t, c)
}

func TestSentimentDivergenceNilInputs(t *testing.T) {
	rule := &SentimentDivergenceRule{Threshold: 0.15, MinSentimentStrength: 0.3, MinArticleCount: 5}

	assert.Nil(t, rule.Evaluate(marketWith(0.35, 100_000, 10_000), RuleContext{}))

	noPrice := marketWith(0.35, 100_000, 10_000)
	noPrice.CurrentPrice = nil
	assert.Nil(t, rule.Evaluate(noPrice, RuleContext{News: &domain.NewsSentiment{
		SentimentScore: 0.7, ArticleCount: 10,
	}}))
}

func TestVolumeSurgeBuyOnSpikeWithPriceRise(t *testing.T) {
	rule := &VolumeSurgeRule{VolumeMultiplier: 3.0, PriceChangeThreshold: 0.05}

	// 5x volume with a 20% price rise.
	m := marketWith(0.60, 100_000, 50_000)
	prevPrice, prevVol := 0.50, 10_000.0
	c := rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol})

	require.NotNil(t, c)
	assert.Equal(t, domain.SignalVolumeSurge, c.Type)
	assert.Equal(t, domain.DirectionBuy, c.Direction)
	// ratio 5.0: (5-3)/2 + 0.5 = 1.5 clamped to 1.0
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
}

func TestVolumeSurgeSellOnSpikeWithPriceDrop(t *testing.T) {
	rule := &VolumeSurgeRule{VolumeMultiplier: 3.0, PriceChangeThreshold: 0.05}

	m := marketWith(0.40, 100_000, 40_000)
	prevPrice, prevVol := 0.50, 10_000.0
	c := rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol})

	require.NotNil(t, c)
	assert.Equal(t, domain.DirectionSell, c.Direction)
}

func TestVolumeSurgeNeedsPreviousState(t *testing.T) {
	rule := &VolumeSurgeRule{VolumeMultiplier: 3.0, PriceChangeThreshold: 0.05}

	m := marketWith(0.60, 100_000, 50_000)
	assert.Nil(t, rule.Evaluate(m, RuleContext{}))

	// Zero previous volume would divide by zero; the rule declines.
	prevPrice, prevVol := 0.50, 0.0
	assert.Nil(t, rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol}))
}

func TestVolumeSurgeNeedsPriceMovement(t *testing.T) {
	rule := &VolumeSurgeRule{VolumeMultiplier: 3.0, PriceChangeThreshold: 0.05}

	// Big volume, flat price.
	m := marketWith(0.51, 100_000, 50_000)
	prevPrice, prevVol := 0.50, 10_000.0
	assert.Nil(t, rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol}))
}

func TestSocialSpikeBuyOnViralBullishActivity(t *testing.T) {
	rule := &SocialSpikeRule{MentionMultiplier: 5.0, SentimentThreshold: 0.3}

	m := marketWith(0.50, 100_000, 10_000)
	rc := RuleContext{
		SocialMentions: &domain.SocialMention{
			MentionCount1h:  240, // vs 480/24 = 20/hr average -> 12x
			MentionCount24h: 480,
		},
		SocialSent: &domain.SocialSentiment{SentimentScore: 0.6},
	}

	c := rule.Evaluate(m, rc)
	require.NotNil(t, c)
	assert.Equal(t, domain.SignalSocialSpike, c.Type)
	assert.Equal(t, domain.DirectionBuy, c.Direction)
	require.NotNil(t, c.SocialMentionCount24h)
	assert.Equal(t, 480, *c.SocialMentionCount24h)
	// spike part clamps at 1.0, sentiment part 0.6 -> 0.8
	assert.InDelta(t, 0.8, c.Confidence, 1e-9)
}

func TestSocialSpikeNeedsDirectionalSentiment(t *testing.T) {
	rule := &SocialSpikeRule{MentionMultiplier: 5.0, SentimentThreshold: 0.3}

	m := marketWith(0.50, 100_000, 10_000)
	rc := RuleContext{
		SocialMentions: &domain.SocialMention{MentionCount1h: 240, MentionCount24h: 480},
		SocialSent:     &domain.SocialSentiment{SentimentScore: 0.1},
	}
	assert.Nil(t, rule.Evaluate(m, rc))
}

func TestSocialSpikeNeedsSpike(t *testing.T) {
	rule := &SocialSpikeRule{MentionMultiplier: 5.0, SentimentThreshold: 0.3}

	m := marketWith(0.50, 100_000, 10_000)
	rc := RuleContext{
		SocialMentions: &domain.SocialMention{MentionCount1h: 25, MentionCount24h: 480},
		SocialSent:     &domain.SocialSentiment{SentimentScore: 0.8},
	}
	assert.Nil(t, rule.Evaluate(m, rc))
}

func TestPriceMomentumWithVolumeConfirmation(t *testing.T) {
	rule := &PriceMomentumRule{PriceThreshold: 0.10, MinVolumeRatio: 1.5}

	// 12% move with 2x volume.
	m := marketWith(0.56, 100_000, 20_000)
	prevPrice, prevVol := 0.50, 10_000.0
	c := rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol})

	require.NotNil(t, c)
	assert.Equal(t, domain.SignalPriceMomentum, c.Type)
	assert.Equal(t, domain.DirectionBuy, c.Direction)
	// base 0.12/0.10*0.5 = 0.6, +0.3 confirmation = 0.9
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
	assert.Contains(t, c.Reasoning, "volume increase")
}

func TestPriceMomentumUnconfirmedNeedsBiggerMove(t *testing.T) {
	rule := &PriceMomentumRule{PriceThreshold: 0.10, MinVolumeRatio: 1.5}

	// 12% move with flat volume: under the 15% unconfirmed bar.
	m := marketWith(0.56, 100_000, 10_000)
	prevPrice, prevVol := 0.50, 10_000.0
	assert.Nil(t, rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol}))

	// 20% drop clears the bar even without volume.
	m = marketWith(0.40, 100_000, 10_000)
	c := rule.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol})
	require.NotNil(t, c)
	assert.Equal(t, domain.DirectionSell, c.Direction)
	assert.NotContains(t, c.Reasoning, "volume increase")
}

func TestConfidencesStayInRange(t *testing.T) {
	// Push every rule to its extremes and verify the [0,1] clamp holds.
	divergence := &SentimentDivergenceRule{Threshold: 0.05, MinSentimentStrength: 0.3, MinArticleCount: 1}
	m := marketWith(0.10, 100_000, 10_000)
	c := divergence.Evaluate(m, RuleContext{News: &domain.NewsSentiment{SentimentScore: 1.0, ArticleCount: 100}})
	require.NotNil(t, c)
	assert.LessOrEqual(t, c.Confidence, 0.9) // divergence caps at 0.9
	assert.GreaterOrEqual(t, c.Confidence, 0.3)

	surge := &VolumeSurgeRule{VolumeMultiplier: 3.0, PriceChangeThreshold: 0.05}
	m = marketWith(0.90, 100_000, 1_000_000)
	prevPrice, prevVol := 0.50, 1_000.0
	c = surge.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol})
	require.NotNil(t, c)
	assert.LessOrEqual(t, c.Confidence, 1.0)

	momentum := &PriceMomentumRule{PriceThreshold: 0.10, MinVolumeRatio: 1.5}
	m = marketWith(0.95, 100_000, 1_000_000)
	c = momentum.Evaluate(m, RuleContext{PreviousPrice: &prevPrice, PreviousVolume24h: &prevVol})
	require.NotNil(t, c)
	assert.LessOrEqual(t, c.Confidence, 1.0)
}
