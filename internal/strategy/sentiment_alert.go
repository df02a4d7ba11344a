package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/internal/indicator"
)

// SentimentAlertStrategy emits an ALERT when the aggregated news
// sentiment is strongly one-sided. It never emits BUY or SELL: sentiment
// alone is a heads-up, not a trade recommendation.
type SentimentAlertStrategy struct{}

func (s *SentimentAlertStrategy) Name() string { return "sentiment_alert" }

func (s *SentimentAlertStrategy) Evaluate(in Input) ([]contracts.Signal, error) {
	if !in.Sentiment.HasData {
		return nil, contracts.ErrNoSentimentData
	}

	threshold := in.Config.Param("threshold", 0.5)
	minItems := int(in.Config.Param("min_items", 3))

	if in.Sentiment.Contributing < minItems {
		return nil, contracts.ErrNoSentimentData
	}

	score := in.Sentiment.WeightedScore
	if score < threshold && score > -threshold {
		return nil, nil
	}

	tone := "bullish"
	if score < 0 {
		tone = "bearish"
	}

	close, _ := in.Indicators.Get(indicator.NameClose)

	return []contracts.Signal{{
		InstrumentID: in.Instrument.ID,
		Date:         in.Date,
		Strategy:     s.Name(),
		Kind:         contracts.SignalAlert,
		Strength:     clamp01(abs(score)),
		Reason:       fmt.Sprintf("News sentiment strongly %s: %.2f over %d items", tone, score, in.Sentiment.Contributing),
		TriggerPrice: decimal.NewFromFloat(close),
		Evidence: map[string]float64{
			"weighted_score": score,
			"contributing":   float64(in.Sentiment.Contributing),
			"low_confidence": float64(in.Sentiment.LowConfidence),
			"threshold":      threshold,
		},
		GeneratedAt: time.Now(),
	}}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
