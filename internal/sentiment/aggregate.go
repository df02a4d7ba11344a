// Package sentiment scores news text through an external oracle and
// reduces per-news scores into one per-instrument aggregate.
package sentiment

import (
	"github.com/Ziarant/StarPupil/internal/contracts"
)

// Aggregate reduces sentiment scores over a lookback window into one
// confidence-weighted mean. Scores with confidence below floor are
// excluded from the mean but counted for observability. Empty or fully
// filtered input yields HasData=false; zero remains a valid neutral score
// when data exists.
func Aggregate(scores []contracts.SentimentScore, floor float64) contracts.SentimentAggregate {
	agg := contracts.SentimentAggregate{}

	var weighted, totalWeight float64
	for _, s := range scores {
		if s.Confidence < floor {
			agg.LowConfidence++
			continue
		}
		weighted += s.Score * s.Confidence
		totalWeight += s.Confidence
		agg.Contributing++
	}

	if agg.Contributing == 0 || totalWeight == 0 {
		return agg
	}

	agg.HasData = true
	agg.WeightedScore = weighted / totalWeight
	return agg
}
