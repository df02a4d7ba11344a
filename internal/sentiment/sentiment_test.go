package sentiment

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
	"github.com/Ziarant/StarPupil/pkg/redis"
)

func TestAggregateEmptyInputHasNoData(t *testing.T) {
	agg := Aggregate(nil, 0.3)

	assert.False(t, agg.HasData)
	assert.Zero(t, agg.WeightedScore)
	assert.Zero(t, agg.Contributing)
}

func TestAggregateWeightedMean(t *testing.T) {
	scores := []contracts.SentimentScore{
		{Score: 1.0, Confidence: 0.8},
		{Score: -0.5, Confidence: 0.4},
	}

	agg := Aggregate(scores, 0.3)

	require.True(t, agg.HasData)
	assert.Equal(t, 2, agg.Contributing)
	assert.Zero(t, agg.LowConfidence)
	// (1.0*0.8 + -0.5*0.4) / (0.8 + 0.4) = 0.6 / 1.2
	assert.InDelta(t, 0.5, agg.WeightedScore, 1e-12)
}

func TestAggregateConfidenceFloor(t *testing.T) {
	scores := []contracts.SentimentScore{
		{Score: 0.9, Confidence: 0.1}, // below floor: excluded but counted
		{Score: -0.2, Confidence: 0.7},
	}

	agg := Aggregate(scores, 0.3)

	require.True(t, agg.HasData)
	assert.Equal(t, 1, agg.Contributing)
	assert.Equal(t, 1, agg.LowConfidence)
	assert.InDelta(t, -0.2, agg.WeightedScore, 1e-12)
}

func TestAggregateAllBelowFloor(t *testing.T) {
	scores := []contracts.SentimentScore{
		{Score: 0.9, Confidence: 0.1},
		{Score: 0.8, Confidence: 0.2},
	}

	agg := Aggregate(scores, 0.5)

	assert.False(t, agg.HasData)
	assert.Equal(t, 2, agg.LowConfidence)
}

// A neutral score of zero with data present is not "no data".
func TestAggregateNeutralIsData(t *testing.T) {
	agg := Aggregate([]contracts.SentimentScore{{Score: 0, Confidence: 0.9}}, 0.3)

	assert.True(t, agg.HasData)
	assert.Zero(t, agg.WeightedScore)
	assert.Equal(t, 1, agg.Contributing)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    contracts.SentimentScore
		wantErr bool
	}{
		{
			name: "plain json",
			in:   `{"score": -0.4, "confidence": 0.85}`,
			want: contracts.SentimentScore{Score: -0.4, Confidence: 0.85},
		},
		{
			name: "fenced json",
			in:   "```json\n{\"score\": 0.6, \"confidence\": 0.7}\n```",
			want: contracts.SentimentScore{Score: 0.6, Confidence: 0.7},
		},
		{
			name:    "score out of range",
			in:      `{"score": 1.5, "confidence": 0.5}`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			in:      `{"score": 0.5, "confidence": 1.5}`,
			wantErr: true,
		},
		{
			name:    "not json",
			in:      "the market looks bullish",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScore(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeOracle counts calls and returns a fixed score per text.
type fakeOracle struct {
	calls int32
	err   error
}

func (f *fakeOracle) Score(ctx context.Context, text string) (contracts.SentimentScore, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return contracts.SentimentScore{}, f.err
	}
	return contracts.SentimentScore{Score: 0.5, Confidence: 0.9}, nil
}

func newTestScorer(oracle contracts.SentimentOracle) *Scorer {
	log := logger.NewWriter(io.Discard, "error")
	client := redis.Disabled()
	return NewScorer(oracle, redis.NewCache(client, "starpupil"), nil, log)
}

func TestScorerDeduplicatesIdenticalText(t *testing.T) {
	oracle := &fakeOracle{}
	scorer := newTestScorer(oracle)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		score, err := scorer.Score(ctx, "same headline")
		require.NoError(t, err)
		assert.Equal(t, 0.5, score.Score)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&oracle.calls))
}

func TestScorerDistinctTexts(t *testing.T) {
	oracle := &fakeOracle{}
	scorer := newTestScorer(oracle)

	ctx := context.Background()
	_, err := scorer.Score(ctx, "headline one")
	require.NoError(t, err)
	_, err = scorer.Score(ctx, "headline two")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&oracle.calls))
}

func TestScorerPropagatesOracleError(t *testing.T) {
	oracle := &fakeOracle{err: contracts.Transient("oracle score", errors.New("rate limited"))}
	scorer := newTestScorer(oracle)

	_, err := scorer.Score(context.Background(), "headline")
	require.Error(t, err)
	assert.True(t, contracts.IsTransient(err))
}

func TestScorerConcurrentAccess(t *testing.T) {
	oracle := &fakeOracle{}
	scorer := newTestScorer(oracle)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = scorer.Score(context.Background(), "same headline")
		}()
	}
	wg.Wait()

	// Without redis the in-run map is the only dedup layer; concurrent
	// first calls may race, but never more calls than goroutines.
	assert.LessOrEqual(t, atomic.LoadInt32(&oracle.calls), int32(16))
}

func TestTextHashStable(t *testing.T) {
	assert.Equal(t, TextHash("abc"), TextHash("abc"))
	assert.NotEqual(t, TextHash("abc"), TextHash("abd"))
	assert.Len(t, TextHash("abc"), 64)
}
