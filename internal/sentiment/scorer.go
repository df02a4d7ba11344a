package sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
	"github.com/Ziarant/StarPupil/pkg/redis"
)

// Scorer deduplicates oracle calls by news-text identity. Scores are
// cached in Redis across runs and in memory within a run, so identical
// text is scored at most once no matter how many instruments or workers
// ask for it.
type Scorer struct {
	oracle  contracts.SentimentOracle
	cache   *redis.Cache
	limiter *redis.RateLimiter
	logger  *logger.Logger

	mu    sync.Mutex
	inRun map[string]contracts.SentimentScore
}

// oracleRateLimit bounds oracle calls across all workers and processes.
var oracleRateLimit = redis.RateLimitConfig{
	Key:    "oracle",
	Limit:  60,
	Window: time.Minute,
}

// NewScorer creates a caching scorer around the given oracle.
func NewScorer(oracle contracts.SentimentOracle, cache *redis.Cache, limiter *redis.RateLimiter, log *logger.Logger) *Scorer {
	return &Scorer{
		oracle:  oracle,
		cache:   cache,
		limiter: limiter,
		logger:  log.WithField("component", "sentiment_scorer"),
		inRun:   make(map[string]contracts.SentimentScore),
	}
}

// Score returns the sentiment for text, consulting the in-run map, then
// Redis, then the oracle. Oracle failures are returned unclassified; the
// caller decides whether sentiment is required.
func (s *Scorer) Score(ctx context.Context, text string) (contracts.SentimentScore, error) {
	key := TextHash(text)

	s.mu.Lock()
	if score, ok := s.inRun[key]; ok {
		s.mu.Unlock()
		return score, nil
	}
	s.mu.Unlock()

	var cached contracts.SentimentScore
	found, err := s.cache.Get(ctx, redis.SentimentKey(key), &cached)
	if err != nil {
		s.logger.WithError(err).Warn("Sentiment cache read failed")
	}
	if found {
		s.remember(key, cached)
		return cached, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, oracleRateLimit); err != nil {
			return contracts.SentimentScore{}, err
		}
	}

	score, err := s.oracle.Score(ctx, text)
	if err != nil {
		return contracts.SentimentScore{}, err
	}

	if err := s.cache.Set(ctx, redis.SentimentKey(key), score, redis.TTLSentiment); err != nil {
		s.logger.WithError(err).Warn("Sentiment cache write failed")
	}
	s.remember(key, score)

	return score, nil
}

// Reset clears the in-run dedup map. Called at the start of each
// pipeline run.
func (s *Scorer) Reset() {
	s.mu.Lock()
	s.inRun = make(map[string]contracts.SentimentScore)
	s.mu.Unlock()
}

func (s *Scorer) remember(key string, score contracts.SentimentScore) {
	s.mu.Lock()
	s.inRun[key] = score
	s.mu.Unlock()
}

// TextHash returns the SHA-256 hex digest used as the identity of a
// news text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
