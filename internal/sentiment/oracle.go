package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

const scorePrompt = `You are a financial news sentiment rater.
Given a news item about a listed company, respond with a single JSON object:
{"score": <float in [-1,1], negative=bearish positive=bullish>, "confidence": <float in [0,1]>}
Respond with the JSON object only, no other text.`

// OracleClient scores news text against an OpenAI-compatible
// chat-completions endpoint. Calls are rate-limited in-process so the
// oracle's load is bounded independently of instrument parallelism.
type OracleClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewOracleClient creates an oracle client from config.
func NewOracleClient(cfg config.OracleConfig, log *logger.Logger) (*OracleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &OracleClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:  log.WithField("component", "sentiment_oracle"),
	}, nil
}

// Score rates one news text. Rate-limit and upstream 5xx failures come
// back as TransientError; empty input and unparseable replies are
// PermanentError.
func (o *OracleClient) Score(ctx context.Context, text string) (contracts.SentimentScore, error) {
	if strings.TrimSpace(text) == "" {
		return contracts.SentimentScore{}, contracts.Permanent("oracle score", errors.New("empty text"))
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return contracts.SentimentScore{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scorePrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return contracts.SentimentScore{}, classifyOracleErr(err)
	}

	if len(resp.Choices) == 0 {
		return contracts.SentimentScore{}, contracts.Permanent("oracle score", errors.New("empty response"))
	}

	score, err := parseScore(resp.Choices[0].Message.Content)
	if err != nil {
		return contracts.SentimentScore{}, contracts.Permanent("oracle score", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"score":      score.Score,
		"confidence": score.Confidence,
		"text_len":   len(text),
	}).Debug("Scored news text")

	score.ScoredAt = time.Now()
	return score, nil
}

// classifyOracleErr maps SDK errors onto the pipeline error taxonomy.
func classifyOracleErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return contracts.Transient("oracle score", err)
		}
		return contracts.Permanent("oracle score", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Network-level failures are worth retrying.
	return contracts.Transient("oracle score", err)
}

// parseScore extracts the JSON verdict from the model reply, tolerating
// code fences around it.
func parseScore(content string) (contracts.SentimentScore, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var verdict struct {
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return contracts.SentimentScore{}, fmt.Errorf("malformed oracle reply: %w", err)
	}

	if verdict.Score < -1 || verdict.Score > 1 {
		return contracts.SentimentScore{}, fmt.Errorf("oracle score %v out of range", verdict.Score)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return contracts.SentimentScore{}, fmt.Errorf("oracle confidence %v out of range", verdict.Confidence)
	}

	return contracts.SentimentScore{
		Score:      verdict.Score,
		Confidence: verdict.Confidence,
	}, nil
}
