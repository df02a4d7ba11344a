package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/internal/indicator"
	"github.com/Ziarant/StarPupil/internal/sentiment"
	"github.com/Ziarant/StarPupil/internal/strategy"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// SentimentScorer is the slice of the caching scorer the orchestrator
// needs; Reset clears per-run dedup state.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (contracts.SentimentScore, error)
	Reset()
}

// Deps bundles everything an Orchestrator calls out to.
type Deps struct {
	Instruments     contracts.InstrumentRepository
	Prices          contracts.PriceRepository
	News            contracts.NewsRepository
	Signals         contracts.SignalRepository
	StrategyConfigs contracts.StrategyConfigRepository
	MarketData      contracts.MarketDataSource
	NewsSource      contracts.NewsSource
	Scorer          SentimentScorer
	Engine          *strategy.Engine
	Notifier        contracts.Notifier
}

// Orchestrator drives the per-instrument state machine across a bounded
// worker pool. Instruments are isolated: one instrument's failure never
// touches another's progress.
type Orchestrator struct {
	deps   Deps
	cfg    config.PipelineConfig
	params indicator.Params
	logger *logger.Logger
}

// New creates a pipeline orchestrator.
func New(deps Deps, cfg config.PipelineConfig, log *logger.Logger) *Orchestrator {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		params: indicator.DefaultParams(),
		logger: log.WithField("component", "pipeline"),
	}
}

// Run executes one full pipeline run for the given trading date. The
// returned summary covers every instrument that entered the run; the
// error is reserved for run-level problems (universe resolution, config
// load, cancellation before any work).
func (o *Orchestrator) Run(ctx context.Context, date time.Time) (RunSummary, error) {
	startedAt := time.Now()

	instruments, err := o.resolveUniverse(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("resolve universe: %w", err)
	}
	if len(instruments) == 0 {
		o.logger.Warn("No active instruments; nothing to do")
		return summarize(date, startedAt, nil), nil
	}

	configs, err := o.deps.StrategyConfigs.ListEnabled(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load strategy configs: %w", err)
	}

	o.deps.Scorer.Reset()

	o.logger.WithFields(map[string]interface{}{
		"date":        date.Format("2006-01-02"),
		"instruments": len(instruments),
		"strategies":  len(configs),
		"workers":     o.cfg.MaxParallel,
	}).Info("Pipeline run started")

	instCh := make(chan contracts.Instrument, len(instruments))
	resultCh := make(chan InstrumentResult, len(instruments))

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.MaxParallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range instCh {
				resultCh <- o.processInstrument(ctx, inst, date, configs)
			}
		}()
	}

	for _, inst := range instruments {
		instCh <- inst
	}
	close(instCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]InstrumentResult, 0, len(instruments))
	for result := range resultCh {
		results = append(results, result)
	}

	summary := summarize(date, startedAt, results)

	o.logger.WithFields(map[string]interface{}{
		"done":       summary.Done,
		"failed":     summary.Failed,
		"inserted":   summary.Inserted,
		"duplicates": summary.Duplicates,
		"notified":   summary.Notified,
		"duration":   summary.FinishedAt.Sub(summary.StartedAt),
	}).Info("Pipeline run completed")

	return summary, nil
}

// resolveUniverse returns the instruments to process: the configured
// static symbol list (upserted on first sight) or all active store rows.
func (o *Orchestrator) resolveUniverse(ctx context.Context) ([]contracts.Instrument, error) {
	if len(o.cfg.Symbols) == 0 {
		return o.deps.Instruments.ListActive(ctx)
	}

	out := make([]contracts.Instrument, 0, len(o.cfg.Symbols))
	for _, entry := range o.cfg.Symbols {
		exchange, symbol, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("bad symbol %q, want EXCHANGE:SYMBOL", entry)
		}

		inst, err := o.deps.Instruments.Upsert(ctx, &contracts.Instrument{
			Exchange: strings.TrimSpace(exchange),
			Symbol:   strings.TrimSpace(symbol),
			Active:   true,
		})
		if err != nil {
			return nil, err
		}
		if inst.Active {
			out = append(out, *inst)
		}
	}
	return out, nil
}

// processInstrument walks one instrument through the state machine.
// Every stage boundary is a cancellation point.
func (o *Orchestrator) processInstrument(ctx context.Context, inst contracts.Instrument, date time.Time, configs []contracts.StrategyConfig) InstrumentResult {
	result := InstrumentResult{Instrument: inst, Stage: StagePending}
	log := o.logger.WithField("instrument", inst.Key())

	fail := func(at Stage, err error) InstrumentResult {
		result.Stage = StageFailed
		result.FailedAt = at
		result.Reason = err.Error()
		log.WithError(err).WithField("stage", string(at)).Warn("Instrument failed")
		return result
	}

	// Fetching: price bars are required, news is best-effort.
	result.Stage = StageFetching
	if err := ctx.Err(); err != nil {
		return fail(StageFetching, err)
	}
	if err := o.fetchPrices(ctx, inst, date, &result); err != nil {
		return fail(StageFetching, err)
	}
	o.fetchAndScoreNews(ctx, inst, &result, log)

	// Computing: indicators from accumulated history.
	result.Stage = StageComputing
	if err := ctx.Err(); err != nil {
		return fail(StageComputing, err)
	}
	set, err := o.computeIndicators(ctx, inst, date)
	if err != nil {
		return fail(StageComputing, err)
	}

	// Evaluating: sentiment aggregate feeds the strategies alongside the
	// indicators; strategies are isolated from each other.
	result.Stage = StageEvaluating
	if err := ctx.Err(); err != nil {
		return fail(StageEvaluating, err)
	}
	agg := o.aggregateSentiment(ctx, inst, log)

	evaluated := o.deps.Engine.Evaluate(strategy.Input{
		Instrument: inst,
		Date:       date,
		Indicators: set,
		Sentiment:  agg,
	}, configs)
	result.Candidates = len(evaluated.Candidates)
	result.StrategyErrs = len(evaluated.Failures)
	if evaluated.AllFailed() {
		return fail(StageEvaluating, fmt.Errorf("all %d strategies failed", result.StrategyErrs))
	}

	// Persisting: dedup is the store's job; AlreadyExists is normal.
	result.Stage = StagePersisting
	if err := ctx.Err(); err != nil {
		return fail(StagePersisting, err)
	}
	var fresh []contracts.Signal
	for i := range evaluated.Candidates {
		sig := &evaluated.Candidates[i]
		outcome, err := o.deps.Signals.TryInsert(ctx, sig)
		if err != nil {
			return fail(StagePersisting, err)
		}
		if outcome == contracts.Inserted {
			result.Inserted++
			fresh = append(fresh, *sig)
		} else {
			result.Duplicates++
		}
	}

	// Notifying: only freshly inserted signals; failures never roll back.
	result.Stage = StageNotifying
	for _, sig := range fresh {
		if err := ctx.Err(); err != nil {
			return fail(StageNotifying, err)
		}
		if err := o.deps.Notifier.Notify(ctx, sig); err != nil {
			log.WithError(err).WithField("signal", sig.UniqueKey()).Warn("Notification failed")
			continue
		}
		result.Notified++
	}

	result.Stage = StageDone
	return result
}

func (o *Orchestrator) fetchPrices(ctx context.Context, inst contracts.Instrument, date time.Time, result *InstrumentResult) error {
	from := date.AddDate(0, 0, -o.cfg.PriceLookbackDays)

	var bars []contracts.PriceBar
	err := o.retryTransient(ctx, func() error {
		var err error
		bars, err = o.deps.MarketData.FetchPriceBars(ctx, inst, from, date)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch price bars: %w", err)
	}

	result.BarsFetched = len(bars)
	if err := o.deps.Prices.SaveBatch(ctx, bars); err != nil {
		return fmt.Errorf("save price bars: %w", err)
	}
	return nil
}

// fetchAndScoreNews pulls the news window and scores each item. Any
// failure here degrades the run to indicators-only for this instrument;
// it never fails the instrument.
func (o *Orchestrator) fetchAndScoreNews(ctx context.Context, inst contracts.Instrument, result *InstrumentResult, log *logger.Logger) {
	since := time.Now().Add(-time.Duration(o.cfg.NewsLookbackHours) * time.Hour)

	var items []contracts.NewsItem
	err := o.retryTransient(ctx, func() error {
		var err error
		items, err = o.deps.NewsSource.FetchNews(ctx, inst, since)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("News fetch failed; continuing without sentiment")
		return
	}

	stored, err := o.deps.News.SaveBatch(ctx, items)
	if err != nil {
		log.WithError(err).Warn("News save failed; continuing without sentiment")
		return
	}
	result.NewsFetched = len(stored)

	for _, item := range stored {
		if ctx.Err() != nil {
			return
		}

		score, err := o.deps.Scorer.Score(ctx, item.Text())
		if err != nil {
			log.WithError(err).WithField("news_id", item.ID).Warn("Sentiment scoring failed for item")
			continue
		}

		score.NewsID = item.ID
		if err := o.deps.News.SaveSentiment(ctx, score); err != nil {
			log.WithError(err).WithField("news_id", item.ID).Warn("Sentiment save failed")
			continue
		}
		result.NewsScored++
	}
}

func (o *Orchestrator) computeIndicators(ctx context.Context, inst contracts.Instrument, date time.Time) (contracts.IndicatorSet, error) {
	from := date.AddDate(0, 0, -o.cfg.PriceLookbackDays)
	bars, err := o.deps.Prices.GetRange(ctx, inst.ID, from, date)
	if err != nil {
		return contracts.IndicatorSet{}, fmt.Errorf("load price history: %w", err)
	}

	set, err := indicator.Compute(bars, o.params)
	if err != nil {
		return contracts.IndicatorSet{}, fmt.Errorf("compute indicators: %w", err)
	}
	return set, nil
}

func (o *Orchestrator) aggregateSentiment(ctx context.Context, inst contracts.Instrument, log *logger.Logger) contracts.SentimentAggregate {
	since := time.Now().Add(-time.Duration(o.cfg.NewsLookbackHours) * time.Hour)

	scores, err := o.deps.News.GetSentimentSince(ctx, inst.ID, since)
	if err != nil {
		log.WithError(err).Warn("Sentiment load failed; evaluating without sentiment")
		return contracts.SentimentAggregate{}
	}

	return sentiment.Aggregate(scores, o.cfg.SentimentFloor)
}

// retryTransient runs fn with bounded exponential backoff. Permanent
// errors and cancellations return immediately; transient errors retry up
// to the configured attempt count.
func (o *Orchestrator) retryTransient(ctx context.Context, fn func() error) error {
	backoff := o.cfg.RateLimitBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !contracts.IsTransient(err) {
			return err
		}
		if attempt >= o.cfg.RetryAttempts {
			return err
		}

		o.logger.WithError(err).WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"backoff": backoff,
		}).Warn("Transient error; backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
