package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/internal/market"
	"github.com/Ziarant/StarPupil/internal/news"
	"github.com/Ziarant/StarPupil/internal/notify"
	"github.com/Ziarant/StarPupil/internal/pipeline"
	"github.com/Ziarant/StarPupil/internal/sentiment"
	"github.com/Ziarant/StarPupil/internal/store"
	"github.com/Ziarant/StarPupil/internal/strategy"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/database"
	"github.com/Ziarant/StarPupil/pkg/httputil"
	"github.com/Ziarant/StarPupil/pkg/logger"
	"github.com/Ziarant/StarPupil/pkg/redis"
)

// app holds the wired dependency graph shared by the subcommands.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB
	redis        *redis.Client
	store        *store.Store
	hub          *notify.Hub
	orchestrator *pipeline.Orchestrator
}

// newApp loads config and wires every component the pipeline needs.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable; caching and shared rate limiting disabled")
		redisClient = redis.Disabled()
	}

	st := store.New(db.Pool)
	httpClient := httputil.New(log)

	marketClient := market.NewClient(cfg.Market, httpClient, log)
	newsClient := news.NewClient(cfg.News, httpClient, log)

	scorer := sentiment.NewScorer(
		newOracle(cfg, log),
		redis.NewCache(redisClient, "starpupil"),
		redis.NewRateLimiter(redisClient, "starpupil"),
		log,
	)

	hub := notify.NewHub(log)
	notifier := buildNotifier(cfg, st, hub, log)

	orchestrator := pipeline.New(pipeline.Deps{
		Instruments:     st.Instruments,
		Prices:          st.Prices,
		News:            st.News,
		Signals:         st.Signals,
		StrategyConfigs: st.StrategyConfigs,
		MarketData:      marketClient,
		NewsSource:      newsClient,
		Scorer:          scorer,
		Engine:          strategy.NewEngine(strategy.NewRegistry(), log),
		Notifier:        notifier,
	}, cfg.Pipeline, log)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		redis:        redisClient,
		store:        st,
		hub:          hub,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) close() {
	a.hub.Close()
	a.redis.Close()
	a.db.Close()
}

// newOracle returns the configured sentiment oracle, or an unconfigured
// stub whose permanent errors degrade runs to indicators-only.
func newOracle(cfg *config.Config, log *logger.Logger) contracts.SentimentOracle {
	if cfg.Oracle.APIKey == "" {
		log.Warn("ORACLE_API_KEY not set; sentiment scoring disabled")
		return unconfiguredOracle{}
	}

	oracle, err := sentiment.NewOracleClient(cfg.Oracle, log)
	if err != nil {
		log.WithError(err).Warn("Oracle init failed; sentiment scoring disabled")
		return unconfiguredOracle{}
	}
	return oracle
}

type unconfiguredOracle struct{}

func (unconfiguredOracle) Score(ctx context.Context, text string) (contracts.SentimentScore, error) {
	return contracts.SentimentScore{}, contracts.Permanent("oracle score", errors.New("oracle not configured"))
}

// buildNotifier fans out to every configured channel; the structured log
// channel is always on.
func buildNotifier(cfg *config.Config, st *store.Store, hub *notify.Hub, log *logger.Logger) contracts.Notifier {
	channels := []contracts.Notifier{notify.NewLogNotifier(log), hub}

	if cfg.Telegram.Enabled {
		resolve := func(ctx context.Context, instrumentID int64) (contracts.Instrument, error) {
			instruments, err := st.Instruments.ListActive(ctx)
			if err != nil {
				return contracts.Instrument{}, err
			}
			for _, inst := range instruments {
				if inst.ID == instrumentID {
					return inst, nil
				}
			}
			return contracts.Instrument{}, fmt.Errorf("instrument %d not found", instrumentID)
		}

		telegram, err := notify.NewTelegramNotifier(cfg.Telegram, resolve, log)
		if err != nil {
			log.WithError(err).Warn("Telegram init failed; channel disabled")
		} else {
			channels = append(channels, telegram)
		}
	}

	return notify.NewMulti(log, channels...)
}
