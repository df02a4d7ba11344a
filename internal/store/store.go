// Package store implements the contracts repositories on PostgreSQL.
// Every repository wraps the shared pgx pool; all writes are idempotent
// upserts so a re-run of the pipeline never duplicates rows.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles all repositories over one connection pool.
type Store struct {
	Instruments     *InstrumentRepository
	Prices          *PriceRepository
	News            *NewsRepository
	Signals         *SignalRepository
	StrategyConfigs *StrategyConfigRepository

	pool *pgxpool.Pool
}

// New creates the repository bundle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Instruments:     NewInstrumentRepository(pool),
		Prices:          NewPriceRepository(pool),
		News:            NewNewsRepository(pool),
		Signals:         NewSignalRepository(pool),
		StrategyConfigs: NewStrategyConfigRepository(pool),
		pool:            pool,
	}
}

// schema holds the DDL for all pipeline tables. Applied by the migrate
// command; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		id         BIGSERIAL PRIMARY KEY,
		exchange   TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (exchange, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS price_bars (
		instrument_id BIGINT NOT NULL REFERENCES instruments(id),
		bar_date      DATE NOT NULL,
		open          NUMERIC(18,6) NOT NULL,
		high          NUMERIC(18,6) NOT NULL,
		low           NUMERIC(18,6) NOT NULL,
		close         NUMERIC(18,6) NOT NULL,
		volume        BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (instrument_id, bar_date)
	)`,
	`CREATE TABLE IF NOT EXISTS news_items (
		id            BIGSERIAL PRIMARY KEY,
		instrument_id BIGINT NOT NULL DEFAULT 0,
		title         TEXT NOT NULL,
		body          TEXT NOT NULL DEFAULT '',
		source        TEXT NOT NULL DEFAULT '',
		url           TEXT NOT NULL UNIQUE,
		published_at  TIMESTAMPTZ NOT NULL,
		fetched_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS news_sentiment (
		news_id    BIGINT PRIMARY KEY REFERENCES news_items(id),
		score      DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		scored_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_configs (
		name       TEXT PRIMARY KEY,
		enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		params     JSONB NOT NULL DEFAULT '{}',
		flags      JSONB NOT NULL DEFAULT '{}',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id            BIGSERIAL PRIMARY KEY,
		instrument_id BIGINT NOT NULL REFERENCES instruments(id),
		signal_date   DATE NOT NULL,
		strategy      TEXT NOT NULL,
		kind          TEXT NOT NULL,
		strength      DOUBLE PRECISION NOT NULL,
		reason        TEXT NOT NULL DEFAULT '',
		trigger_price NUMERIC(18,6) NOT NULL DEFAULT 0,
		evidence      JSONB NOT NULL DEFAULT '{}',
		generated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (instrument_id, signal_date, strategy, kind)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_date ON signals (signal_date)`,
	`CREATE INDEX IF NOT EXISTS idx_news_instrument_published
		ON news_items (instrument_id, published_at)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
