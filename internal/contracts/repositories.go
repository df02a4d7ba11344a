package contracts

import (
	"context"
	"time"
)

// InstrumentRepository manages instrument reference data.
type InstrumentRepository interface {
	GetBySymbol(ctx context.Context, exchange, symbol string) (*Instrument, error)
	ListActive(ctx context.Context) ([]Instrument, error)
	// Upsert creates the instrument on first discovery and returns the row.
	Upsert(ctx context.Context, inst *Instrument) (*Instrument, error)
}

// PriceRepository stores daily price bars, unique on (instrument, date).
type PriceRepository interface {
	GetRange(ctx context.Context, instrumentID int64, from, to time.Time) ([]PriceBar, error)
	SaveBatch(ctx context.Context, bars []PriceBar) error
}

// NewsRepository stores fetched news items and their sentiment annotations.
type NewsRepository interface {
	GetSince(ctx context.Context, instrumentID int64, since time.Time) ([]NewsItem, error)
	// SaveBatch inserts new items, skipping rows whose URL already exists.
	// Returns the stored items with IDs assigned.
	SaveBatch(ctx context.Context, items []NewsItem) ([]NewsItem, error)
	SaveSentiment(ctx context.Context, score SentimentScore) error
	GetSentimentSince(ctx context.Context, instrumentID int64, since time.Time) ([]SentimentScore, error)
}

// StrategyConfigRepository reads strategy configuration. Read-only within
// a run.
type StrategyConfigRepository interface {
	ListEnabled(ctx context.Context) ([]StrategyConfig, error)
}

// InsertOutcome is the result of a conditional signal insert.
type InsertOutcome int

const (
	// Inserted means the signal row was created by this call.
	Inserted InsertOutcome = iota
	// AlreadyExists means a row with the same unique key was present.
	// Not an error: the orchestrator skips notification.
	AlreadyExists
)

func (o InsertOutcome) String() string {
	if o == Inserted {
		return "inserted"
	}
	return "already_exists"
}

// SignalRepository persists deduplicated signals. TryInsert must be atomic
// with respect to the unique key (instrument, date, strategy, kind):
// concurrent attempts on the same key yield exactly one Inserted.
type SignalRepository interface {
	TryInsert(ctx context.Context, sig *Signal) (InsertOutcome, error)
	ListByInstrument(ctx context.Context, instrumentID int64, from, to time.Time) ([]Signal, error)
	ListByDate(ctx context.Context, date time.Time) ([]Signal, error)
}

// MarketDataSource supplies ordered price bars for a symbol and date range.
type MarketDataSource interface {
	FetchPriceBars(ctx context.Context, inst Instrument, from, to time.Time) ([]PriceBar, error)
}

// NewsSource supplies raw news items per instrument.
type NewsSource interface {
	FetchNews(ctx context.Context, inst Instrument, since time.Time) ([]NewsItem, error)
}

// SentimentOracle scores news text. May be slow, rate-limited, or fail.
type SentimentOracle interface {
	Score(ctx context.Context, text string) (SentimentScore, error)
}

// Notifier delivers a signal-generated event. Best-effort: failures are
// logged by the caller and never rolled back.
type Notifier interface {
	Notify(ctx context.Context, sig Signal) error
}
