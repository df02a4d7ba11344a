package contracts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is a tradable security identified by exchange + symbol.
// Reference data: created on first discovery, never deleted during a run.
type Instrument struct {
	ID       int64  `json:"id"`
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// Key returns the canonical "EXCHANGE:SYMBOL" identifier.
func (i Instrument) Key() string {
	return fmt.Sprintf("%s:%s", i.Exchange, i.Symbol)
}

// PriceBar is one trading day's OHLCV for an instrument.
// Unique on (instrument, date). Prices keep decimal precision until the
// indicator boundary.
type PriceBar struct {
	InstrumentID int64           `json:"instrument_id"`
	Date         time.Time       `json:"date"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       int64           `json:"volume"`
}

// NewsItem is a raw news article fetched for an instrument.
// InstrumentID may be 0 for market-wide news. Immutable once fetched.
type NewsItem struct {
	ID           int64     `json:"id"`
	InstrumentID int64     `json:"instrument_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Source       string    `json:"source"`
	URL          string    `json:"url"`
	PublishedAt  time.Time `json:"published_at"`
}

// Text returns the scoreable text of the item.
func (n NewsItem) Text() string {
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n" + n.Body
}

// SentimentScore is the Sentiment Oracle's verdict on one news item.
// Score is in [-1, 1], Confidence in [0, 1].
type SentimentScore struct {
	NewsID     int64     `json:"news_id"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	ScoredAt   time.Time `json:"scored_at"`
}

// SentimentAggregate is the per-instrument reduction of sentiment scores
// over a lookback window. HasData distinguishes "no sentiment data" from a
// valid neutral score of zero.
type SentimentAggregate struct {
	HasData       bool    `json:"has_data"`
	WeightedScore float64 `json:"weighted_score"`
	Contributing  int     `json:"contributing"`
	LowConfidence int     `json:"low_confidence"`
}

// IndicatorSet maps indicator names (rsi14, macd, macd_signal, sma20, ...)
// to values for one instrument and date. Recomputed every run, never
// authoritative state.
type IndicatorSet struct {
	InstrumentID int64              `json:"instrument_id"`
	Date         time.Time          `json:"date"`
	Values       map[string]float64 `json:"values"`
}

// Get returns the named indicator value and whether it was computed.
func (s IndicatorSet) Get(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// StrategyConfig is the externally supplied configuration for one strategy.
// Read-only to the pipeline within a run.
type StrategyConfig struct {
	Name    string             `json:"name"`
	Enabled bool               `json:"enabled"`
	Params  map[string]float64 `json:"params"`
	Flags   map[string]bool    `json:"flags"`
}

// Param returns a numeric parameter, falling back to def when absent.
func (c StrategyConfig) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// Flag returns a boolean parameter, falling back to def when absent.
func (c StrategyConfig) Flag(name string, def bool) bool {
	if v, ok := c.Flags[name]; ok {
		return v
	}
	return def
}

// SignalKind is the recommendation a strategy emits.
type SignalKind string

const (
	SignalBuy   SignalKind = "BUY"
	SignalSell  SignalKind = "SELL"
	SignalHold  SignalKind = "HOLD"
	SignalAlert SignalKind = "ALERT"
)

// Signal is a persisted, deduplicated recommendation.
// Unique key = (instrument, date, strategy, kind); rows are append-only.
type Signal struct {
	ID           int64              `json:"id"`
	InstrumentID int64              `json:"instrument_id"`
	Date         time.Time          `json:"date"`
	Strategy     string             `json:"strategy"`
	Kind         SignalKind         `json:"kind"`
	Strength     float64            `json:"strength"`
	Reason       string             `json:"reason"`
	TriggerPrice decimal.Decimal    `json:"trigger_price"`
	Evidence     map[string]float64 `json:"evidence"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// UniqueKey returns the dedup key string, useful for logs and tests.
func (s Signal) UniqueKey() string {
	return fmt.Sprintf("%d:%s:%s:%s", s.InstrumentID, s.Date.Format("2006-01-02"), s.Strategy, s.Kind)
}
