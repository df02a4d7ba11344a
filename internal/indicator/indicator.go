// Package indicator computes technical indicators from ordered price
// series. Every function is a pure fold over its input slice: no hidden
// state, no I/O, safe to call concurrently for different instruments.
//
// Indicators that lack enough history return contracts.ErrInsufficientData
// instead of a numeric placeholder. Values are kept at full float64
// precision between steps; rounding happens only at output formatting.
package indicator

import (
	"math"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// Params holds the indicator parameters for one pipeline run.
type Params struct {
	SMAPeriod  int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultParams returns the conventional parameter set.
func DefaultParams() Params {
	return Params{
		SMAPeriod:  20,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// SMA returns the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period {
		return 0, contracts.ErrInsufficientData
	}

	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), nil
}

// EMASeries returns the exponential moving average for every bar from the
// first valid index onward. The returned offset is the input index of the
// first value: offset = period - 1. The seed is the SMA of the first
// period closes; after that each value folds the previous one forward.
func EMASeries(closes []float64, period int) ([]float64, int, error) {
	if period <= 0 || len(closes) < period {
		return nil, 0, contracts.ErrInsufficientData
	}

	offset := period - 1
	out := make([]float64, 0, len(closes)-offset)

	var seed float64
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)
	out = append(out, seed)

	alpha := 2.0 / (float64(period) + 1.0)
	ema := seed
	for _, c := range closes[period:] {
		ema = alpha*c + (1-alpha)*ema
		out = append(out, ema)
	}

	return out, offset, nil
}

// EMA returns the exponential moving average at the latest bar.
func EMA(closes []float64, period int) (float64, error) {
	series, _, err := EMASeries(closes, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// RSI returns Wilder's relative strength index at the latest bar.
// The first valid value exists only once len(closes) > period: the seed
// averages the first period changes, then Wilder smoothing folds the rest.
// RSI is 100 exactly when the smoothed average loss is zero.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, contracts.ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remaining bars.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// MACDSeries holds the MACD line, signal line and histogram from the
// first bar where all three are defined. Offset is the input index of
// the first entry.
type MACDSeries struct {
	Offset int
	Line   []float64
	Signal []float64
	Hist   []float64
}

// Latest returns the last (line, signal, hist) triple.
func (s MACDSeries) Latest() (line, signal, hist float64) {
	n := len(s.Line) - 1
	return s.Line[n], s.Signal[n], s.Hist[n]
}

// Previous returns the next-to-last triple and whether it exists.
func (s MACDSeries) Previous() (line, signal, hist float64, ok bool) {
	if len(s.Line) < 2 {
		return 0, 0, 0, false
	}
	n := len(s.Line) - 2
	return s.Line[n], s.Signal[n], s.Hist[n], true
}

// MACD computes the MACD line (fast EMA − slow EMA), its signal line
// (EMA of the MACD line) and the histogram. Each sub-EMA independently
// requires its own minimum history: the signal line first exists at
// input index slow + signal − 2, so len(closes) must be at least
// slow + signal − 1.
func MACD(closes []float64, fast, slow, signal int) (MACDSeries, error) {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return MACDSeries{}, contracts.ErrInsufficientData
	}
	if len(closes) < slow+signal-1 {
		return MACDSeries{}, contracts.ErrInsufficientData
	}

	fastSeries, fastOff, err := EMASeries(closes, fast)
	if err != nil {
		return MACDSeries{}, err
	}
	slowSeries, slowOff, err := EMASeries(closes, slow)
	if err != nil {
		return MACDSeries{}, err
	}

	// MACD line exists wherever both EMAs exist: from slowOff onward.
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+(slowOff-fastOff)] - slowSeries[i]
	}

	sigSeries, sigOff, err := EMASeries(line, signal)
	if err != nil {
		return MACDSeries{}, err
	}

	out := MACDSeries{
		Offset: slowOff + sigOff,
		Line:   line[sigOff:],
		Signal: sigSeries,
		Hist:   make([]float64, len(sigSeries)),
	}
	for i := range out.Hist {
		out.Hist[i] = out.Line[i] - out.Signal[i]
	}

	return out, nil
}

// Indicator names published into an IndicatorSet.
const (
	NameClose          = "close"
	NameSMA20          = "sma20"
	NameRSI14          = "rsi14"
	NameMACD           = "macd"
	NameMACDSignal     = "macd_signal"
	NameMACDHist       = "macd_hist"
	NameMACDPrev       = "macd_prev"
	NameMACDSignalPrev = "macd_signal_prev"
)

// Compute derives the IndicatorSet for the latest bar. Bars must be
// ascending by date. Indicators without enough history are simply absent
// from the set; strategies treat a missing name as a skip, never as zero.
func Compute(bars []contracts.PriceBar, params Params) (contracts.IndicatorSet, error) {
	if len(bars) == 0 {
		return contracts.IndicatorSet{}, contracts.ErrInsufficientData
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i], _ = b.Close.Float64()
	}

	latest := bars[len(bars)-1]
	set := contracts.IndicatorSet{
		InstrumentID: latest.InstrumentID,
		Date:         latest.Date,
		Values:       map[string]float64{NameClose: closes[len(closes)-1]},
	}

	if sma, err := SMA(closes, params.SMAPeriod); err == nil {
		set.Values[NameSMA20] = sma
	}

	if rsi, err := RSI(closes, params.RSIPeriod); err == nil {
		set.Values[NameRSI14] = rsi
	}

	if macd, err := MACD(closes, params.MACDFast, params.MACDSlow, params.MACDSignal); err == nil {
		line, sig, hist := macd.Latest()
		set.Values[NameMACD] = line
		set.Values[NameMACDSignal] = sig
		set.Values[NameMACDHist] = hist

		if prevLine, prevSig, _, ok := macd.Previous(); ok {
			set.Values[NameMACDPrev] = prevLine
			set.Values[NameMACDSignalPrev] = prevSig
		}
	}

	return set, nil
}

// Round applies round-half-to-even at the given decimal place. Used only
// when formatting output; intermediate computations keep full precision so
// recursive indicators do not compound rounding error.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow10(places)
	return math.RoundToEven(v*scale) / scale
}
