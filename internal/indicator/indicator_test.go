package indicator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

func risingCloses(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	sma, err := SMA(closes, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sma, 1e-12)

	sma, err = SMA(closes, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, sma, 1e-12)
}

func TestSMAInsufficientData(t *testing.T) {
	_, err := SMA([]float64{1, 2, 3}, 4)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)

	_, err = SMA(nil, 1)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestEMASeries(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14}

	series, offset, err := EMASeries(closes, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, offset)
	require.Len(t, series, 3)

	// Seed = SMA(10,11,12) = 11; alpha = 0.5.
	assert.InDelta(t, 11.0, series[0], 1e-12)
	assert.InDelta(t, 12.0, series[1], 1e-12) // 0.5*13 + 0.5*11
	assert.InDelta(t, 13.0, series[2], 1e-12) // 0.5*14 + 0.5*12
}

func TestEMAInsufficientData(t *testing.T) {
	_, err := EMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestRSIRequiresPeriodPlusOne(t *testing.T) {
	_, err := RSI(risingCloses(14, 100), 14)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)

	_, err = RSI(risingCloses(15, 100), 14)
	assert.NoError(t, err)
}

// 20 closes rising monotonically from 100 to 119: average loss is exactly
// zero, so RSI(14) on the last bar must be 100.
func TestRSIMonotonicRiseIs100(t *testing.T) {
	rsi, err := RSI(risingCloses(20, 100), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIMonotonicFallIsZero(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 119 - float64(i)
	}

	rsi, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-12)
}

func TestRSIAlwaysInRange(t *testing.T) {
	// Alternating gains and losses of varying size.
	closes := []float64{100, 103, 99, 104, 98, 105, 97, 110, 90, 112, 88, 115, 85, 120, 80, 125, 75, 130}

	for period := 2; period <= 14; period++ {
		if len(closes) < period+1 {
			continue
		}
		rsi, err := RSI(closes, period)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rsi, 0.0, "period %d", period)
		assert.LessOrEqual(t, rsi, 100.0, "period %d", period)
	}
}

func TestMACDMinimumHistory(t *testing.T) {
	// slow + signal - 1 = 26 + 9 - 1 = 34 bars required.
	_, err := MACD(risingCloses(33, 100), 12, 26, 9)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)

	series, err := MACD(risingCloses(34, 100), 12, 26, 9)
	require.NoError(t, err)
	assert.Len(t, series.Line, 1)
	assert.Equal(t, 33, series.Offset)
}

func TestMACDSteadyTrendLinePositive(t *testing.T) {
	series, err := MACD(risingCloses(60, 100), 12, 26, 9)
	require.NoError(t, err)

	line, signal, hist := series.Latest()
	// In a steady rise the fast EMA stays above the slow EMA.
	assert.Greater(t, line, 0.0)
	assert.Greater(t, signal, 0.0)
	assert.InDelta(t, line-signal, hist, 1e-12)
}

// An upward cross followed by the exact reverse input produces a downward
// cross: detection is symmetric, no transition is swallowed.
func TestMACDCrossoverSymmetry(t *testing.T) {
	fall := make([]float64, 40)
	for i := range fall {
		fall[i] = 200 - float64(i)*2
	}
	rise := make([]float64, 15)
	for i := range rise {
		rise[i] = fall[len(fall)-1] + float64(i+1)*3
	}

	up := append(append([]float64{}, fall...), rise...)
	series, err := MACD(up, 12, 26, 9)
	require.NoError(t, err)
	upCross := findCross(series)
	require.NotEqual(t, 0, upCross, "expected an upward cross")
	assert.Greater(t, upCross, 0)

	// Mirror the input around its mean: every gain becomes a loss.
	down := make([]float64, len(up))
	for i, c := range up {
		down[i] = 400 - c
	}
	series, err = MACD(down, 12, 26, 9)
	require.NoError(t, err)
	downCross := findCross(series)
	require.NotEqual(t, 0, downCross, "expected a downward cross")
	assert.Less(t, downCross, 0)
}

// findCross returns +1 at the first upward line/signal cross, -1 at the
// first downward cross, 0 if none.
func findCross(s MACDSeries) int {
	for i := 1; i < len(s.Line); i++ {
		prev := s.Line[i-1] - s.Signal[i-1]
		cur := s.Line[i] - s.Signal[i]
		if prev <= 0 && cur > 0 {
			return 1
		}
		if prev >= 0 && cur < 0 {
			return -1
		}
	}
	return 0
}

func TestComputePublishesOnlyValidIndicators(t *testing.T) {
	bars := makeBars(risingCloses(10, 100))

	set, err := Compute(bars, DefaultParams())
	require.NoError(t, err)

	_, ok := set.Get(NameClose)
	assert.True(t, ok)

	// 10 bars: not enough for SMA20, RSI14 or MACD(12,26,9).
	_, ok = set.Get(NameSMA20)
	assert.False(t, ok)
	_, ok = set.Get(NameRSI14)
	assert.False(t, ok)
	_, ok = set.Get(NameMACD)
	assert.False(t, ok)
}

func TestComputeFullHistory(t *testing.T) {
	bars := makeBars(risingCloses(60, 100))

	set, err := Compute(bars, DefaultParams())
	require.NoError(t, err)

	rsi, ok := set.Get(NameRSI14)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)

	for _, name := range []string{NameSMA20, NameMACD, NameMACDSignal, NameMACDHist, NameMACDPrev, NameMACDSignalPrev} {
		_, ok := set.Get(name)
		assert.True(t, ok, "missing %s", name)
	}

	assert.Equal(t, bars[len(bars)-1].Date, set.Date)
}

func TestComputeEmptyInput(t *testing.T) {
	_, err := Compute(nil, DefaultParams())
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestRoundHalfToEven(t *testing.T) {
	assert.Equal(t, 0.12, Round(0.125, 2))
	assert.Equal(t, 0.14, Round(0.135, 2))
	assert.Equal(t, 2.0, Round(2.5, 0))
	assert.Equal(t, 2.0, Round(1.5, 0))
	assert.Equal(t, -2.0, Round(-2.5, 0))
}

func makeBars(closes []float64) []contracts.PriceBar {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.PriceBar, len(closes))
	for i, c := range closes {
		px := decimal.NewFromFloat(c)
		bars[i] = contracts.PriceBar{
			InstrumentID: 1,
			Date:         base.AddDate(0, 0, i),
			Open:         px,
			High:         px,
			Low:          px,
			Close:        px,
			Volume:       1000,
		}
	}
	return bars
}
