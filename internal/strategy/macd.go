package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/internal/indicator"
)

// MACDStrategy emits on signal-line crossovers: the MACD line crossing
// above the signal line is a BUY, crossing below is a SELL. A crossover
// needs the previous bar's pair, so a set without macd_prev is a skip.
type MACDStrategy struct{}

func (s *MACDStrategy) Name() string { return "macd_crossover" }

func (s *MACDStrategy) Evaluate(in Input) ([]contracts.Signal, error) {
	line, ok := in.Indicators.Get(indicator.NameMACD)
	if !ok {
		return nil, contracts.ErrInsufficientData
	}
	sig, ok := in.Indicators.Get(indicator.NameMACDSignal)
	if !ok {
		return nil, contracts.ErrInsufficientData
	}
	prevLine, ok := in.Indicators.Get(indicator.NameMACDPrev)
	if !ok {
		return nil, contracts.ErrInsufficientData
	}
	prevSig, ok := in.Indicators.Get(indicator.NameMACDSignalPrev)
	if !ok {
		return nil, contracts.ErrInsufficientData
	}

	prevDiff := prevLine - prevSig
	diff := line - sig

	var kind contracts.SignalKind
	var reason string

	switch {
	case prevDiff <= 0 && diff > 0:
		kind = contracts.SignalBuy
		reason = fmt.Sprintf("MACD %.4f crossed above signal %.4f", indicator.Round(line, 4), indicator.Round(sig, 4))
	case prevDiff >= 0 && diff < 0:
		kind = contracts.SignalSell
		reason = fmt.Sprintf("MACD %.4f crossed below signal %.4f", indicator.Round(line, 4), indicator.Round(sig, 4))
	default:
		return nil, nil
	}

	close, _ := in.Indicators.Get(indicator.NameClose)

	// Strength saturates with histogram size relative to price so a wide
	// cross on a cheap instrument still outranks a grazing cross on an
	// expensive one.
	scale := in.Config.Param("strength_scale", 100)
	strength := clamp01(math.Abs(diff))
	if close > 0 {
		strength = clamp01(math.Tanh(scale * math.Abs(diff) / close))
	}

	return []contracts.Signal{{
		InstrumentID: in.Instrument.ID,
		Date:         in.Date,
		Strategy:     s.Name(),
		Kind:         kind,
		Strength:     strength,
		Reason:       reason,
		TriggerPrice: decimal.NewFromFloat(close),
		Evidence: map[string]float64{
			indicator.NameMACD:           line,
			indicator.NameMACDSignal:     sig,
			indicator.NameMACDPrev:       prevLine,
			indicator.NameMACDSignalPrev: prevSig,
		},
		GeneratedAt: time.Now(),
	}}, nil
}
