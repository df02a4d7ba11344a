package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/internal/indicator"
)

// RSIStrategy emits SELL above the overbought threshold and BUY below
// the oversold threshold. Strength is the normalized distance past the
// triggered threshold.
type RSIStrategy struct{}

func (s *RSIStrategy) Name() string { return "rsi_reversal" }

func (s *RSIStrategy) Evaluate(in Input) ([]contracts.Signal, error) {
	rsi, ok := in.Indicators.Get(indicator.NameRSI14)
	if !ok {
		return nil, contracts.ErrInsufficientData
	}

	overbought := in.Config.Param("overbought", 70)
	oversold := in.Config.Param("oversold", 30)

	var kind contracts.SignalKind
	var strength float64
	var reason string

	switch {
	case rsi > overbought:
		kind = contracts.SignalSell
		strength = clamp01((rsi - overbought) / (100 - overbought))
		reason = fmt.Sprintf("RSI %.1f above overbought threshold %.0f", indicator.Round(rsi, 1), overbought)
	case rsi < oversold:
		kind = contracts.SignalBuy
		strength = clamp01((oversold - rsi) / oversold)
		reason = fmt.Sprintf("RSI %.1f below oversold threshold %.0f", indicator.Round(rsi, 1), oversold)
	default:
		return nil, nil
	}

	close, _ := in.Indicators.Get(indicator.NameClose)

	return []contracts.Signal{{
		InstrumentID: in.Instrument.ID,
		Date:         in.Date,
		Strategy:     s.Name(),
		Kind:         kind,
		Strength:     strength,
		Reason:       reason,
		TriggerPrice: decimal.NewFromFloat(close),
		Evidence: map[string]float64{
			indicator.NameRSI14: rsi,
			"overbought":        overbought,
			"oversold":          oversold,
		},
		GeneratedAt: time.Now(),
	}}, nil
}
