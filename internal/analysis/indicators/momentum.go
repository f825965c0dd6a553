package indicators

import (
	"pattern-trader/internal/analysis"
)

// Default periods used across the package.
const (
	DefaultRSIPeriod        = 14
	DefaultStochasticPeriod = 14
	DefaultWilliamsRPeriod  = 14
)

// Result is a single oscillator reading with its directional bias.
type Result struct {
	Value  float64         `json:"value"`
	Signal analysis.Signal `json:"signal"`
}

// RSI calculates the Relative Strength Index from simple averages of the
// first period price changes. BUY below 30, SELL above 70.
//
// A window with no losses saturates at 100; a completely flat window reads 50.
func RSI(prices []float64, period int) (Result, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return Result{}, err
	}
	if err := checkLength("RSI", period+1, len(prices)); err != nil {
		return Result{}, err
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	var value float64
	switch {
	case avgLoss == 0 && avgGain == 0:
		value = 50
	case avgLoss == 0:
		value = 100
	default:
		rs := avgGain / avgLoss
		value = 100 - (100 / (1 + rs))
	}

	return Result{Value: value, Signal: oscillatorSignal(value, 30, 70)}, nil
}

// Stochastic calculates %K over the trailing period. BUY below 20, SELL above 80.
// A flat window (highest high equals lowest low) reads 50.
func Stochastic(highs, lows, closes []float64, period int) (Result, error) {
	if err := checkPeriod("Stochastic", period); err != nil {
		return Result{}, err
	}
	if err := checkHLC("Stochastic", highs, lows, closes); err != nil {
		return Result{}, err
	}
	if err := checkLength("Stochastic", period, len(closes)); err != nil {
		return Result{}, err
	}

	hh := highest(highs[len(highs)-period:])
	ll := lowest(lows[len(lows)-period:])

	value := 50.0
	if hh != ll {
		value = (last(closes) - ll) / (hh - ll) * 100
	}

	return Result{Value: value, Signal: oscillatorSignal(value, 20, 80)}, nil
}

// WilliamsR calculates Williams %R over the trailing period, in [-100, 0].
// BUY below -80, SELL above -20. A flat window reads -50.
func WilliamsR(highs, lows, closes []float64, period int) (Result, error) {
	if err := checkPeriod("WilliamsR", period); err != nil {
		return Result{}, err
	}
	if err := checkHLC("WilliamsR", highs, lows, closes); err != nil {
		return Result{}, err
	}
	if err := checkLength("WilliamsR", period, len(closes)); err != nil {
		return Result{}, err
	}

	hh := highest(highs[len(highs)-period:])
	ll := lowest(lows[len(lows)-period:])

	value := -50.0
	if hh != ll {
		value = (hh - last(closes)) / (hh - ll) * -100
	}

	return Result{Value: value, Signal: oscillatorSignal(value, -80, -20)}, nil
}

func oscillatorSignal(value, oversold, overbought float64) analysis.Signal {
	switch {
	case value < oversold:
		return analysis.SignalBuy
	case value > overbought:
		return analysis.SignalSell
	default:
		return analysis.SignalNeutral
	}
}
