package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pattern-trader/internal/models"
)

// Property: for any valid candle data, oscillators stay within their
// mathematically defined bounds:
// - RSI: [0, 100]
// - Stochastic %K: [0, 100]
// - Williams %R: [-100, 0]
// - Bollinger: lower <= middle <= upper
// - ATR: non-negative

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.TimeRange(time.Now().Add(-365*24*time.Hour), time.Hour),
		"Open":      gen.Float64Range(1.0, 2.0),
		"High":      gen.Float64Range(1.0, 2.0),
		"Low":       gen.Float64Range(1.0, 2.0),
		"Close":     gen.Float64Range(1.0, 2.0),
		"Volume":    gen.Float64Range(1000, 1000000),
	}).Map(normalizeCandle)
}

// normalizeCandle enforces High >= max(Open, Close) and Low <= min(Open, Close).
func normalizeCandle(c models.Candle) models.Candle {
	if c.Open <= 0 {
		c.Open = 1.0
	}
	if c.Close <= 0 {
		c.Close = 1.0
	}
	c.High = math.Max(c.High, math.Max(c.Open, c.Close))
	c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
	if c.Low <= 0 {
		c.Low = math.Min(c.Open, c.Close)
	}
	return c
}

// candleSliceGen generates a chronological slice of valid candles
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			if len(candles) == 0 {
				candles = append(candles, normalizeCandle(models.Candle{Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15}))
				continue
			}
			candles = append(candles, candles[len(candles)-1])
		}
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range candles {
			candles[i] = normalizeCandle(candles[i])
			candles[i].Timestamp = base.Add(time.Duration(i) * time.Hour)
		}
		return candles
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			r, err := RSI(models.Closes(candles), 14)
			if err != nil {
				return false
			}
			return r.Value >= 0 && r.Value <= 100
		},
		candleSliceGen(15, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_StochasticWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Stochastic %K is within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			r, err := Stochastic(models.Highs(candles), models.Lows(candles), models.Closes(candles), 14)
			if err != nil {
				return false
			}
			return r.Value >= 0 && r.Value <= 100
		},
		candleSliceGen(14, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_WilliamsRWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Williams %R is within [-100, 0]", prop.ForAll(
		func(candles []models.Candle) bool {
			r, err := WilliamsR(models.Highs(candles), models.Lows(candles), models.Closes(candles), 14)
			if err != nil {
				return false
			}
			return r.Value >= -100 && r.Value <= 0
		},
		candleSliceGen(14, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_BollingerBandsOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("lower <= middle <= upper for every window", prop.ForAll(
		func(candles []models.Candle) bool {
			closes := models.Closes(candles)
			bb, err := BollingerBands(closes, 20, 2)
			if err != nil {
				return false
			}
			if len(bb.Middle) != len(closes)-20+1 {
				return false
			}
			for i := range bb.Middle {
				if bb.Lower[i] > bb.Middle[i]+1e-12 || bb.Middle[i] > bb.Upper[i]+1e-12 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 80),
	))

	properties.TestingRun(t)
}

func TestProperty_EMAPreservesLengthAndSeed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("EMA has input length and starts at prices[0]", prop.ForAll(
		func(candles []models.Candle, period int) bool {
			closes := models.Closes(candles)
			ema, err := EMA(closes, period)
			if err != nil {
				return false
			}
			return len(ema) == len(closes) && ema[0] == closes[0]
		},
		candleSliceGen(1, 50),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_ATRIsNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("ATR is non-negative", prop.ForAll(
		func(candles []models.Candle) bool {
			v, err := ATR(models.Highs(candles), models.Lows(candles), models.Closes(candles), 14)
			if err != nil {
				return false
			}
			return v >= 0
		},
		candleSliceGen(15, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_SnapshotIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)
	engine := NewEngine(DefaultEngineConfig())

	properties.Property("same window yields identical values", prop.ForAll(
		func(candles []models.Candle) bool {
			a, errA := engine.Snapshot(t.Context(), "EURUSD", "1h", candles)
			b, errB := engine.Snapshot(t.Context(), "EURUSD", "1h", candles)
			if errA != nil || errB != nil {
				return false
			}
			a.LastUpdated, b.LastUpdated = time.Time{}, time.Time{}
			return reflect.DeepEqual(a, b)
		},
		candleSliceGen(1, 120),
	))

	properties.TestingRun(t)
}
