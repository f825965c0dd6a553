package patterns

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pattern-trader/internal/analysis"
	"pattern-trader/internal/models"
)

func candle(open, high, low, closePrice float64) models.Candle {
	return models.Candle{Open: open, High: high, Low: low, Close: closePrice}
}

func TestDoji(t *testing.T) {
	d := NewCandlestickDetector()

	m := d.Doji(candle(1, 1.001, 0.999, 1))
	if !m.IsValid || m.Confidence < 60 {
		t.Fatalf("expected valid doji with confidence >= 60, got %+v", m)
	}
	if m.Type != analysis.PatternNeutral || m.Name != analysis.PatternDoji {
		t.Errorf("unexpected name/type %s/%s", m.Name, m.Type)
	}
	if m.Confidence != 80 {
		t.Errorf("zero body should give 80, got %v", m.Confidence)
	}

	// ratio 0.09 gives 80 - 9 = 71
	m = d.Doji(candle(1.0, 1.1, 0.1, 1.09))
	if !m.IsValid || math.Abs(m.Confidence-71) > 1e-6 {
		t.Errorf("expected confidence 71, got %+v", m)
	}

	m = d.Doji(candle(1.0, 1.2, 0.95, 1.15))
	if m.IsValid || m.Confidence != 0 {
		t.Errorf("large body must not be a doji, got %+v", m)
	}
}

func TestHammerAndHangingMan(t *testing.T) {
	d := NewCandlestickDetector()

	bullish := candle(1.0, 1.012, 0.97, 1.01)
	if m := d.Hammer(bullish); !m.IsValid || m.Confidence != 75 || m.Type != analysis.PatternBullish {
		t.Errorf("expected hammer, got %+v", m)
	}
	if m := d.HangingMan(bullish); m.IsValid {
		t.Errorf("bullish candle cannot be a hanging man, got %+v", m)
	}

	bearish := candle(1.01, 1.012, 0.97, 1.0)
	if m := d.HangingMan(bearish); !m.IsValid || m.Confidence != 70 || m.Type != analysis.PatternBearish {
		t.Errorf("expected hanging man, got %+v", m)
	}
}

func TestShootingStar(t *testing.T) {
	d := NewCandlestickDetector()

	c := candle(1.0, 1.05, 0.998, 1.01)
	if m := d.ShootingStar(c); !m.IsValid || m.Confidence != 75 || m.Type != analysis.PatternBearish {
		t.Errorf("expected shooting star, got %+v", m)
	}
	if m := d.Hammer(c); m.IsValid {
		t.Errorf("shooting star shape is not a hammer, got %+v", m)
	}
}

func TestPinBar(t *testing.T) {
	d := NewCandlestickDetector()

	if m := d.PinBar(candle(1.0, 1.012, 0.97, 1.01)); !m.IsValid || m.Type != analysis.PatternBullish || m.Confidence != 70 {
		t.Errorf("expected bullish pin bar, got %+v", m)
	}
	if m := d.PinBar(candle(1.0, 1.05, 0.998, 1.01)); !m.IsValid || m.Type != analysis.PatternBearish {
		t.Errorf("expected bearish pin bar, got %+v", m)
	}
}

func TestEngulfing(t *testing.T) {
	d := NewCandlestickDetector()

	prev := candle(10, 10.5, 7.5, 8)
	curr := candle(7, 11.5, 6.5, 11)
	m := d.Engulfing(prev, curr)
	if m.Name != analysis.PatternBullishEngulfing || m.Type != analysis.PatternBullish || !m.IsValid || m.Confidence != 80 {
		t.Errorf("expected bullish engulfing, got %+v", m)
	}

	m = d.Engulfing(candle(8, 10.5, 7.5, 10), candle(11, 11.5, 6.5, 7))
	if m.Name != analysis.PatternBearishEngulfing || m.Type != analysis.PatternBearish || !m.IsValid {
		t.Errorf("expected bearish engulfing, got %+v", m)
	}

	m = d.Engulfing(candle(8, 10.5, 7.5, 10), candle(9, 11, 8.5, 10.5))
	if m.IsValid || m.Confidence != 0 {
		t.Errorf("same direction cannot engulf, got %+v", m)
	}
}

func TestInsideBar(t *testing.T) {
	d := NewCandlestickDetector()

	if m := d.InsideBar(candle(1.05, 1.1, 1.0, 1.06), candle(1.04, 1.08, 1.02, 1.05)); !m.IsValid || m.Confidence != 65 {
		t.Errorf("expected inside bar, got %+v", m)
	}
	if m := d.InsideBar(candle(1.05, 1.1, 1.0, 1.06), candle(1.04, 1.1, 1.02, 1.05)); m.IsValid {
		t.Errorf("equal high is not inside, got %+v", m)
	}
}

func TestZeroRangeCandle(t *testing.T) {
	d := NewCandlestickDetector()
	c := candle(1, 1, 1, 1)

	for _, m := range []analysis.PatternMatch{d.Doji(c), d.Hammer(c), d.HangingMan(c), d.ShootingStar(c), d.PinBar(c)} {
		if m.IsValid {
			t.Errorf("%s matched a zero-range candle", m.Name)
		}
		if math.IsNaN(m.Confidence) {
			t.Errorf("%s confidence is NaN", m.Name)
		}
	}
	if got := d.DetectAll([]models.Candle{c}); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestDetectAll(t *testing.T) {
	d := NewCandlestickDetector()

	if got := d.DetectAll(nil); got == nil || len(got) != 0 {
		t.Errorf("empty input should give an empty result, got %#v", got)
	}

	single := d.DetectAll([]models.Candle{candle(1, 1.001, 0.999, 1)})
	if len(single) == 0 {
		t.Fatal("expected doji")
	}
	for _, m := range single {
		if m.Name == analysis.PatternInsideBar || m.Name == analysis.PatternBullishEngulfing || m.Name == analysis.PatternBearishEngulfing {
			t.Errorf("two-candle pattern %s reported for a single candle", m.Name)
		}
	}

	two := d.DetectAll([]models.Candle{candle(10, 10.5, 7.5, 8), candle(7, 11.5, 6.5, 11)})
	names := Names(two)
	found := false
	for _, n := range names {
		if n == string(analysis.PatternBullishEngulfing) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Bullish Engulfing in %v", names)
	}
}

var knownNames = map[analysis.PatternName]bool{
	analysis.PatternDoji:             true,
	analysis.PatternHammer:           true,
	analysis.PatternHangingMan:       true,
	analysis.PatternShootingStar:     true,
	analysis.PatternPinBar:           true,
	analysis.PatternBullishEngulfing: true,
	analysis.PatternBearishEngulfing: true,
	analysis.PatternInsideBar:        true,
}

func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.Const(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		"Open":      gen.Float64Range(1.0, 1.1),
		"High":      gen.Float64Range(1.0, 1.1),
		"Low":       gen.Float64Range(1.0, 1.1),
		"Close":     gen.Float64Range(1.0, 1.1),
		"Volume":    gen.Const(0.0),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		return c
	})
}

func TestProperty_DetectAllReturnsOnlyValidMatches(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	d := NewCandlestickDetector()

	properties.Property("every match is valid, named and scored", prop.ForAll(
		func(candles []models.Candle) bool {
			for _, m := range d.DetectAll(candles) {
				if !m.IsValid || !knownNames[m.Name] {
					return false
				}
				if m.Confidence <= 0 || m.Confidence > 100 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, candleGen()),
	))

	properties.Property("a single candle never yields two-candle patterns", prop.ForAll(
		func(c models.Candle) bool {
			for _, m := range d.DetectAll([]models.Candle{c}) {
				switch m.Name {
				case analysis.PatternBullishEngulfing, analysis.PatternBearishEngulfing, analysis.PatternInsideBar:
					return false
				}
			}
			return true
		},
		candleGen(),
	))

	properties.TestingRun(t)
}
