// Package patterns provides candlestick pattern detection.
package patterns

import (
	"math"

	"pattern-trader/internal/analysis"
	"pattern-trader/internal/models"
)

// Confidence assigned to each valid formation.
const (
	confidenceDojiMax      = 80.0
	confidenceDojiMin      = 60.0
	confidenceHammer       = 75.0
	confidenceHangingMan   = 70.0
	confidenceShootingStar = 75.0
	confidencePinBar       = 70.0
	confidenceEngulfing    = 80.0
	confidenceInsideBar    = 65.0
)

// CandlestickDetector classifies one- and two-candle formations.
// It holds only read-only thresholds and is safe for concurrent use.
type CandlestickDetector struct {
	dojiThreshold     float64 // Body < 10% of range for doji
	shadowThreshold   float64 // Dominant shadow > 2x body
	oppositeShadowMax float64 // Opposite shadow < 0.5x body
	smallBodyMax      float64 // Body < 30% of range for hammer, star and pin bar
}

// NewCandlestickDetector creates a new candlestick pattern detector.
func NewCandlestickDetector() *CandlestickDetector {
	return &CandlestickDetector{
		dojiThreshold:     0.1,
		shadowThreshold:   2.0,
		oppositeShadowMax: 0.5,
		smallBodyMax:      0.3,
	}
}

var _ analysis.PatternDetector = (*CandlestickDetector)(nil)

// DetectAll runs every single-candle detector on the last candle and every
// two-candle detector on the last two, returning only valid matches.
func (d *CandlestickDetector) DetectAll(candles []models.Candle) []analysis.PatternMatch {
	if len(candles) == 0 {
		return []analysis.PatternMatch{}
	}

	current := candles[len(candles)-1]
	results := []analysis.PatternMatch{
		d.Doji(current),
		d.Hammer(current),
		d.HangingMan(current),
		d.ShootingStar(current),
		d.PinBar(current),
	}

	if len(candles) >= 2 {
		previous := candles[len(candles)-2]
		results = append(results,
			d.Engulfing(previous, current),
			d.InsideBar(previous, current),
		)
	}

	valid := make([]analysis.PatternMatch, 0, len(results))
	for _, r := range results {
		if r.IsValid {
			valid = append(valid, r)
		}
	}
	return valid
}

// Doji reports an indecision candle whose body is under a tenth of its range.
func (d *CandlestickDetector) Doji(c models.Candle) analysis.PatternMatch {
	m := analysis.PatternMatch{
		Name:        analysis.PatternDoji,
		Description: "Indecision pattern indicating potential reversal",
		Type:        analysis.PatternNeutral,
	}

	rng := d.candleRange(c)
	if rng <= 0 {
		return m
	}
	ratio := d.bodySize(c) / rng
	if ratio < d.dojiThreshold {
		m.IsValid = true
		m.Confidence = math.Max(confidenceDojiMax-ratio*100, confidenceDojiMin)
	}
	return m
}

// Hammer reports a long lower shadow under a small body.
func (d *CandlestickDetector) Hammer(c models.Candle) analysis.PatternMatch {
	m := analysis.PatternMatch{
		Name:        analysis.PatternHammer,
		Description: "Bullish reversal pattern with long lower shadow",
		Type:        analysis.PatternBullish,
	}
	if d.isHammerShape(c) {
		m.IsValid = true
		m.Confidence = confidenceHammer
	}
	return m
}

// HangingMan is the hammer shape printed by a bearish candle.
func (d *CandlestickDetector) HangingMan(c models.Candle) analysis.PatternMatch {
	m := analysis.PatternMatch{
		Name:        analysis.PatternHangingMan,
		Description: "Bearish reversal pattern with long lower shadow",
		Type:        analysis.PatternBearish,
	}
	if d.isHammerShape(c) && c.IsBearish() {
		m.IsValid = true
		m.Confidence = confidenceHangingMan
	}
	return m
}

// ShootingStar reports a long upper shadow over a small body.
func (d *CandlestickDetector) ShootingStar(c models.Candle) analysis.PatternMatch {
	m := analysis.PatternMatch{
		Name:        analysis.PatternShootingStar,
		Description: "Bearish reversal pattern with long upper shadow",
		Type:        analysis.PatternBearish,
	}

	body := d.bodySize(c)
	if d.upperShadow(c) > body*d.shadowThreshold &&
		d.lowerShadow(c) < body*d.oppositeShadowMax &&
		body < d.candleRange(c)*d.smallBodyMax {
		m.IsValid = true
		m.Confidence = confidenceShootingStar
	}
	return m
}

// PinBar reports a small body with either shadow longer than twice the body.
// The longer shadow decides the direction.
func (d *CandlestickDetector) PinBar(c models.Candle) analysis.PatternMatch {
	upper := d.upperShadow(c)
	lower := d.lowerShadow(c)

	m := analysis.PatternMatch{
		Name:        analysis.PatternPinBar,
		Description: "Strong reversal signal with small body and long shadow",
		Type:        analysis.PatternBearish,
	}
	if lower > upper {
		m.Type = analysis.PatternBullish
	}

	rng := d.candleRange(c)
	if rng <= 0 {
		return m
	}
	body := d.bodySize(c)
	if body/rng < d.smallBodyMax && (lower > body*d.shadowThreshold || upper > body*d.shadowThreshold) {
		m.IsValid = true
		m.Confidence = confidencePinBar
	}
	return m
}

// Engulfing reports a current body that opens beyond and closes beyond the
// previous body in the opposite direction.
func (d *CandlestickDetector) Engulfing(prev, curr models.Candle) analysis.PatternMatch {
	prevBullish := prev.IsBullish()
	currBullish := curr.IsBullish()

	bullish := !prevBullish && currBullish &&
		curr.Open < prev.Close &&
		curr.Close > prev.Open

	bearish := prevBullish && !currBullish &&
		curr.Open > prev.Close &&
		curr.Close < prev.Open

	m := analysis.PatternMatch{
		Name:        analysis.PatternBearishEngulfing,
		Description: "Bearish reversal pattern where current candle engulfs previous",
		Type:        analysis.PatternBearish,
	}
	if bullish {
		m.Name = analysis.PatternBullishEngulfing
		m.Description = "Bullish reversal pattern where current candle engulfs previous"
		m.Type = analysis.PatternBullish
	}
	if bullish || bearish {
		m.IsValid = true
		m.Confidence = confidenceEngulfing
	}
	return m
}

// InsideBar reports a candle whose range sits strictly within the previous one.
func (d *CandlestickDetector) InsideBar(prev, curr models.Candle) analysis.PatternMatch {
	m := analysis.PatternMatch{
		Name:        analysis.PatternInsideBar,
		Description: "Consolidation pattern indicating potential breakout",
		Type:        analysis.PatternNeutral,
	}
	if curr.High < prev.High && curr.Low > prev.Low {
		m.IsValid = true
		m.Confidence = confidenceInsideBar
	}
	return m
}

// Names returns the names of the given matches, in order.
func Names(matches []analysis.PatternMatch) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = string(m.Name)
	}
	return names
}

func (d *CandlestickDetector) isHammerShape(c models.Candle) bool {
	body := d.bodySize(c)
	return d.lowerShadow(c) > body*d.shadowThreshold &&
		d.upperShadow(c) < body*d.oppositeShadowMax &&
		body < d.candleRange(c)*d.smallBodyMax
}

// Helper functions for candle analysis
func (d *CandlestickDetector) bodySize(c models.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func (d *CandlestickDetector) candleRange(c models.Candle) float64 {
	return c.High - c.Low
}

func (d *CandlestickDetector) upperShadow(c models.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func (d *CandlestickDetector) lowerShadow(c models.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}
