// Package analysis provides technical analysis functionality including indicators,
// pattern detection, and signal scoring.
package analysis

import (
	"pattern-trader/internal/models"
)

// PatternDetector finds the formations present on the latest candles.
type PatternDetector interface {
	DetectAll(candles []models.Candle) []PatternMatch
}

// Signal is the directional reading of a single oscillator.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalNeutral Signal = "NEUTRAL"
)

// PatternName identifies a recognized candlestick formation.
type PatternName string

const (
	PatternDoji             PatternName = "Doji"
	PatternHammer           PatternName = "Hammer"
	PatternHangingMan       PatternName = "Hanging Man"
	PatternShootingStar     PatternName = "Shooting Star"
	PatternPinBar           PatternName = "Pin Bar"
	PatternBullishEngulfing PatternName = "Bullish Engulfing"
	PatternBearishEngulfing PatternName = "Bearish Engulfing"
	PatternInsideBar        PatternName = "Inside Bar"
)

// PatternType represents the expected direction of a pattern.
type PatternType string

const (
	PatternBullish PatternType = "BULLISH"
	PatternBearish PatternType = "BEARISH"
	PatternNeutral PatternType = "NEUTRAL"
)

// PatternMatch is the result of running one detector against one or two candles.
// Confidence is zero whenever IsValid is false.
type PatternMatch struct {
	Name        PatternName `json:"name"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
	Type        PatternType `json:"type"`
	IsValid     bool        `json:"isValid"`
}

// RiskLevel buckets a signal by how much evidence backs it.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// SignalAnalysis is the synthesized recommendation for one symbol.
type SignalAnalysis struct {
	Confidence  int              `json:"confidence"`
	Direction   models.Direction `json:"direction"`
	Reasons     []string         `json:"reasons"`
	RiskLevel   RiskLevel        `json:"riskLevel"`
	VolumeSurge bool             `json:"volumeSurge"`
}

// Levels holds the prices at which a signal would be traded.
type Levels struct {
	Entry    float64 `json:"entry"`
	Target   float64 `json:"target"`
	StopLoss float64 `json:"stopLoss"`
}
