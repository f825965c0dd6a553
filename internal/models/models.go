// Package models provides domain models for the signal pipeline.
package models

import (
	"time"
)

// Direction represents the side of a trade recommendation.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Candle represents OHLCV data for a time period.
// Volume is zero when the feed does not supply it.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Closes extracts close prices from candles.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts high prices from candles.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts low prices from candles.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts volumes from candles.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// IndicatorSnapshot holds the latest indicator values for a symbol and timeframe.
// A nil field means the history was too short to compute that indicator.
type IndicatorSnapshot struct {
	Symbol          string    `json:"symbol"`
	Timeframe       string    `json:"timeframe"`
	RSI             *float64  `json:"rsi"`
	MACD            *float64  `json:"macd"`
	MACDSignal      *float64  `json:"macdSignal"`
	MACDHistogram   *float64  `json:"macdHistogram"`
	EMA20           *float64  `json:"ema20"`
	EMA50           *float64  `json:"ema50"`
	EMA200          *float64  `json:"ema200"`
	SMA20           *float64  `json:"sma20"`
	SMA50           *float64  `json:"sma50"`
	BollingerUpper  *float64  `json:"bollingerUpper"`
	BollingerMiddle *float64  `json:"bollingerMiddle"`
	BollingerLower  *float64  `json:"bollingerLower"`
	Stochastic      *float64  `json:"stochastic"`
	WilliamsR       *float64  `json:"williamsR"`
	ATR             *float64  `json:"atr"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Float returns a pointer to v. Handy when building snapshots by hand.
func Float(v float64) *float64 {
	return &v
}

// Signal is a persisted trade recommendation produced by the pipeline.
type Signal struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Pattern     string    `json:"pattern"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entryPrice"`
	TargetPrice float64   `json:"targetPrice"`
	StopLoss    float64   `json:"stopLoss"`
	Confidence  int       `json:"confidence"`
	Reasons     []string  `json:"reasons"`
	RSIValue    *float64  `json:"rsiValue"`
	MACDValue   *float64  `json:"macdValue"`
	VolumeSpike bool      `json:"volumeSpike"`
	RiskLevel   string    `json:"riskLevel"`
	RiskReward  float64   `json:"riskReward"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PatternStatus is the lifecycle status of a stored pattern detection.
type PatternStatus string

const (
	PatternActive    PatternStatus = "ACTIVE"
	PatternForming   PatternStatus = "FORMING"
	PatternWeak      PatternStatus = "WEAK"
	PatternCompleted PatternStatus = "COMPLETED"
)

// PatternRecord is a detected candlestick pattern tied to a symbol.
type PatternRecord struct {
	ID          int64         `json:"id"`
	Symbol      string        `json:"symbol"`
	Timeframe   string        `json:"timeframe"`
	PatternName string        `json:"patternName"`
	PatternType string        `json:"patternType"`
	Confidence  int           `json:"confidence"`
	Description string        `json:"description"`
	Status      PatternStatus `json:"status"`
	DetectedAt  time.Time     `json:"detectedAt"`
	IsValid     bool          `json:"isValid"`
}
