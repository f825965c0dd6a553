// Package scoring synthesizes indicator and pattern evidence into trade signals.
package scoring

import (
	"fmt"

	"pattern-trader/internal/analysis"
	"pattern-trader/internal/models"
)

// Weights defines how much confidence each piece of evidence contributes.
type Weights struct {
	RSI     int
	MACD    int
	EMA     int
	Pattern int
	Volume  int
}

// DefaultWeights returns the default evidence weights.
func DefaultWeights() Weights {
	return Weights{
		RSI:     25,
		MACD:    20,
		EMA:     15,
		Pattern: 20,
		Volume:  10,
	}
}

// RSI thresholds for oversold and overbought readings.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// SignalScorer combines an indicator snapshot, detected patterns and volume
// evidence into a SignalAnalysis. It is safe for concurrent use as long as the
// volume evidence source is.
type SignalScorer struct {
	weights Weights
	volume  VolumeEvidence
}

// NewSignalScorer creates a scorer with default weights.
// A nil evidence source never reports a volume surge.
func NewSignalScorer(volume VolumeEvidence) *SignalScorer {
	return NewSignalScorerWithWeights(volume, DefaultWeights())
}

// NewSignalScorerWithWeights creates a scorer with custom weights.
func NewSignalScorerWithWeights(volume VolumeEvidence, weights Weights) *SignalScorer {
	if volume == nil {
		volume = NoVolumeEvidence{}
	}
	return &SignalScorer{
		weights: weights,
		volume:  volume,
	}
}

// AnalyzeSignal scores the evidence. Direction starts as BUY and only RSI can
// flip it; MACD and EMA evidence counts only when it agrees with the direction.
// Nil snapshot fields are skipped.
func (s *SignalScorer) AnalyzeSignal(history []models.Candle, snap *models.IndicatorSnapshot, patterns []string) analysis.SignalAnalysis {
	if snap == nil {
		snap = &models.IndicatorSnapshot{}
	}

	reasons := []string{}
	confidence := 0
	direction := models.DirectionBuy

	// RSI
	if snap.RSI != nil {
		rsi := *snap.RSI
		if rsi < rsiOversold {
			reasons = append(reasons, fmt.Sprintf("RSI Oversold (%.2f)", rsi))
			confidence += s.weights.RSI
			direction = models.DirectionBuy
		} else if rsi > rsiOverbought {
			reasons = append(reasons, fmt.Sprintf("RSI Overbought (%.2f)", rsi))
			confidence += s.weights.RSI
			direction = models.DirectionSell
		}
	}

	// MACD
	if snap.MACD != nil && snap.MACDSignal != nil {
		macd, signal := *snap.MACD, *snap.MACDSignal
		if macd > signal && direction == models.DirectionBuy {
			reasons = append(reasons, "MACD Bullish Crossover")
			confidence += s.weights.MACD
		} else if macd < signal && direction == models.DirectionSell {
			reasons = append(reasons, "MACD Bearish Crossover")
			confidence += s.weights.MACD
		}
	}

	// EMA trend
	if snap.EMA20 != nil && snap.EMA50 != nil {
		ema20, ema50 := *snap.EMA20, *snap.EMA50
		if ema20 > ema50 && direction == models.DirectionBuy {
			reasons = append(reasons, "EMA 20 above EMA 50 (Uptrend)")
			confidence += s.weights.EMA
		} else if ema20 < ema50 && direction == models.DirectionSell {
			reasons = append(reasons, "EMA 20 below EMA 50 (Downtrend)")
			confidence += s.weights.EMA
		}
	}

	for _, p := range patterns {
		reasons = append(reasons, fmt.Sprintf("%s Pattern Detected", p))
		confidence += s.weights.Pattern
	}

	surge := s.volume.VolumeSurge(history)
	if surge {
		reasons = append(reasons, "Volume Surge Confirmed")
		confidence += s.weights.Volume
	}

	confidence = clamp(confidence, 0, 100)

	return analysis.SignalAnalysis{
		Confidence:  confidence,
		Direction:   direction,
		Reasons:     reasons,
		RiskLevel:   riskLevel(confidence),
		VolumeSurge: surge,
	}
}

// riskLevel buckets confidence: HIGH below 50, MEDIUM below 75, LOW otherwise.
func riskLevel(confidence int) analysis.RiskLevel {
	switch {
	case confidence < 50:
		return analysis.RiskHigh
	case confidence < 75:
		return analysis.RiskMedium
	default:
		return analysis.RiskLow
	}
}

// clamp restricts a value to the given range.
func clamp(value, minVal, maxVal int) int {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
