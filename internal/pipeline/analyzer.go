// Package pipeline runs the indicator engine, pattern classifier and signal
// synthesizer over stored candles and publishes the results.
package pipeline

import (
	"context"
	"strings"
	"time"

	"pattern-trader/internal/analysis"
	"pattern-trader/internal/analysis/indicators"
	"pattern-trader/internal/analysis/patterns"
	"pattern-trader/internal/analysis/scoring"
	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
)

// Analysis is the result of one pass over a candle window.
type Analysis struct {
	Symbol        string                    `json:"symbol"`
	Timeframe     string                    `json:"timeframe"`
	Candles       int                       `json:"candles"`
	LastPrice     float64                   `json:"lastPrice"`
	Change        float64                   `json:"change"`
	ChangePercent float64                   `json:"changePercent"`
	BarTime       time.Time                 `json:"barTime"`
	Snapshot      *models.IndicatorSnapshot `json:"snapshot"`
	Patterns      []analysis.PatternMatch   `json:"patterns"`
	Signal        analysis.SignalAnalysis   `json:"signal"`
	Levels        analysis.Levels           `json:"levels"`
	RiskReward    float64                   `json:"riskReward"`
}

// Analyzer chains the analysis components.
type Analyzer struct {
	engine   *indicators.Engine
	detector analysis.PatternDetector
	scorer   *scoring.SignalScorer
	offset   float64
}

// NewAnalyzer creates an analyzer. A non-positive offset uses the default
// volatility offset.
func NewAnalyzer(engine *indicators.Engine, detector analysis.PatternDetector, scorer *scoring.SignalScorer, offset float64) *Analyzer {
	if offset <= 0 {
		offset = scoring.DefaultVolatilityOffset
	}
	return &Analyzer{
		engine:   engine,
		detector: detector,
		scorer:   scorer,
		offset:   offset,
	}
}

// Analyze computes the snapshot, detects patterns on the latest candles and
// synthesizes a signal with entry levels.
func (a *Analyzer) Analyze(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*Analysis, error) {
	if len(candles) == 0 {
		return nil, apperrors.NewDataError("analysis", 1, 0)
	}

	snap, err := a.engine.Snapshot(ctx, symbol, timeframe, candles)
	if err != nil {
		return nil, apperrors.Wrapf(err, "indicators for %s %s", symbol, timeframe)
	}

	matches := a.detector.DetectAll(candles)
	signal := a.scorer.AnalyzeSignal(candles, snap, patterns.Names(matches))

	last := candles[len(candles)-1]
	result := &Analysis{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   len(candles),
		LastPrice: last.Close,
		BarTime:   last.Timestamp,
		Snapshot:  snap,
		Patterns:  matches,
		Signal:    signal,
		Levels:    scoring.GenerateEntryLevels(last.Close, signal.Direction, a.offset),
	}

	if len(candles) >= 2 {
		prev := candles[len(candles)-2].Close
		result.Change = last.Close - prev
		if prev != 0 {
			result.ChangePercent = result.Change / prev * 100
		}
	}

	rr, err := scoring.CalculateRiskReward(result.Levels.Entry, result.Levels.Target, result.Levels.StopLoss)
	if err == nil {
		result.RiskReward = rr
	}

	return result, nil
}

// SignalRecord converts the analysis into a storable signal.
func (a *Analysis) SignalRecord(id string, now time.Time) *models.Signal {
	names := patterns.Names(a.Patterns)

	sig := &models.Signal{
		ID:          id,
		Symbol:      a.Symbol,
		Timeframe:   a.Timeframe,
		Pattern:     strings.Join(names, ", "),
		Direction:   a.Signal.Direction,
		EntryPrice:  a.Levels.Entry,
		TargetPrice: a.Levels.Target,
		StopLoss:    a.Levels.StopLoss,
		Confidence:  a.Signal.Confidence,
		Reasons:     a.Signal.Reasons,
		VolumeSpike: a.Signal.VolumeSurge,
		RiskLevel:   string(a.Signal.RiskLevel),
		RiskReward:  a.RiskReward,
		IsActive:    true,
		CreatedAt:   now,
	}
	if a.Snapshot != nil {
		sig.RSIValue = a.Snapshot.RSI
		sig.MACDValue = a.Snapshot.MACD
	}
	return sig
}

// PatternRecords converts the detected patterns into storable records.
func (a *Analysis) PatternRecords(now time.Time) []models.PatternRecord {
	records := make([]models.PatternRecord, 0, len(a.Patterns))
	for _, m := range a.Patterns {
		records = append(records, models.PatternRecord{
			Symbol:      a.Symbol,
			Timeframe:   a.Timeframe,
			PatternName: string(m.Name),
			PatternType: string(m.Type),
			Confidence:  int(m.Confidence),
			Description: m.Description,
			Status:      patternStatus(m.Confidence),
			DetectedAt:  now,
			IsValid:     m.IsValid,
		})
	}
	return records
}

// patternStatus grades a match: ACTIVE from 75, FORMING from 65, else WEAK.
func patternStatus(confidence float64) models.PatternStatus {
	switch {
	case confidence >= 75:
		return models.PatternActive
	case confidence >= 65:
		return models.PatternForming
	default:
		return models.PatternWeak
	}
}
