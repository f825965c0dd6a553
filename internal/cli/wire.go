package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"pattern-trader/internal/analysis/indicators"
	"pattern-trader/internal/analysis/patterns"
	"pattern-trader/internal/analysis/scoring"
	"pattern-trader/internal/config"
	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
	"pattern-trader/internal/pipeline"
)

// newAnalyzer builds the analysis chain from [analysis].
func newAnalyzer(cfg config.AnalysisConfig) (*pipeline.Analyzer, error) {
	engine := indicators.NewEngine(indicators.EngineConfig{
		Workers:          cfg.Workers,
		RSIPeriod:        cfg.RSIPeriod,
		StochasticPeriod: cfg.StochasticPeriod,
		WilliamsRPeriod:  cfg.WilliamsRPeriod,
		ATRPeriod:        cfg.ATRPeriod,
		BollingerPeriod:  cfg.BollingerPeriod,
		BollingerK:       cfg.BollingerK,
		MACDFast:         cfg.MACDFast,
		MACDSlow:         cfg.MACDSlow,
		MACDSignal:       cfg.MACDSignal,
	})

	volume, err := scoring.NewVolumeEvidence(scoring.VolumeOptions{
		Kind:        cfg.Volume.Source,
		Seed:        cfg.Volume.Seed,
		Probability: cfg.Volume.Probability,
		Period:      cfg.Volume.Period,
		Threshold:   cfg.Volume.Threshold,
	})
	if err != nil {
		return nil, apperrors.NewValidationError("analysis.volume.source", cfg.Volume.Source, err.Error())
	}

	return pipeline.NewAnalyzer(engine, patterns.NewCandlestickDetector(), scoring.NewSignalScorer(volume), cfg.VolatilityOffset), nil
}

// watches converts configured watches to pipeline watches.
func watches(cfg []config.WatchConfig) []pipeline.Watch {
	out := make([]pipeline.Watch, 0, len(cfg))
	for _, w := range cfg {
		out = append(out, pipeline.Watch{Symbol: strings.ToUpper(w.Symbol), Timeframe: w.Timeframe})
	}
	return out
}

// readCandles loads a JSON array of candles from path ("-" reads stdin) and
// sorts it oldest first.
func readCandles(path string) ([]models.Candle, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading candles: %w", err)
	}

	var candles []models.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("decoding candles from %s: %w", path, err)
	}

	for i, c := range candles {
		if c.Timestamp.IsZero() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("candles[%d].timestamp", i), "", "timestamp is required")
		}
		if c.High < c.Low {
			return nil, apperrors.NewValidationError(fmt.Sprintf("candles[%d].high", i), fmt.Sprint(c.High), "high is below low")
		}
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}
