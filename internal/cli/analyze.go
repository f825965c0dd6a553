package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pattern-trader/internal/analysis/indicators"
	"pattern-trader/internal/models"
	"pattern-trader/internal/pipeline"
	"pattern-trader/pkg/utils"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	var (
		timeframe string
		file      string
		limit     int
		detailed  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Technical analysis and signal for a symbol",
		Long: `Run one analysis pass over stored candles (or a JSON file):
- Momentum indicators (RSI, Stochastic, Williams %R)
- Trend indicators (EMA 20/50/200, SMA 20/50, MACD)
- Volatility indicators (Bollinger Bands, ATR)
- Candlestick patterns on the latest candles
- Synthesized signal with entry, target and stop levels`,
		Example: `  pattern-trader analyze BTCUSD --timeframe 1h
  pattern-trader analyze AAPL --file aapl.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])

			var candles []models.Candle
			var err error
			if file != "" {
				candles, err = readCandles(file)
			} else {
				candles, err = loadCandles(ctx, app, symbol, timeframe, limit)
			}
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				output.Error("No candles for %s %s. Use 'pattern-trader import' first.", symbol, timeframe)
				return fmt.Errorf("no candles for %s %s", symbol, timeframe)
			}

			analyzer, err := newAnalyzer(app.Config.Analysis)
			if err != nil {
				return err
			}
			result, err := analyzer.Analyze(ctx, symbol, timeframe, candles)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			displayAnalysis(output, result, candles, detailed, app.Config.Analysis.Volume.Period)
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1d", "candle timeframe")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read candles from a JSON file instead of the store")
	cmd.Flags().IntVarP(&limit, "limit", "n", 250, "number of stored candles to analyze")
	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "show every indicator")

	return cmd
}

func loadCandles(ctx context.Context, app *App, symbol, timeframe string, limit int) ([]models.Candle, error) {
	st, err := app.Store()
	if err != nil {
		return nil, err
	}
	return st.GetRecentCandles(ctx, symbol, timeframe, limit)
}

func displayAnalysis(output *Output, a *pipeline.Analysis, candles []models.Candle, detailed bool, volumePeriod int) {
	snap := a.Snapshot

	// Header
	output.Bold("%s Technical Analysis", a.Symbol)
	output.Printf("  Last: %s  %s  Timeframe: %s  Candles: %d\n",
		output.BoldText(utils.FormatPrice(a.LastPrice)),
		output.FormatChange(a.Change, a.ChangePercent),
		a.Timeframe, a.Candles)
	output.Dim("  Bar time: %s", a.BarTime.Format(time.RFC3339))
	output.Println()

	// Momentum
	output.Bold("Momentum")
	rsiColor := ColorYellow
	if snap.RSI != nil {
		if *snap.RSI > 70 {
			rsiColor = ColorRed
		} else if *snap.RSI < 30 {
			rsiColor = ColorGreen
		}
	}
	output.Printf("  RSI: %s  Stochastic: %s  Williams %%R: %s\n",
		output.ColoredString(rsiColor, utils.FormatOptional(snap.RSI, 1)),
		utils.FormatOptional(snap.Stochastic, 1),
		utils.FormatOptional(snap.WilliamsR, 1))
	output.Println()

	// Trend
	output.Bold("Trend")
	output.Printf("  MACD: %s  Signal: %s  Histogram: %s\n",
		utils.FormatOptional(snap.MACD, 3),
		utils.FormatOptional(snap.MACDSignal, 3),
		utils.FormatOptional(snap.MACDHistogram, 3))
	if detailed {
		output.Printf("  EMA(20): %s  EMA(50): %s  EMA(200): %s\n",
			utils.FormatOptional(snap.EMA20, 2),
			utils.FormatOptional(snap.EMA50, 2),
			utils.FormatOptional(snap.EMA200, 2))
		output.Printf("  SMA(20): %s  SMA(50): %s\n",
			utils.FormatOptional(snap.SMA20, 2),
			utils.FormatOptional(snap.SMA50, 2))
	}
	output.Println()

	// Volatility
	output.Bold("Volatility")
	output.Printf("  ATR: %s\n", utils.FormatOptional(snap.ATR, 2))
	output.Printf("  Bollinger Bands: %s / %s / %s\n",
		utils.FormatOptional(snap.BollingerLower, 2),
		utils.FormatOptional(snap.BollingerMiddle, 2),
		utils.FormatOptional(snap.BollingerUpper, 2))
	output.Println()

	// Volume
	if detailed {
		volumes := make([]float64, len(candles))
		for i, c := range candles {
			volumes[i] = c.Volume
		}
		output.Bold("Volume")
		if ratio, err := indicators.VolumeRatio(volumes, volumePeriod); err == nil {
			output.Printf("  Current: %s  Ratio: %.2fx  Surge: %v\n",
				utils.FormatVolume(volumes[len(volumes)-1]), ratio, a.Signal.VolumeSurge)
		} else {
			output.Printf("  Current: %s  Surge: %v\n", utils.FormatVolume(volumes[len(volumes)-1]), a.Signal.VolumeSurge)
		}
		output.Println()
	}

	// Patterns
	output.Bold("Candlestick Patterns")
	if len(a.Patterns) == 0 {
		output.Dim("  None on the latest candles")
	}
	for _, p := range a.Patterns {
		valid := ""
		if !p.IsValid {
			valid = output.DimText(" (unconfirmed)")
		}
		output.Printf("  %-16s %s %3.0f%%%s\n", p.Name, output.PatternType(p.Type), p.Confidence, valid)
		if detailed {
			output.Dim("    %s", p.Description)
		}
	}
	output.Println()

	// Signal
	output.Bold("Signal")
	output.Printf("  Direction:  %s  Risk: %s\n", output.Direction(a.Signal.Direction), a.Signal.RiskLevel)
	output.Printf("  Confidence: %s\n", output.Confidence(a.Signal.Confidence))
	output.Printf("  Entry: %s  Target: %s  Stop: %s  R:R %.2f\n",
		utils.FormatPrice(a.Levels.Entry),
		output.Green(utils.FormatPrice(a.Levels.Target)),
		output.Red(utils.FormatPrice(a.Levels.StopLoss)),
		a.RiskReward)
	for _, reason := range a.Signal.Reasons {
		output.Printf("  • %s\n", reason)
	}
}
