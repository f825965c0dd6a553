package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pattern-trader/internal/store"
	"pattern-trader/pkg/utils"
)

// addDataCommands adds the stored-history commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newSeriesCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
	rootCmd.AddCommand(newPatternsCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	var symbol, timeframe string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load candles from a JSON file into the store",
		Long: `Load candles from a JSON array into the store. Existing candles with the
same timestamp are replaced. Use "-" to read from stdin.

Each element looks like:
  {"timestamp":"2026-01-02T09:15:00Z","open":100,"high":101,"low":99,"close":100.5,"volume":1200}`,
		Example: `  pattern-trader import btc-1h.json --symbol BTCUSD --timeframe 1h`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol = strings.ToUpper(symbol)

			candles, err := readCandles(args[0])
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				output.Warning("No candles in %s", args[0])
				return nil
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.SaveCandles(cmd.Context(), symbol, timeframe, candles); err != nil {
				return err
			}
			app.Logger.Info().Str("symbol", symbol).Str("timeframe", timeframe).Int("candles", len(candles)).Msg("Candles imported")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": timeframe,
					"imported":  len(candles),
				})
			}
			output.Success("✓ Imported %d candles for %s %s", len(candles), symbol, timeframe)
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol the candles belong to")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1d", "candle timeframe")
	cmd.MarkFlagRequired("symbol")

	return cmd
}

func newSeriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "List stored candle series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.Store()
			if err != nil {
				return err
			}
			series, err := st.ListSeries(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(series)
			}
			if len(series) == 0 {
				output.Dim("No candles stored. Use 'pattern-trader import' to load some.")
				return nil
			}

			table := NewTable(output, "SYMBOL", "TIMEFRAME", "CANDLES", "FIRST", "LAST")
			for _, s := range series {
				table.AddRow(s.Symbol, s.Timeframe, fmt.Sprint(s.Count),
					s.First.Format("2006-01-02 15:04"), s.Last.Format("2006-01-02 15:04"))
			}
			table.Render()
			return nil
		},
	}
}

func newSignalsCmd(app *App) *cobra.Command {
	var filter store.SignalFilter

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List active signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			filter.Symbol = strings.ToUpper(filter.Symbol)

			st, err := app.Store()
			if err != nil {
				return err
			}
			signals, err := st.GetActiveSignals(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(signals)
			}
			if len(signals) == 0 {
				output.Dim("No active signals")
				return nil
			}

			table := NewTable(output, "SYMBOL", "TF", "DIRECTION", "ENTRY", "TARGET", "STOP", "CONFIDENCE", "PATTERN")
			for _, s := range signals {
				table.AddRow(s.Symbol, s.Timeframe, output.Direction(s.Direction),
					utils.FormatPrice(s.EntryPrice), utils.FormatPrice(s.TargetPrice), utils.FormatPrice(s.StopLoss),
					fmt.Sprintf("%d%%", s.Confidence), s.Pattern)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.Symbol, "symbol", "s", "", "only signals for this symbol")
	cmd.Flags().StringVarP(&filter.Timeframe, "timeframe", "t", "", "only signals for this timeframe")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum number of signals")

	return cmd
}

func newPatternsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "patterns <symbol>",
		Short: "List recently detected patterns for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])

			st, err := app.Store()
			if err != nil {
				return err
			}
			records, err := st.GetPatternsBySymbol(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No patterns recorded for %s", symbol)
				return nil
			}

			table := NewTable(output, "DETECTED", "TF", "PATTERN", "TYPE", "CONFIDENCE", "STATUS")
			for _, r := range records {
				table.AddRow(r.DetectedAt.Format("2006-01-02 15:04"), r.Timeframe, r.PatternName,
					r.PatternType, fmt.Sprintf("%d%%", r.Confidence), string(r.Status))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of patterns")

	return cmd
}
