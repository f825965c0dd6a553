package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pattern-trader/internal/config"
	"pattern-trader/internal/logging"
	"pattern-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-19"
)

// App holds the application dependencies. Config and Logger are set before
// any subcommand runs; the store is opened on first use.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger

	store *store.SQLiteStore
}

// Store opens the SQLite store configured in [store].
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.store = st
	return st, nil
}

// Close releases resources opened by commands.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "pattern-trader",
		Short: "Technical analysis and live signal broadcaster",
		Long: `Pattern Trader computes technical indicators, classifies candlestick patterns
and synthesizes trade signals from stored candles. The serve command runs the
analysis on a schedule and pushes prices, patterns and signals to WebSocket
subscribers.

Use 'pattern-trader <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			app.ConfigDir = dir

			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg

			// Handle debug flag
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Log.Level = "debug"
			}
			app.Logger = logging.NewLoggerWithConfig(logConfig(cfg.Log))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/pattern-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addDataCommands(rootCmd, app)
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))

	return rootCmd
}

func logConfig(c config.LogConfig) logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Level,
		Console:    c.Console,
		JSON:       c.JSON,
		File:       c.File,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Pattern Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  "Validate the configuration file. Loading already validates, so reaching this command means the file is valid.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Shutdown:        %s\n", cfg.Server.ShutdownTimeout)
	output.Println()

	output.Bold("Broadcaster")
	output.Printf("  Ping Interval:   %s\n", cfg.Broadcaster.PingInterval)
	output.Printf("  Send Buffer:     %d\n", cfg.Broadcaster.SendBufferSize)
	output.Printf("  Max Message:     %d bytes\n", cfg.Broadcaster.MaxMessageSize)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  RSI Period:      %d\n", cfg.Analysis.RSIPeriod)
	output.Printf("  MACD:            %d/%d/%d\n", cfg.Analysis.MACDFast, cfg.Analysis.MACDSlow, cfg.Analysis.MACDSignal)
	output.Printf("  Bollinger:       %d x %.1f\n", cfg.Analysis.BollingerPeriod, cfg.Analysis.BollingerK)
	output.Printf("  Volume Source:   %s\n", cfg.Analysis.Volume.Source)
	output.Println()

	output.Bold("Pipeline")
	output.Printf("  Enabled:         %v\n", cfg.Pipeline.Enabled)
	output.Printf("  Interval:        %s\n", cfg.Pipeline.Interval)
	output.Printf("  Min Confidence:  %d%%\n", cfg.Pipeline.MinConfidence)
	for _, w := range cfg.Pipeline.Watches {
		output.Printf("  Watch:           %s %s\n", w.Symbol, w.Timeframe)
	}
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Redis:           %v", cfg.Redis.Enabled)
	if cfg.Redis.Enabled {
		output.Printf(" (%s, prefix %q)", cfg.Redis.Addr, cfg.Redis.Prefix)
	}
	output.Println()
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		return fmt.Errorf("pattern-trader: %w", err)
	}
	return nil
}
