// Package config provides configuration management for the pattern trader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "pattern-trader/internal/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// PATTERN_TRADER_SERVER_ADDR=:9090.
const EnvPrefix = "PATTERN_TRADER"

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Broadcaster BroadcasterConfig `mapstructure:"broadcaster"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// BroadcasterConfig holds WebSocket hub settings.
type BroadcasterConfig struct {
	PingInterval     time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	SendBufferSize   int           `mapstructure:"send_buffer_size" validate:"gte=1"`
	MaxMessageSize   int64         `mapstructure:"max_message_size" validate:"gte=64"`
	MissedProbeLimit int           `mapstructure:"missed_probe_limit" validate:"gte=1"`
}

// AnalysisConfig holds indicator periods and synthesizer settings.
type AnalysisConfig struct {
	Workers          int          `mapstructure:"workers" validate:"gte=1,lte=64"`
	RSIPeriod        int          `mapstructure:"rsi_period" validate:"gte=1"`
	StochasticPeriod int          `mapstructure:"stochastic_period" validate:"gte=1"`
	WilliamsRPeriod  int          `mapstructure:"williams_r_period" validate:"gte=1"`
	ATRPeriod        int          `mapstructure:"atr_period" validate:"gte=1"`
	BollingerPeriod  int          `mapstructure:"bollinger_period" validate:"gte=1"`
	BollingerK       float64      `mapstructure:"bollinger_k" validate:"gt=0"`
	MACDFast         int          `mapstructure:"macd_fast" validate:"gte=1"`
	MACDSlow         int          `mapstructure:"macd_slow" validate:"gte=1"`
	MACDSignal       int          `mapstructure:"macd_signal" validate:"gte=1"`
	VolatilityOffset float64      `mapstructure:"volatility_offset" validate:"gt=0"`
	Volume           VolumeConfig `mapstructure:"volume"`
}

// VolumeConfig selects the volume evidence source.
type VolumeConfig struct {
	Source      string  `mapstructure:"source" validate:"oneof=none always random ratio"`
	Seed        uint64  `mapstructure:"seed"`
	Probability float64 `mapstructure:"probability" validate:"gte=0,lte=1"`
	Period      int     `mapstructure:"period" validate:"gte=1"`
	Threshold   float64 `mapstructure:"threshold" validate:"gt=0"`
}

// PipelineConfig holds the periodic analysis loop settings.
type PipelineConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval" validate:"gt=0"`
	MinConfidence int           `mapstructure:"min_confidence" validate:"gte=0,lte=100"`
	HistoryLimit  int           `mapstructure:"history_limit" validate:"gte=2"`
	Watches       []WatchConfig `mapstructure:"watches" validate:"dive"`
}

// WatchConfig names one (symbol, timeframe) series analyzed by the pipeline.
type WatchConfig struct {
	Symbol    string `mapstructure:"symbol" validate:"required"`
	Timeframe string `mapstructure:"timeframe" validate:"required"`
}

// StoreConfig holds the SQLite location.
type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RedisConfig holds the optional Pub/Sub relay settings.
type RedisConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Relay          bool          `mapstructure:"relay"`
	Addr           string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db" validate:"gte=0"`
	Prefix         string        `mapstructure:"prefix" validate:"required_if=Enabled true"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"gte=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Console    bool   `mapstructure:"console"`
	JSON       bool   `mapstructure:"json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path" validate:"required_if=File true"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pattern-trader"
	}
	return filepath.Join(home, ".config", "pattern-trader")
}

// ConfigPath returns the config file path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is replaced by the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	// Defaults are plain values; decoding cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, configDir)
	return v
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("broadcaster.ping_interval", 30*time.Second)
	v.SetDefault("broadcaster.write_timeout", 10*time.Second)
	v.SetDefault("broadcaster.send_buffer_size", 256)
	v.SetDefault("broadcaster.max_message_size", 4096)
	v.SetDefault("broadcaster.missed_probe_limit", 1)

	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.rsi_period", 14)
	v.SetDefault("analysis.stochastic_period", 14)
	v.SetDefault("analysis.williams_r_period", 14)
	v.SetDefault("analysis.atr_period", 14)
	v.SetDefault("analysis.bollinger_period", 20)
	v.SetDefault("analysis.bollinger_k", 2.0)
	v.SetDefault("analysis.macd_fast", 12)
	v.SetDefault("analysis.macd_slow", 26)
	v.SetDefault("analysis.macd_signal", 9)
	v.SetDefault("analysis.volatility_offset", 0.002)
	v.SetDefault("analysis.volume.source", "ratio")
	v.SetDefault("analysis.volume.seed", 1)
	v.SetDefault("analysis.volume.probability", 0.3)
	v.SetDefault("analysis.volume.period", 20)
	v.SetDefault("analysis.volume.threshold", 1.5)

	v.SetDefault("pipeline.enabled", true)
	v.SetDefault("pipeline.interval", 30*time.Second)
	v.SetDefault("pipeline.min_confidence", 60)
	v.SetDefault("pipeline.history_limit", 250)

	v.SetDefault("store.path", filepath.Join(configDir, "pattern-trader.db"))

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.relay", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pattern-trader")
	v.SetDefault("redis.reconnect_delay", 3*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "pattern-trader.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(fe.Namespace(), fe.Value(),
				fmt.Sprintf("failed %q constraint", fe.Tag()))
		}
		return err
	}

	if c.Analysis.MACDFast >= c.Analysis.MACDSlow {
		return apperrors.NewValidationError("Config.Analysis.MACDFast", c.Analysis.MACDFast,
			"must be less than macd_slow")
	}

	seen := make(map[string]bool, len(c.Pipeline.Watches))
	for _, w := range c.Pipeline.Watches {
		key := w.Symbol + "/" + w.Timeframe
		if seen[key] {
			return apperrors.NewValidationError("Config.Pipeline.Watches", key, "duplicate watch")
		}
		seen[key] = true
	}

	return nil
}
