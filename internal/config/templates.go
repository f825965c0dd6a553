package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Pattern Trader Configuration
# Every key can be overridden with PATTERN_TRADER_<SECTION>_<KEY>.

[server]
# HTTP listen address serving /ws, /metrics and /healthz
addr = ":8080"
read_timeout = "15s"
write_timeout = "15s"
shutdown_timeout = "10s"

[broadcaster]
# Liveness sweep period; a connection that misses a probe is dropped on the next sweep
ping_interval = "30s"
write_timeout = "10s"
# Per-connection outbound queue; a full queue drops the connection
send_buffer_size = 256
max_message_size = 4096
missed_probe_limit = 1

[analysis]
workers = 4
rsi_period = 14
stochastic_period = 14
williams_r_period = 14
atr_period = 14
bollinger_period = 20
bollinger_k = 2.0
macd_fast = 12
macd_slow = 26
macd_signal = 9
# Entry level offset: target is 2x, stop is 1x
volatility_offset = 0.002

[analysis.volume]
# Volume surge evidence: none, always, random, ratio
source = "ratio"
# Used by "random"
seed = 1
probability = 0.3
# Used by "ratio": last volume >= threshold x average of the previous period volumes
period = 20
threshold = 1.5

[pipeline]
enabled = true
interval = "30s"
# Signals below this confidence are not stored or broadcast
min_confidence = 60
# Candles loaded per watch
history_limit = 250

# [[pipeline.watches]]
# symbol = "EUR/USD"
# timeframe = "1h"

[store]
# SQLite database file (defaults to pattern-trader.db in the config directory)
# path = ""

[redis]
# Publish pipeline events to <prefix>:<channel>. With relay = true the local
# hub is fed from Redis (including events from other processes); otherwise
# events go to the local hub and Redis side by side.
enabled = false
relay = true
addr = "localhost:6379"
password = ""
db = 0
prefix = "pattern-trader"
reconnect_delay = "3s"

[log]
# debug, info, warn, error
level = "info"
console = true
json = false
file = false
max_size = 100
max_backups = 7
max_age = 30
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
