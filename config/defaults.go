package config

import (
	"time"

	"github.com/daneel-ai/daneel/persistence"
)

// Default returns the baseline configuration: console logging at info level,
// an in-memory notification store, and metrics enabled.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Bus: BusConfig{
			ChannelBuffer: 64,
			RetryInterval: 30 * time.Second,
		},
		Store: persistence.DefaultStoreConfig(),
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "daneel",
		},
	}
}
