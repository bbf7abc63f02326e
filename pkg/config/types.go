package config

import "time"

// Config is the root configuration structure
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Service ServiceConfig  `yaml:"service"`
	Cache   CacheConfig    `yaml:"cache"`
	Tokens  []TokenConfig  `yaml:"tokens"`
	Sources []SourceConfig `yaml:"sources"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the API server component
type ServerConfig struct {
	HTTP      HTTPConfig `yaml:"http"`
	WebSocket WSConfig   `yaml:"websocket"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ServiceConfig configures the price service engine
type ServiceConfig struct {
	CacheTTL             Duration `yaml:"cache_ttl"`              // TTL for aggregated prices (default 5s)
	OutlierThreshold     float64  `yaml:"outlier_threshold"`      // Relative deviation from median (default 0.20)
	HotTokens            []string `yaml:"hot_tokens"`             // Tokens refreshed proactively
	RefreshInterval      Duration `yaml:"refresh_interval"`       // Hot token refresh interval, must be < cache_ttl
	MetricsFlushInterval Duration `yaml:"metrics_flush_interval"` // Collector snapshot interval
	FetchGrace           Duration `yaml:"fetch_grace"`            // Added to the largest source timeout for the fan-out deadline
	DisableScheduler     bool     `yaml:"disable_scheduler"`      // Disable background refresh (tests)
}

// CacheConfig selects and configures the cache backend
type CacheConfig struct {
	Backend string      `yaml:"backend"` // "memory" or "redis"
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis cache backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TokenConfig describes one entry of the static token registry
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Mint     string `yaml:"mint"`
	Decimals int    `yaml:"decimals"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Weight  float64                `yaml:"weight"`
	Config  map[string]interface{} `yaml:"config"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
