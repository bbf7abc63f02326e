package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  http:
    addr: ":8080"
  websocket:
    enabled: true

service:
  cache_ttl: 5s
  outlier_threshold: 0.20
  refresh_interval: 3s
  hot_tokens:
    - SOL

cache:
  backend: memory

tokens:
  - symbol: SOL
    mint: So11111111111111111111111111111111111111112
    decimals: 9
  - symbol: USDC
    mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
    decimals: 6

sources:
  - type: dex
    name: jupiter
    enabled: true
    weight: 1.0
    config:
      timeout: 2s
      rate_limit_per_minute: 600

logging:
  level: info
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.Service.CacheTTL.ToDuration())
	assert.Equal(t, 0.20, cfg.Service.OutlierThreshold)
	assert.Equal(t, []string{"SOL"}, cfg.Service.HotTokens)
	assert.Len(t, cfg.Tokens, 2)
	assert.Len(t, cfg.Sources, 1)

	require.NoError(t, Validate(cfg))
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `
tokens:
  - symbol: SOL
sources:
  - type: dex
    name: jupiter
    enabled: true
`
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.Service.CacheTTL.ToDuration())
	assert.Equal(t, 0.20, cfg.Service.OutlierThreshold)
	assert.Equal(t, 3*time.Second, cfg.Service.RefreshInterval.ToDuration())
	assert.Equal(t, 60*time.Second, cfg.Service.MetricsFlushInterval.ToDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.Service.FetchGrace.ToDuration())
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")

	content := `
cache:
  backend: redis
  redis:
    addr: "${TEST_REDIS_ADDR}"
tokens:
  - symbol: SOL
sources:
  - type: dex
    name: jupiter
    enabled: true
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "tokens: [not closed"))
	assert.Error(t, err)
}

func TestValidateOutlierThreshold(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Service.OutlierThreshold = 1.5
	assert.ErrorIs(t, Validate(cfg), ErrInvalidOutlierThreshold)

	cfg.Service.OutlierThreshold = -0.1
	assert.ErrorIs(t, Validate(cfg), ErrInvalidOutlierThreshold)
}

func TestValidateRefreshIntervalAgainstTTL(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Service.RefreshInterval = Duration(10 * time.Second)
	assert.ErrorIs(t, Validate(cfg), ErrRefreshIntervalTooLong)

	// A disabled scheduler lifts the constraint.
	cfg.Service.DisableScheduler = true
	assert.NoError(t, Validate(cfg))
}

func TestValidateTokens(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Tokens = nil
	assert.ErrorIs(t, Validate(cfg), ErrNoTokensConfigured)

	cfg.Tokens = []TokenConfig{{Symbol: "SOL"}, {Symbol: "sol"}}
	assert.ErrorIs(t, Validate(cfg), ErrDuplicateToken)

	cfg.Tokens = []TokenConfig{{Symbol: ""}}
	assert.ErrorIs(t, Validate(cfg), ErrTokenSymbolRequired)
}

func TestValidateHotTokensMustBeRegistered(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Service.HotTokens = []string{"DOGE"}
	assert.ErrorIs(t, Validate(cfg), ErrUnknownHotToken)
}

func TestValidateSources(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Sources = nil
	assert.ErrorIs(t, Validate(cfg), ErrNoSourcesConfigured)

	cfg.Sources = []SourceConfig{{Type: "dex", Name: "jupiter", Enabled: false}}
	assert.ErrorIs(t, Validate(cfg), ErrNoSourcesEnabled)

	cfg.Sources = []SourceConfig{{Type: "", Name: "jupiter", Enabled: true}}
	assert.ErrorIs(t, Validate(cfg), ErrSourceTypeRequired)

	cfg.Sources = []SourceConfig{{Type: "dex", Name: "", Enabled: true}}
	assert.ErrorIs(t, Validate(cfg), ErrSourceNameRequired)

	cfg.Sources = []SourceConfig{{Type: "dex", Name: "jupiter", Enabled: true, Weight: 2.0}}
	assert.ErrorIs(t, Validate(cfg), ErrInvalidSourceWeight)
}

func TestValidateCacheBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Cache.Backend = "memcached"
	assert.ErrorIs(t, Validate(cfg), ErrInvalidCacheBackend)

	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Addr = ""
	assert.ErrorIs(t, Validate(cfg), ErrRedisAddrRequired)
}

func TestValidateLogging(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Logging.Level = "verbose"
	assert.ErrorIs(t, Validate(cfg), ErrInvalidLogLevel)

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "xml"
	assert.ErrorIs(t, Validate(cfg), ErrInvalidLogFormat)
}

func TestSourceConfigGetters(t *testing.T) {
	sc := SourceConfig{Config: map[string]interface{}{
		"base_url":              "http://localhost",
		"rate_limit_per_minute": 600,
		"enabled_flag":          true,
		"timeout":               "2s",
		"ids": map[string]interface{}{
			"SOL": "solana",
		},
	}}

	assert.Equal(t, "http://localhost", sc.GetString("base_url", "default"))
	assert.Equal(t, "default", sc.GetString("missing", "default"))
	assert.Equal(t, 600, sc.GetInt("rate_limit_per_minute", 1))
	assert.Equal(t, 1, sc.GetInt("missing", 1))
	assert.True(t, sc.GetBool("enabled_flag", false))
	assert.Equal(t, 2*time.Second, sc.GetDuration("timeout", time.Minute))
	assert.Equal(t, time.Minute, sc.GetDuration("missing", time.Minute))
	assert.Equal(t, map[string]string{"SOL": "solana"}, sc.GetStringMap("ids"))
	assert.Nil(t, sc.GetStringMap("missing"))
}

func TestDurationUnmarshal(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Service.RefreshInterval.ToDuration())
}
