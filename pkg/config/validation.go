package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateServiceConfig(&cfg.Service); err != nil {
		return fmt.Errorf("service config: %w", err)
	}

	if err := validateCacheConfig(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := validateTokens(cfg); err != nil {
		return err
	}

	if err := validateSources(cfg.Sources); err != nil {
		return err
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServiceConfig(cfg *ServiceConfig) error {
	if cfg.OutlierThreshold <= 0 || cfg.OutlierThreshold >= 1 {
		return fmt.Errorf("%w: %f", ErrInvalidOutlierThreshold, cfg.OutlierThreshold)
	}
	if !cfg.DisableScheduler && cfg.RefreshInterval.ToDuration() >= cfg.CacheTTL.ToDuration() {
		return fmt.Errorf("%w: %s >= %s", ErrRefreshIntervalTooLong,
			cfg.RefreshInterval.ToDuration(), cfg.CacheTTL.ToDuration())
	}
	return nil
}

func validateCacheConfig(cfg *CacheConfig) error {
	backend := strings.ToLower(cfg.Backend)
	if backend != "memory" && backend != "redis" {
		return fmt.Errorf("%w: %s (must be 'memory' or 'redis')", ErrInvalidCacheBackend, cfg.Backend)
	}
	if backend == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("%w", ErrRedisAddrRequired)
	}
	return nil
}

func validateTokens(cfg *Config) error {
	if len(cfg.Tokens) == 0 {
		return fmt.Errorf("%w", ErrNoTokensConfigured)
	}

	seen := make(map[string]bool, len(cfg.Tokens))
	for i, token := range cfg.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if symbol == "" {
			return fmt.Errorf("%w: token[%d]", ErrTokenSymbolRequired, i)
		}
		if seen[symbol] {
			return fmt.Errorf("%w: %s", ErrDuplicateToken, symbol)
		}
		seen[symbol] = true
	}

	// Hot tokens must resolve in the registry, otherwise the scheduler
	// would fail on every tick.
	for _, hot := range cfg.Service.HotTokens {
		if !seen[strings.ToUpper(strings.TrimSpace(hot))] {
			return fmt.Errorf("%w: %s", ErrUnknownHotToken, hot)
		}
	}

	return nil
}

func validateSources(sources []SourceConfig) error {
	if len(sources) == 0 {
		return fmt.Errorf("%w", ErrNoSourcesConfigured)
	}

	enabled := 0
	for i, source := range sources {
		if !source.Enabled {
			continue
		}
		enabled++

		if source.Type == "" {
			return fmt.Errorf("source %d: %w", i, ErrSourceTypeRequired)
		}
		if source.Name == "" {
			return fmt.Errorf("source %d: %w", i, ErrSourceNameRequired)
		}
		if source.Weight < 0 || source.Weight > 1 {
			return fmt.Errorf("source %d (%s.%s): %w, got %f",
				i, source.Type, source.Name, ErrInvalidSourceWeight, source.Weight)
		}
	}

	if enabled == 0 {
		return fmt.Errorf("%w", ErrNoSourcesEnabled)
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
