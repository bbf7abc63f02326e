package config

import "errors"

var (
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrInvalidSourceWeight indicates that the source weight is outside (0, 1].
	ErrInvalidSourceWeight = errors.New("weight must be in (0, 1]")
	// ErrInvalidOutlierThreshold indicates an outlier threshold outside (0, 1).
	ErrInvalidOutlierThreshold = errors.New("outlier_threshold must be in (0, 1)")
	// ErrRefreshIntervalTooLong indicates a refresh interval >= cache TTL.
	ErrRefreshIntervalTooLong = errors.New("refresh_interval must be shorter than cache_ttl")
	// ErrNoTokensConfigured indicates an empty token registry.
	ErrNoTokensConfigured = errors.New("at least one token must be configured")
	// ErrDuplicateToken indicates a duplicate token symbol in the registry.
	ErrDuplicateToken = errors.New("duplicate token symbol")
	// ErrTokenSymbolRequired indicates a registry entry without a symbol.
	ErrTokenSymbolRequired = errors.New("token symbol is required")
	// ErrUnknownHotToken indicates a hot token missing from the registry.
	ErrUnknownHotToken = errors.New("hot token not present in token registry")
	// ErrInvalidCacheBackend indicates an unknown cache backend.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	// ErrRedisAddrRequired indicates that redis.addr is required for the redis backend.
	ErrRedisAddrRequired = errors.New("redis.addr must be specified for redis cache backend")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
