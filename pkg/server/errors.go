package server

import "errors"

var (
	// ErrUnknownToken is returned when a requested token is not in the registry
	ErrUnknownToken = errors.New("unknown token")

	// ErrNoSources is returned when a service is constructed without sources
	ErrNoSources = errors.New("at least one price source is required")
)
