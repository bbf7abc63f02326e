package aggregator

import "errors"

var (
	// ErrNoSourcesAvailable indicates that no quotes were provided, i.e. every
	// applicable source failed or none are configured for the token.
	ErrNoSourcesAvailable = errors.New("no sources available")
	// ErrNonPositivePrice indicates a quote with a zero or negative price.
	ErrNonPositivePrice = errors.New("quote price must be positive")
)
