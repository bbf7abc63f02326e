package sources

import "errors"

var (
	// ErrUnsupportedToken indicates the source has no feed for the token.
	// Expected and filtered silently; never counted as a failure.
	ErrUnsupportedToken = errors.New("token not supported by source")
	// ErrTimeout indicates the source failed to answer within its timeout.
	ErrTimeout = errors.New("source request timed out")
	// ErrInvalidResponse indicates an unusable payload from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates the upstream rejected us with HTTP 429.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrSourceUnavailable indicates the circuit breaker is open after
	// repeated failures.
	ErrSourceUnavailable = errors.New("source temporarily unavailable")
	// ErrNoPriceInResponse indicates the payload parsed but carried no price
	// for the requested token.
	ErrNoPriceInResponse = errors.New("no price for token in response")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownSource indicates no factory is registered under the key.
	ErrUnknownSource = errors.New("unknown source")
)
