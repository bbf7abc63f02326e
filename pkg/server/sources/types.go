// Package sources provides price source interfaces and implementations.
package sources

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/server/collector"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

// Quote is one source's reported price for one token at one instant.
// Quotes are ephemeral: produced per fetch, consumed by aggregation, never
// persisted.
type Quote struct {
	Source    string          `json:"source"`
	Token     string          `json:"token"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Source defines the interface all price sources implement.
type Source interface {
	// Fetch returns the current quote for a token, or an error. It blocks
	// on the source's rate limiter and is bounded by the source's timeout.
	Fetch(ctx context.Context, token string) (Quote, error)

	// Supports reports whether this source can answer for the token.
	// Fetch on an unsupported token returns ErrUnsupportedToken without
	// touching the network.
	Supports(token string) bool

	// Name returns the unique name of this source.
	Name() string

	// Weight returns the configured aggregation weight of this source.
	Weight() float64

	// Timeout returns the per-request timeout of this source.
	Timeout() time.Duration
}

// Deps carries the shared collaborators injected into every source.
type Deps struct {
	Registry  *tokens.Registry
	Collector *collector.Collector
	Logger    *logging.Logger
}

// Factory is a function that creates a new Source instance.
type Factory func(cfg config.SourceConfig, deps Deps) (Source, error)
