// Package tokens provides the static token registry mapping symbols to
// on-chain mint addresses and decimal precision.
package tokens

import (
	"fmt"
	"strings"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
)

// Token describes one registered token.
type Token struct {
	Symbol   string
	Mint     string
	Decimals int
}

// Registry is the read-only symbol -> token mapping, loaded once at startup.
type Registry struct {
	tokens map[string]Token
}

// Normalize converts a raw token identifier to its canonical form.
// All lookups go through this so that "sol", " SOL " and "SOL" are the
// same token.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NewRegistry builds a registry from configuration.
func NewRegistry(entries []config.TokenConfig) (*Registry, error) {
	registry := make(map[string]Token, len(entries))
	for _, entry := range entries {
		symbol := Normalize(entry.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("%w", ErrEmptySymbol)
		}
		if _, ok := registry[symbol]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol)
		}
		registry[symbol] = Token{
			Symbol:   symbol,
			Mint:     entry.Mint,
			Decimals: entry.Decimals,
		}
	}
	return &Registry{tokens: registry}, nil
}

// Lookup returns the token for a symbol, normalizing first.
func (r *Registry) Lookup(symbol string) (Token, bool) {
	token, ok := r.tokens[Normalize(symbol)]
	return token, ok
}

// Mint returns the mint address for a symbol, or empty string if unknown.
func (r *Registry) Mint(symbol string) string {
	if token, ok := r.Lookup(symbol); ok {
		return token.Mint
	}
	return ""
}

// Symbols returns all registered symbols.
func (r *Registry) Symbols() []string {
	symbols := make([]string, 0, len(r.tokens))
	for symbol := range r.tokens {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	return len(r.tokens)
}
