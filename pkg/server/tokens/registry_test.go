package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
)

func testEntries() []config.TokenConfig {
	return []config.TokenConfig{
		{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
		{Symbol: "usdc", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SOL", Normalize("sol"))
	assert.Equal(t, "SOL", Normalize(" SOL "))
	assert.Equal(t, "SOL", Normalize("Sol"))
	assert.Equal(t, "", Normalize("  "))
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(testEntries())
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())
}

func TestNewRegistryRejectsEmptySymbol(t *testing.T) {
	_, err := NewRegistry([]config.TokenConfig{{Symbol: "   "}})
	assert.ErrorIs(t, err, ErrEmptySymbol)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	entries := []config.TokenConfig{
		{Symbol: "SOL", Mint: "a"},
		{Symbol: "sol", Mint: "b"},
	}
	_, err := NewRegistry(entries)
	assert.ErrorIs(t, err, ErrDuplicateSymbol)
}

func TestLookupNormalizes(t *testing.T) {
	registry, err := NewRegistry(testEntries())
	require.NoError(t, err)

	token, ok := registry.Lookup(" usdc ")
	require.True(t, ok)
	assert.Equal(t, "USDC", token.Symbol)
	assert.Equal(t, 6, token.Decimals)

	_, ok = registry.Lookup("DOGE")
	assert.False(t, ok)
}

func TestMint(t *testing.T) {
	registry, err := NewRegistry(testEntries())
	require.NoError(t, err)

	assert.Equal(t, "So11111111111111111111111111111111111111112", registry.Mint("sol"))
	assert.Equal(t, "", registry.Mint("DOGE"))
}

func TestSymbols(t *testing.T) {
	registry, err := NewRegistry(testEntries())
	require.NoError(t, err)

	symbols := registry.Symbols()
	assert.ElementsMatch(t, []string{"SOL", "USDC"}, symbols)
}
