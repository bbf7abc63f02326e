package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
)

const solFeedID = "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"

func pythConfig(baseURL string) config.SourceConfig {
	return config.SourceConfig{
		Type:    "oracle",
		Name:    "pyth",
		Enabled: true,
		Weight:  1.0,
		Config: map[string]interface{}{
			"base_url":              baseURL,
			"rate_limit_per_minute": 6000,
			"feeds": map[string]interface{}{
				"sol": "0x" + solFeedID,
			},
		},
	}
}

func TestPythFetchAppliesExponent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, solFeedID, r.URL.Query().Get("ids[]"))
		// 14253000000 * 10^-8 = 142.53
		fmt.Fprintf(w, `[{"id":"%s","price":{"price":"14253000000","conf":"12000000","expo":-8,"publish_time":1700000000}}]`, solFeedID)
	}))
	defer server.Close()

	source, err := NewPythSource(pythConfig(server.URL), testDeps(t))
	require.NoError(t, err)

	quote, err := source.Fetch(context.Background(), "SOL")
	require.NoError(t, err)

	assert.True(t, quote.Price.Equal(decimal.RequireFromString("142.53")),
		"expected 142.53, got %s", quote.Price)
}

func TestPythSupportsOnlyConfiguredFeeds(t *testing.T) {
	source, err := NewPythSource(pythConfig("http://localhost"), testDeps(t))
	require.NoError(t, err)

	// Feed keys are normalized, so case does not matter.
	assert.True(t, source.Supports("SOL"))
	assert.True(t, source.Supports("sol"))
	assert.False(t, source.Supports("BTC"))

	_, err = source.Fetch(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrUnsupportedToken)
}

func TestPythEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	source, err := NewPythSource(pythConfig(server.URL), testDeps(t))
	require.NoError(t, err)

	_, err = source.Fetch(context.Background(), "SOL")
	assert.ErrorIs(t, err, ErrNoPriceInResponse)
}

func TestPythRequiresFeeds(t *testing.T) {
	cfg := config.SourceConfig{Type: "oracle", Name: "pyth", Config: map[string]interface{}{}}
	_, err := NewPythSource(cfg, testDeps(t))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBaseSourceWeightClamping(t *testing.T) {
	deps := testDeps(t)

	base := NewBaseSource("test", 0, 60, 0, deps)
	assert.Equal(t, 1.0, base.Weight(), "unset weight defaults to 1.0")

	base = NewBaseSource("test", 1.5, 60, 0, deps)
	assert.Equal(t, 1.0, base.Weight(), "out-of-range weight clamps to 1.0")

	base = NewBaseSource("test", 0.3, 60, 0, deps)
	assert.Equal(t, 0.3, base.Weight())
}
