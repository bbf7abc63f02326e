package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priceHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Helper()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/price":
			fmt.Fprintf(w, `{"token":"%s","price":"142.5","confidence":0.98,"sources":["jupiter"],"computed_at":"2026-08-23T10:00:00Z"}`,
				r.URL.Query().Get("token"))
		case "/v1/prices":
			fmt.Fprint(w, `{"prices":{"SOL":{"token":"SOL","price":"142.5","confidence":0.98,"sources":["jupiter"],"computed_at":"2026-08-23T10:00:00Z"}},"errors":{"DOGE":"unknown token"}}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestGetPrice(t *testing.T) {
	server := httptest.NewServer(priceHandler(t))
	defer server.Close()

	c, err := NewHTTPClient([]string{server.URL}, time.Second)
	require.NoError(t, err)

	price, err := c.GetPrice(context.Background(), "SOL")
	require.NoError(t, err)

	assert.Equal(t, "SOL", price.Token)
	assert.True(t, price.Price.Equal(decimal.RequireFromString("142.5")))
	assert.Equal(t, 0.98, price.Confidence)
}

func TestGetPrices(t *testing.T) {
	server := httptest.NewServer(priceHandler(t))
	defer server.Close()

	c, err := NewHTTPClient([]string{server.URL}, time.Second)
	require.NoError(t, err)

	prices, err := c.GetPrices(context.Background(), []string{"SOL", "DOGE"})
	require.NoError(t, err)

	require.Contains(t, prices, "SOL")
	assert.NotContains(t, prices, "DOGE")
}

func TestFallbackToSecondEndpoint(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := httptest.NewServer(priceHandler(t))
	defer working.Close()

	c, err := NewHTTPClient([]string{broken.URL, working.URL}, time.Second)
	require.NoError(t, err)

	price, err := c.GetPrice(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, "SOL", price.Token)
}

func TestAllEndpointsFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	c, err := NewHTTPClient([]string{broken.URL}, time.Second)
	require.NoError(t, err)

	_, err = c.GetPrice(context.Background(), "SOL")
	assert.ErrorIs(t, err, ErrAllEndpointsFailed)
}

func TestNewHTTPClientRequiresURL(t *testing.T) {
	_, err := NewHTTPClient(nil, time.Second)
	assert.Error(t, err)
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	server := httptest.NewServer(priceHandler(t))
	defer server.Close()

	c, err := NewHTTPClient([]string{server.URL + "/"}, time.Second)
	require.NoError(t, err)

	_, err = c.GetPrice(context.Background(), "SOL")
	assert.NoError(t, err)
}
