package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/server"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
	"github.com/Bonsai515/pricefeed-go/pkg/server/cache"
	"github.com/Bonsai515/pricefeed-go/pkg/server/collector"
	"github.com/Bonsai515/pricefeed-go/pkg/server/sources"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

// fixedSource always answers with the same price.
type fixedSource struct {
	name  string
	price decimal.Decimal
}

func (s *fixedSource) Fetch(_ context.Context, token string) (sources.Quote, error) {
	return sources.Quote{
		Source:    s.name,
		Token:     token,
		Price:     s.price,
		FetchedAt: time.Now(),
	}, nil
}

func (s *fixedSource) Supports(string) bool { return true }

func (s *fixedSource) Name() string { return s.name }

func (s *fixedSource) Weight() float64 { return 1.0 }

func (s *fixedSource) Timeout() time.Duration { return 100 * time.Millisecond }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	registry, err := tokens.NewRegistry([]config.TokenConfig{
		{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
		{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	})
	require.NoError(t, err)

	logger := logging.NewNoopLogger()
	cfg := config.ServiceConfig{
		CacheTTL:         config.Duration(time.Minute),
		OutlierThreshold: 0.20,
		FetchGrace:       config.Duration(500 * time.Millisecond),
		DisableScheduler: true,
	}

	srcs := []sources.Source{
		&fixedSource{name: "a", price: decimal.RequireFromString("150")},
		&fixedSource{name: "b", price: decimal.RequireFromString("152")},
	}

	service, err := server.NewPriceService(cfg, registry, srcs,
		aggregator.New(cfg.OutlierThreshold, logger), cache.NewMemoryCache(), collector.New(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	return NewServer(":0", service, logger)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandlePrice(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrice(rec, httptest.NewRequest(http.MethodGet, "/v1/price?token=sol", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var price aggregator.AggregatedPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &price))
	assert.Equal(t, "SOL", price.Token)
	assert.True(t, price.Price.Equal(decimal.RequireFromString("151")))
	assert.ElementsMatch(t, []string{"a", "b"}, price.Sources)
}

func TestHandlePriceMissingToken(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrice(rec, httptest.NewRequest(http.MethodGet, "/v1/price", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePriceUnknownToken(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrice(rec, httptest.NewRequest(http.MethodGet, "/v1/price?token=DOGE", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "DOGE")
}

func TestHandlePriceMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrice(rec, httptest.NewRequest(http.MethodPost, "/v1/price?token=SOL", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlePricesBatch(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrices(rec, httptest.NewRequest(http.MethodGet, "/v1/prices?tokens=SOL,DOGE", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Prices, "SOL")
	assert.Contains(t, resp.Errors, "DOGE")
}

func TestHandlePricesMissingParam(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrices(rec, httptest.NewRequest(http.MethodGet, "/v1/prices", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePricesAllFail(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePrices(rec, httptest.NewRequest(http.MethodGet, "/v1/prices?tokens=DOGE,SHIB", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleTerms(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleTerms(rec, httptest.NewRequest(http.MethodGet, "/v1/terms?base=SOL&quote=USDC", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var terms server.TermsPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &terms))
	assert.Equal(t, "SOL", terms.Base)
	assert.Equal(t, "USDC", terms.Quote)
	assert.Equal(t, "1", terms.Price, "both legs share the same fixed sources")
}

func TestHandleTermsMissingParams(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleTerms(rec, httptest.NewRequest(http.MethodGet, "/v1/terms?base=SOL", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCacheDelete(t *testing.T) {
	s := newTestServer(t)

	// Warm the cache first.
	rec := httptest.NewRecorder()
	s.handlePrice(rec, httptest.NewRequest(http.MethodGet, "/v1/price?token=SOL", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handleCache(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache?token=SOL", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handleCacheStats(rec, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Size)
}

func TestHandleCacheWrongMethod(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleCache(rec, httptest.NewRequest(http.MethodGet, "/v1/cache", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSourceMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleSourceMetrics(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics/sources", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStopUnblocksStart(t *testing.T) {
	s := newTestServer(t)
	s.addr = "127.0.0.1:0"

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	// Wait for Start to publish the listener before shutting it down.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.server != nil
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "graceful shutdown is not an error")
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}

	// Stopping an already drained server is a no-op.
	assert.NoError(t, s.Stop(ctx))
}
