// Package server implements the price engine: the service facade that ties
// sources, aggregation and caching together, and the background scheduler
// that keeps hot tokens warm.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
	"github.com/Bonsai515/pricefeed-go/pkg/server/cache"
	"github.com/Bonsai515/pricefeed-go/pkg/server/collector"
	"github.com/Bonsai515/pricefeed-go/pkg/server/sources"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

// TermsPrice expresses one token in units of another, derived from two USD
// consensus prices. Confidence is the weaker of the two legs.
type TermsPrice struct {
	Base       string                     `json:"base"`
	Quote      string                     `json:"quote"`
	Price      string                     `json:"price"`
	Confidence float64                    `json:"confidence"`
	BaseLeg    aggregator.AggregatedPrice `json:"base_leg"`
	QuoteLeg   aggregator.AggregatedPrice `json:"quote_leg"`
}

// PriceService is the facade callers use to read prices. It answers from the
// cache when it can and fans out to every supporting source when it cannot.
type PriceService struct {
	cfg        config.ServiceConfig
	registry   *tokens.Registry
	sources    []sources.Source
	weights    map[string]float64
	aggregator *aggregator.Aggregator
	cache      cache.Cache
	collector  *collector.Collector
	scheduler  *RefreshScheduler
	logger     *logging.Logger
}

// NewPriceService wires the price engine together. The scheduler is created
// but not started; call Start.
func NewPriceService(
	cfg config.ServiceConfig,
	registry *tokens.Registry,
	srcs []sources.Source,
	agg *aggregator.Aggregator,
	priceCache cache.Cache,
	coll *collector.Collector,
	logger *logging.Logger,
) (*PriceService, error) {
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}

	weights := make(map[string]float64, len(srcs))
	for _, src := range srcs {
		weights[src.Name()] = src.Weight()
	}

	service := &PriceService{
		cfg:        cfg,
		registry:   registry,
		sources:    srcs,
		weights:    weights,
		aggregator: agg,
		cache:      priceCache,
		collector:  coll,
		logger:     logger,
	}
	service.scheduler = NewRefreshScheduler(service, cfg, logger)
	return service, nil
}

// Start launches the background refresh scheduler unless it is disabled.
func (s *PriceService) Start() {
	if s.cfg.DisableScheduler {
		s.logger.Info("Refresh scheduler disabled")
		return
	}
	s.scheduler.Start()
}

// Scheduler returns the refresh scheduler, for wiring snapshot consumers.
func (s *PriceService) Scheduler() *RefreshScheduler {
	return s.scheduler
}

// GetPrice returns the consensus price for a token, serving from the cache
// when a fresh entry exists and aggregating live quotes otherwise.
func (s *PriceService) GetPrice(ctx context.Context, token string) (aggregator.AggregatedPrice, error) {
	symbol := tokens.Normalize(token)
	if _, ok := s.registry.Lookup(symbol); !ok {
		return aggregator.AggregatedPrice{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}

	if price, ok := s.cache.Get(ctx, symbol); ok {
		return price, nil
	}

	return s.refresh(ctx, symbol)
}

// GetPrices resolves a batch of tokens best-effort: each token resolves or
// fails independently. Both maps are keyed by normalized symbol.
func (s *PriceService) GetPrices(ctx context.Context, tokenList []string) (map[string]aggregator.AggregatedPrice, map[string]error) {
	prices := make(map[string]aggregator.AggregatedPrice, len(tokenList))
	failures := make(map[string]error)

	for _, token := range tokenList {
		symbol := tokens.Normalize(token)
		if _, done := prices[symbol]; done {
			continue
		}
		if _, failed := failures[symbol]; failed {
			continue
		}

		price, err := s.GetPrice(ctx, symbol)
		if err != nil {
			failures[symbol] = err
			continue
		}
		prices[symbol] = price
	}

	return prices, failures
}

// GetPriceInTerms prices base in units of quote by dividing the two USD
// consensus prices.
func (s *PriceService) GetPriceInTerms(ctx context.Context, base, quote string) (TermsPrice, error) {
	basePrice, err := s.GetPrice(ctx, base)
	if err != nil {
		return TermsPrice{}, fmt.Errorf("base leg: %w", err)
	}

	quotePrice, err := s.GetPrice(ctx, quote)
	if err != nil {
		return TermsPrice{}, fmt.Errorf("quote leg: %w", err)
	}

	confidence := basePrice.Confidence
	if quotePrice.Confidence < confidence {
		confidence = quotePrice.Confidence
	}

	return TermsPrice{
		Base:       basePrice.Token,
		Quote:      quotePrice.Token,
		Price:      basePrice.Price.Div(quotePrice.Price).String(),
		Confidence: confidence,
		BaseLeg:    basePrice,
		QuoteLeg:   quotePrice,
	}, nil
}

// ClearCache invalidates one token, or everything when token is empty.
func (s *PriceService) ClearCache(ctx context.Context, token string) error {
	if token == "" {
		return s.cache.InvalidateAll(ctx)
	}
	return s.cache.Invalidate(ctx, tokens.Normalize(token))
}

// MetricsSnapshot returns a point-in-time copy of the per-source fetch
// statistics.
func (s *PriceService) MetricsSnapshot() map[string]collector.SourceMetrics {
	return s.collector.Snapshot()
}

// CacheStats returns cache hit/miss counters and entry count.
func (s *PriceService) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}

// Close stops the scheduler and releases the cache backend.
func (s *PriceService) Close() error {
	s.scheduler.Stop()
	return s.cache.Close()
}

// refresh fetches live quotes for a token, aggregates them and caches the
// result. It never caches a failure.
func (s *PriceService) refresh(ctx context.Context, symbol string) (aggregator.AggregatedPrice, error) {
	quotes, err := s.fetchQuotes(ctx, symbol)
	if err != nil {
		return aggregator.AggregatedPrice{}, err
	}

	price, err := s.aggregator.Aggregate(symbol, quotes, s.weights)
	if err != nil {
		return aggregator.AggregatedPrice{}, err
	}

	if err := s.cache.Set(ctx, symbol, price, s.cfg.CacheTTL.ToDuration()); err != nil {
		// A broken cache degrades to uncached reads, it does not fail them.
		s.logger.Warn("Failed to cache price", "token", symbol, "error", err.Error())
	}

	return price, nil
}

// fetchQuotes fans out to every source that supports the token and collects
// whatever arrives before the deadline. Individual source failures reduce
// the quote set; only an empty set is an error.
func (s *PriceService) fetchQuotes(ctx context.Context, symbol string) ([]sources.Quote, error) {
	var supporting []sources.Source
	maxTimeout := time.Duration(0)
	for _, src := range s.sources {
		if !src.Supports(symbol) {
			continue
		}
		supporting = append(supporting, src)
		if src.Timeout() > maxTimeout {
			maxTimeout = src.Timeout()
		}
	}

	if len(supporting) == 0 {
		return nil, fmt.Errorf("%w: %s", aggregator.ErrNoSourcesAvailable, symbol)
	}

	// The slowest permitted source plus a grace window bounds the whole
	// fan-out, so one stall cannot hold the request hostage.
	deadline := maxTimeout + s.cfg.FetchGrace.ToDuration()
	fetchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fetchPool := pool.NewWithResults[sources.Quote]().WithContext(fetchCtx)
	for _, src := range supporting {
		src := src
		fetchPool.Go(func(ctx context.Context) (sources.Quote, error) {
			return src.Fetch(ctx, symbol)
		})
	}

	quotes, err := fetchPool.Wait()
	if err != nil {
		s.logger.Debug("Partial fetch failures",
			"token", symbol,
			"sources", len(supporting),
			"quotes", len(quotes),
			"error", err.Error())
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s: all %d sources failed", aggregator.ErrNoSourcesAvailable, symbol, len(supporting))
	}
	return quotes, nil
}
