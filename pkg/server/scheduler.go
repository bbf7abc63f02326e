package server

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
	"github.com/Bonsai515/pricefeed-go/pkg/server/collector"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

// SnapshotSink receives periodic collector snapshots, e.g. for streaming to
// WebSocket subscribers.
type SnapshotSink func(map[string]collector.SourceMetrics)

// PriceSink receives every price the scheduler successfully rewarms.
type PriceSink func(aggregator.AggregatedPrice)

// RefreshScheduler rewarms hot tokens on a fixed interval so their cache
// entries never lapse, and flushes collector snapshots on a slower one.
type RefreshScheduler struct {
	service       *PriceService
	hotTokens     []string
	interval      time.Duration
	flushInterval time.Duration
	logger        *logging.Logger

	mu         sync.Mutex
	sinks      []SnapshotSink
	priceSinks []PriceSink

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewRefreshScheduler creates a stopped scheduler for the service's hot
// token list.
func NewRefreshScheduler(service *PriceService, cfg config.ServiceConfig, logger *logging.Logger) *RefreshScheduler {
	hot := make([]string, 0, len(cfg.HotTokens))
	for _, token := range cfg.HotTokens {
		hot = append(hot, tokens.Normalize(token))
	}

	return &RefreshScheduler{
		service:       service,
		hotTokens:     hot,
		interval:      cfg.RefreshInterval.ToDuration(),
		flushInterval: cfg.MetricsFlushInterval.ToDuration(),
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// AddSnapshotSink registers a consumer for periodic metrics snapshots.
func (r *RefreshScheduler) AddSnapshotSink(sink SnapshotSink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, sink)
	r.mu.Unlock()
}

// AddPriceSink registers a consumer for refreshed hot token prices.
func (r *RefreshScheduler) AddPriceSink(sink PriceSink) {
	r.mu.Lock()
	r.priceSinks = append(r.priceSinks, sink)
	r.mu.Unlock()
}

// Start launches the refresh and flush loops.
func (r *RefreshScheduler) Start() {
	if len(r.hotTokens) > 0 && r.interval > 0 {
		r.wg.Add(1)
		go r.refreshLoop()
	}

	if r.flushInterval > 0 {
		r.wg.Add(1)
		go r.flushLoop()
	}

	r.logger.Info("Refresh scheduler started",
		"hot_tokens", len(r.hotTokens),
		"interval", r.interval.String(),
		"flush_interval", r.flushInterval.String())
}

// Stop terminates the loops and waits for them to exit. Idempotent.
func (r *RefreshScheduler) Stop() {
	r.stopped.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

func (r *RefreshScheduler) refreshLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Warm the cache immediately rather than waiting out the first tick.
	r.refreshAll()

	for {
		select {
		case <-ticker.C:
			r.refreshAll()
		case <-r.done:
			return
		}
	}
}

// refreshAll rewarms every hot token once. Each token gets a short retry
// budget; a token that stays cold this cycle gets another chance next tick.
func (r *RefreshScheduler) refreshAll() {
	for _, token := range r.hotTokens {
		select {
		case <-r.done:
			return
		default:
		}

		if err := r.refreshToken(token); err != nil {
			metrics.RecordRefreshCycle("error")
			r.logger.Warn("Hot token refresh failed", "token", token, "error", err.Error())
			continue
		}
		metrics.RecordRefreshCycle("ok")
	}
}

func (r *RefreshScheduler) refreshToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxElapsedTime(r.interval),
	), ctx)

	var price aggregator.AggregatedPrice
	err := backoff.Retry(func() error {
		var refreshErr error
		price, refreshErr = r.service.refresh(ctx, token)
		return refreshErr
	}, policy)
	if err != nil {
		return err
	}

	r.mu.Lock()
	sinks := make([]PriceSink, len(r.priceSinks))
	copy(sinks, r.priceSinks)
	r.mu.Unlock()

	for _, sink := range sinks {
		sink(price)
	}
	return nil
}

func (r *RefreshScheduler) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.done:
			return
		}
	}
}

// flush hands the current collector snapshot to every registered sink, logs
// a compact summary per source, then clears the latency samples so the next
// window starts fresh. Counters are cumulative and survive the flush.
func (r *RefreshScheduler) flush() {
	snapshot := r.service.MetricsSnapshot()

	for source, m := range snapshot {
		r.logger.Info("Source metrics",
			"source", source,
			"requests", m.Requests,
			"failures", m.Failures,
			"avg_latency", m.AvgLatency().String())
	}

	r.mu.Lock()
	sinks := make([]SnapshotSink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.Unlock()

	for _, sink := range sinks {
		sink(snapshot)
	}

	r.service.collector.ResetAll()
}
