package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/server/collector"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
	"github.com/Bonsai515/pricefeed-go/pkg/version"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultRequestsPerMin  = 60
	breakerOpenTimeout     = 30 * time.Second
	breakerFailureTripping = 5
)

// BaseSource provides the shared mechanics for all HTTP price sources:
// per-source rate limiting, request timeout, circuit breaking, and metrics
// recording. Adapters embed it and implement Fetch/Supports on top.
type BaseSource struct {
	name      string
	weight    float64
	timeout   time.Duration
	limiter   *rate.Limiter
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	registry  *tokens.Registry
	collector *collector.Collector
	logger    *logging.Logger
}

// NewBaseSource creates the shared base for a source.
// requestsPerMinute derives the token-bucket refill rate; a caller arriving
// with an exhausted bucket blocks until the limiter admits it.
func NewBaseSource(name string, weight float64, requestsPerMinute int, timeout time.Duration, deps Deps) *BaseSource {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMin
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if weight <= 0 || weight > 1 {
		weight = 1.0
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureTripping
		},
	})

	return &BaseSource{
		name:      name,
		weight:    weight,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
		client:    &http.Client{Timeout: timeout},
		breaker:   breaker,
		registry:  deps.Registry,
		collector: deps.Collector,
		logger:    logger,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Weight returns the configured aggregation weight
func (b *BaseSource) Weight() float64 {
	return b.weight
}

// Timeout returns the per-request timeout
func (b *BaseSource) Timeout() time.Duration {
	return b.timeout
}

// Registry returns the token registry
func (b *BaseSource) Registry() *tokens.Registry {
	return b.registry
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// FetchJSON performs one rate-limited, circuit-broken GET against the source
// and decodes the JSON body into out. Every call is counted as a request,
// including ones aborted while queued at the limiter; successes record a
// latency sample, failures a failure.
func (b *BaseSource) FetchJSON(ctx context.Context, url string, out interface{}) error {
	// Blocks until the per-source rate limit admits this call. Limiter wait
	// time is not part of the recorded latency.
	if err := b.limiter.Wait(ctx); err != nil {
		b.collector.Record(b.name, false, 0)
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	start := time.Now()
	err := b.doRequest(ctx, url, out)
	b.collector.Record(b.name, err == nil, time.Since(start))

	if err != nil {
		b.logger.Debug("Source fetch failed", "source", b.name, "error", err.Error())
	}
	return err
}

// doRequest executes the HTTP call inside the circuit breaker.
func (b *BaseSource) doRequest(ctx context.Context, url string, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", version.AgentString())

		resp, err := b.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode == http.StatusTooManyRequests {
			b.logger.Warn("Rate limit exceeded upstream", "source", b.name)
			return nil, fmt.Errorf("%w (HTTP 429)", ErrRateLimitExceeded)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrSourceUnavailable, b.name)
	}
	return err
}
