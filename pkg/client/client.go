// Package client provides an HTTP client for the price engine API, for use
// by downstream services.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
	"github.com/Bonsai515/pricefeed-go/pkg/version"
)

// ErrAllEndpointsFailed is returned when no configured endpoint answered.
var ErrAllEndpointsFailed = errors.New("all price endpoints failed")

// Client interface for fetching consensus prices.
type Client interface {
	GetPrice(ctx context.Context, token string) (aggregator.AggregatedPrice, error)
	GetPrices(ctx context.Context, tokens []string) (map[string]aggregator.AggregatedPrice, error)
}

// HTTPClient implements Client against one or more price engine endpoints.
// Endpoints are tried in order until one answers.
type HTTPClient struct {
	baseURLs []string
	client   *http.Client
}

// batchPayload mirrors the /v1/prices response body.
type batchPayload struct {
	Prices map[string]aggregator.AggregatedPrice `json:"prices"`
	Errors map[string]string                     `json:"errors,omitempty"`
}

// NewHTTPClient creates a price client with fallback endpoints.
func NewHTTPClient(baseURLs []string, timeout time.Duration) (*HTTPClient, error) {
	if len(baseURLs) == 0 {
		return nil, errors.New("at least one base URL is required")
	}

	urls := make([]string, len(baseURLs))
	for i, raw := range baseURLs {
		urls[i] = strings.TrimRight(raw, "/")
	}

	return &HTTPClient{
		baseURLs: urls,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GetPrice fetches the consensus price for one token.
func (c *HTTPClient) GetPrice(ctx context.Context, token string) (aggregator.AggregatedPrice, error) {
	var price aggregator.AggregatedPrice
	path := "/v1/price?token=" + url.QueryEscape(token)
	if err := c.getJSON(ctx, path, &price); err != nil {
		return aggregator.AggregatedPrice{}, err
	}
	return price, nil
}

// GetPrices fetches consensus prices for a batch of tokens. Tokens the
// server could not resolve are absent from the result.
func (c *HTTPClient) GetPrices(ctx context.Context, tokens []string) (map[string]aggregator.AggregatedPrice, error) {
	var payload batchPayload
	path := "/v1/prices?tokens=" + url.QueryEscape(strings.Join(tokens, ","))
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Prices, nil
}

// getJSON tries each endpoint in order and decodes the first OK response.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	for _, base := range c.baseURLs {
		if err := c.fetchOne(ctx, base+path, out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAllEndpointsFailed, lastErr)
}

func (c *HTTPClient) fetchOne(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("price server returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
