// Package api provides the HTTP and WebSocket surfaces of the price engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
	"github.com/Bonsai515/pricefeed-go/pkg/server"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
)

// Server represents the HTTP API server.
type Server struct {
	addr    string
	service *server.PriceService
	logger  *logging.Logger

	mu     sync.Mutex
	server *http.Server
}

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// batchResponse is the body of /v1/prices: resolved tokens plus per-token
// failure messages.
type batchResponse struct {
	Prices map[string]aggregator.AggregatedPrice `json:"prices"`
	Errors map[string]string                     `json:"errors,omitempty"`
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, service *server.PriceService, logger *logging.Logger) *Server {
	return &Server{
		addr:    addr,
		service: service,
		logger:  logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/price", s.handlePrice)
	mux.HandleFunc("/v1/prices", s.handlePrices)
	mux.HandleFunc("/v1/terms", s.handleTerms)
	mux.HandleFunc("/v1/cache", s.handleCache)
	mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/v1/metrics/sources", s.handleSourceMetrics)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server. Safe to call from a goroutine other
// than the one running Start.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		s.logger.Info("Stopping HTTP server")
		return srv.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePrice handles GET /v1/price?token=SYMBOL.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/price", strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		s.sendError(w, status, "method not allowed")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		status = http.StatusBadRequest
		s.sendError(w, status, "missing 'token' query parameter")
		return
	}

	price, err := s.service.GetPrice(r.Context(), token)
	if err != nil {
		status = statusFor(err)
		s.sendError(w, status, err.Error())
		return
	}

	s.sendJSON(w, price)
}

// handlePrices handles GET /v1/prices?tokens=A,B,C.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/prices", strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		s.sendError(w, status, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("tokens")
	if raw == "" {
		status = http.StatusBadRequest
		s.sendError(w, status, "missing 'tokens' query parameter")
		return
	}

	var tokenList []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokenList = append(tokenList, token)
		}
	}
	if len(tokenList) == 0 {
		status = http.StatusBadRequest
		s.sendError(w, status, "no tokens given")
		return
	}

	prices, failures := s.service.GetPrices(r.Context(), tokenList)

	response := batchResponse{Prices: prices}
	if len(failures) > 0 {
		response.Errors = make(map[string]string, len(failures))
		for token, err := range failures {
			response.Errors[token] = err.Error()
		}
	}

	// The batch itself succeeds unless every token failed.
	w.Header().Set("Content-Type", "application/json")
	if len(prices) == 0 {
		status = http.StatusServiceUnavailable
		w.WriteHeader(status)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// handleTerms handles GET /v1/terms?base=SOL&quote=USDC.
func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/terms", strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		s.sendError(w, status, "method not allowed")
		return
	}

	base := r.URL.Query().Get("base")
	quote := r.URL.Query().Get("quote")
	if base == "" || quote == "" {
		status = http.StatusBadRequest
		s.sendError(w, status, "both 'base' and 'quote' query parameters are required")
		return
	}

	terms, err := s.service.GetPriceInTerms(r.Context(), base, quote)
	if err != nil {
		status = statusFor(err)
		s.sendError(w, status, err.Error())
		return
	}

	s.sendJSON(w, terms)
}

// handleCache handles DELETE /v1/cache[?token=SYMBOL].
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/v1/cache", strconv.Itoa(status), time.Since(start))
	}()

	if r.Method != http.MethodDelete {
		status = http.StatusMethodNotAllowed
		s.sendError(w, status, "method not allowed")
		return
	}

	token := r.URL.Query().Get("token")
	if err := s.service.ClearCache(r.Context(), token); err != nil {
		status = http.StatusInternalServerError
		s.sendError(w, status, err.Error())
		return
	}

	s.sendJSON(w, map[string]string{"status": "ok"})
}

// handleCacheStats handles GET /v1/cache/stats.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/cache/stats", "200", time.Since(start))
	}()

	s.sendJSON(w, s.service.CacheStats(r.Context()))
}

// handleSourceMetrics handles GET /v1/metrics/sources.
func (s *Server) handleSourceMetrics(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/metrics/sources", "200", time.Since(start))
	}()

	snapshot := s.service.MetricsSnapshot()

	// Report average latency instead of raw samples.
	type sourceSummary struct {
		Source       string `json:"source"`
		Requests     uint64 `json:"requests"`
		Failures     uint64 `json:"failures"`
		AvgLatencyMS int64  `json:"avg_latency_ms"`
	}

	summaries := make(map[string]sourceSummary, len(snapshot))
	for name, m := range snapshot {
		summaries[name] = sourceSummary{
			Source:       m.Source,
			Requests:     m.Requests,
			Failures:     m.Failures,
			AvgLatencyMS: m.AvgLatency().Milliseconds(),
		}
	}

	s.sendJSON(w, summaries)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, server.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, aggregator.ErrNoSourcesAvailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendError sends a JSON error response with the given status.
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
