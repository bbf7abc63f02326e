// Package collector accumulates per-source request, failure and latency
// statistics for observability.
package collector

import (
	"sync"
	"time"

	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
)

// MaxLatencySamples bounds the per-source latency ring buffer.
const MaxLatencySamples = 1000

// SourceMetrics is a point-in-time snapshot of one source's counters.
type SourceMetrics struct {
	Source    string          `json:"source"`
	Requests  uint64          `json:"requests"`
	Failures  uint64          `json:"failures"`
	Latencies []time.Duration `json:"latencies"`
}

// AvgLatency returns the mean of the recorded latency samples.
func (m SourceMetrics) AvgLatency() time.Duration {
	if len(m.Latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, sample := range m.Latencies {
		total += sample
	}
	return total / time.Duration(len(m.Latencies))
}

// sourceState is the live, mutable counterpart of SourceMetrics.
type sourceState struct {
	requests uint64
	failures uint64
	// latencies is a ring buffer: next points at the slot the next sample
	// overwrites once the buffer is full.
	latencies []time.Duration
	next      int
	full      bool
}

// Collector accumulates per-source metrics. Safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	sources map[string]*sourceState
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{
		sources: make(map[string]*sourceState),
	}
}

// Record registers the outcome of one fetch against a source.
// Every call increments the request counter; successful calls additionally
// append a latency sample.
func (c *Collector) Record(source string, success bool, latency time.Duration) {
	c.mu.Lock()
	state, ok := c.sources[source]
	if !ok {
		state = &sourceState{}
		c.sources[source] = state
	}

	state.requests++
	if success {
		if state.full {
			state.latencies[state.next] = latency
			state.next = (state.next + 1) % MaxLatencySamples
		} else {
			state.latencies = append(state.latencies, latency)
			if len(state.latencies) == MaxLatencySamples {
				state.full = true
				state.next = 0
			}
		}
	} else {
		state.failures++
	}
	c.mu.Unlock()

	metrics.RecordSourceRequest(source, success, latency)
}

// Snapshot returns a consistent point-in-time copy of all source metrics.
func (c *Collector) Snapshot() map[string]SourceMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]SourceMetrics, len(c.sources))
	for name, state := range c.sources {
		latencies := make([]time.Duration, len(state.latencies))
		copy(latencies, state.latencies)
		snapshot[name] = SourceMetrics{
			Source:    name,
			Requests:  state.requests,
			Failures:  state.failures,
			Latencies: latencies,
		}
	}
	return snapshot
}

// Reset clears the latency samples for a source. Request and failure
// counters are cumulative for the life of the process and are kept.
func (c *Collector) Reset(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.sources[source]; ok {
		state.latencies = nil
		state.next = 0
		state.full = false
	}
}

// ResetAll clears latency samples for every source.
func (c *Collector) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, state := range c.sources {
		state.latencies = nil
		state.next = 0
		state.full = false
	}
}
