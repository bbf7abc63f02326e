// Package aggregator reconciles quotes from multiple sources into one
// consensus price with a confidence score.
package aggregator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
	"github.com/Bonsai515/pricefeed-go/pkg/server/sources"
)

const (
	// DefaultOutlierThreshold is the relative deviation from the median
	// beyond which a quote is rejected.
	DefaultOutlierThreshold = 0.20 // 20%

	// minSurvivors is the smallest quote set outlier rejection may leave
	// behind. Rejection that would go below this is skipped so one noisy
	// source can never become the sole contributor.
	minSurvivors = 2
)

// Aggregator computes consensus prices using median-based outlier rejection
// followed by a weighted average.
type Aggregator struct {
	threshold decimal.Decimal
	logger    *logging.Logger
}

// New creates an aggregator. A non-positive threshold falls back to the
// default.
func New(outlierThreshold float64, logger *logging.Logger) *Aggregator {
	if outlierThreshold <= 0 {
		outlierThreshold = DefaultOutlierThreshold
	}
	return &Aggregator{
		threshold: decimal.NewFromFloat(outlierThreshold),
		logger:    logger,
	}
}

// Aggregate computes the consensus price for one token from the given quotes.
// weights maps source names to their configured weight; missing entries
// default to 1.0. Quote order does not matter.
func (a *Aggregator) Aggregate(token string, quotes []sources.Quote, weights map[string]float64) (AggregatedPrice, error) {
	start := time.Now()

	if len(quotes) == 0 {
		return AggregatedPrice{}, fmt.Errorf("%w: %s", ErrNoSourcesAvailable, token)
	}

	for _, quote := range quotes {
		if !quote.Price.IsPositive() {
			return AggregatedPrice{}, fmt.Errorf("%w: %s from %s", ErrNonPositivePrice, quote.Price, quote.Source)
		}
	}

	// Single quote passes through untouched with full confidence.
	if len(quotes) == 1 {
		result := AggregatedPrice{
			Token:      token,
			Price:      quotes[0].Price,
			Confidence: 1.0,
			Sources:    []string{quotes[0].Source},
			ComputedAt: time.Now(),
		}
		metrics.RecordAggregation(token, result.Confidence, time.Since(start))
		return result, nil
	}

	sorted := make([]sources.Quote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})

	median := medianPrice(sorted)
	survivors := a.rejectOutliers(token, sorted, median)

	price := weightedAverage(survivors, weights)
	confidence := confidenceScore(survivors, price)

	names := make([]string, 0, len(survivors))
	for _, quote := range survivors {
		names = append(names, quote.Source)
	}

	result := AggregatedPrice{
		Token:      token,
		Price:      price,
		Confidence: confidence,
		Sources:    names,
		ComputedAt: time.Now(),
	}

	a.logger.Debug("Aggregated price",
		"token", token,
		"price", price.String(),
		"confidence", confidence,
		"sources", len(names),
		"rejected", len(quotes)-len(survivors))

	metrics.RecordAggregation(token, confidence, time.Since(start))
	return result, nil
}

// rejectOutliers drops quotes deviating from the median by more than the
// threshold. If rejection would leave fewer than minSurvivors quotes, the
// original set is returned unchanged for this cycle. Quotes exactly at the
// threshold are kept (strict comparison), so equidistant ties stay in.
func (a *Aggregator) rejectOutliers(token string, sorted []sources.Quote, median decimal.Decimal) []sources.Quote {
	if median.IsZero() {
		return sorted
	}

	filtered := make([]sources.Quote, 0, len(sorted))
	for _, quote := range sorted {
		deviation := quote.Price.Sub(median).Abs().Div(median)
		if deviation.GreaterThan(a.threshold) {
			a.logger.Debug("Rejecting outlier",
				"token", token,
				"source", quote.Source,
				"price", quote.Price.String(),
				"median", median.String(),
				"deviation", deviation.String())
			continue
		}
		filtered = append(filtered, quote)
	}

	if len(filtered) < minSurvivors {
		a.logger.Warn("Outlier rejection skipped, too few survivors",
			"token", token,
			"quotes", len(sorted),
			"survivors", len(filtered))
		return sorted
	}

	for i := 0; i < len(sorted)-len(filtered); i++ {
		metrics.RecordOutlierRejection(token)
	}
	return filtered
}

// medianPrice returns the median of quotes already sorted by price.
func medianPrice(sorted []sources.Quote) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sorted[n/2].Price
	}
	return sorted[n/2-1].Price.Add(sorted[n/2].Price).Div(decimal.NewFromInt(2))
}

// weightedAverage computes sum(price*weight)/sum(weight) over the quotes.
// Sources without a configured weight count with weight 1.0.
func weightedAverage(quotes []sources.Quote, weights map[string]float64) decimal.Decimal {
	sum := decimal.Zero
	totalWeight := decimal.Zero

	for _, quote := range quotes {
		weight := 1.0
		if w, ok := weights[quote.Source]; ok && w > 0 {
			weight = w
		}
		dw := decimal.NewFromFloat(weight)
		sum = sum.Add(quote.Price.Mul(dw))
		totalWeight = totalWeight.Add(dw)
	}

	if totalWeight.IsZero() {
		return decimal.Zero
	}
	return sum.Div(totalWeight)
}

// confidenceScore maps the dispersion of surviving quotes around the
// consensus price to [0, 1]: max(0, 1 - stddev/price). Tight agreement
// yields a score near 1.
func confidenceScore(quotes []sources.Quote, price decimal.Decimal) float64 {
	mean, _ := price.Float64()
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, quote := range quotes {
		p, _ := quote.Price.Float64()
		diff := p - mean
		variance += diff * diff
	}
	variance /= float64(len(quotes))

	confidence := 1 - math.Sqrt(variance)/mean
	if confidence < 0 {
		return 0
	}
	return confidence
}
