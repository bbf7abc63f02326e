package aggregator

import (
	"time"

	"github.com/shopspring/decimal"
)

// AggregatedPrice is the consensus result for one token. It is the unit
// stored in the cache and returned to callers.
type AggregatedPrice struct {
	Token      string          `json:"token"`
	Price      decimal.Decimal `json:"price"`
	Confidence float64         `json:"confidence"`
	Sources    []string        `json:"sources"`
	ComputedAt time.Time       `json:"computed_at"`
}
