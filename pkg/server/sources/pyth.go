package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

const pythBaseURL = "https://hermes.pyth.network"

// PythSource fetches prices from the Pyth Hermes API. Only tokens with a
// configured feed id are supported; Pyth has no symbol lookup of its own.
type PythSource struct {
	*BaseSource

	baseURL string
	feeds   map[string]string // token symbol -> hex feed id
}

// pythFeed is one entry of the latest_price_feeds payload. Prices are
// integer-scaled: price * 10^expo.
type pythFeed struct {
	ID    string `json:"id"`
	Price struct {
		Price       string `json:"price"`
		Conf        string `json:"conf"`
		Expo        int32  `json:"expo"`
		PublishTime int64  `json:"publish_time"`
	} `json:"price"`
}

// NewPythSource creates a new Pyth source
func NewPythSource(cfg config.SourceConfig, deps Deps) (Source, error) {
	raw := cfg.GetStringMap("feeds")
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: 'feeds' mapping required", ErrInvalidConfig)
	}

	feeds := make(map[string]string, len(raw))
	for symbol, feedID := range raw {
		feeds[tokens.Normalize(symbol)] = strings.TrimPrefix(feedID, "0x")
	}

	return &PythSource{
		BaseSource: NewBaseSource(
			cfg.Name,
			cfg.Weight,
			cfg.GetInt("rate_limit_per_minute", 300),
			cfg.GetDuration("timeout", 5*time.Second),
			deps,
		),
		baseURL: cfg.GetString("base_url", pythBaseURL),
		feeds:   feeds,
	}, nil
}

// Supports reports whether a feed id is configured for the token.
func (s *PythSource) Supports(token string) bool {
	_, ok := s.feeds[tokens.Normalize(token)]
	return ok
}

// Fetch returns the current Pyth quote for a token.
func (s *PythSource) Fetch(ctx context.Context, token string) (Quote, error) {
	feedID, ok := s.feeds[tokens.Normalize(token)]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, token)
	}

	url := fmt.Sprintf("%s/api/latest_price_feeds?ids[]=%s", s.baseURL, feedID)

	var payload []pythFeed
	if err := s.FetchJSON(ctx, url, &payload); err != nil {
		return Quote{}, err
	}

	if len(payload) == 0 || payload[0].Price.Price == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPriceInResponse, token)
	}

	mantissa, err := decimal.NewFromString(payload[0].Price.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: price %q: %v", ErrInvalidResponse, payload[0].Price.Price, err)
	}
	price := mantissa.Shift(payload[0].Price.Expo)

	return Quote{
		Source:    s.Name(),
		Token:     token,
		Price:     price,
		FetchedAt: time.Now(),
	}, nil
}

func init() {
	Register("oracle.pyth", NewPythSource)
}
