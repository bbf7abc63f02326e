package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

const (
	coingeckoBaseURL    = "https://api.coingecko.com/api/v3"
	coingeckoProBaseURL = "https://pro-api.coingecko.com/api/v3"

	// Free API allows roughly 10-30 calls/minute; stay conservative.
	coingeckoFreeRPM = 10
	coingeckoProRPM  = 30
)

// CoinGeckoSource fetches prices from the CoinGecko REST API. Tokens are
// queried by CoinGecko id, configured per token.
type CoinGeckoSource struct {
	*BaseSource

	baseURL string
	apiKey  string
	ids     map[string]string // token symbol -> coingecko id
}

// NewCoinGeckoSource creates a new CoinGecko source
func NewCoinGeckoSource(cfg config.SourceConfig, deps Deps) (Source, error) {
	raw := cfg.GetStringMap("ids")
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: 'ids' mapping required", ErrInvalidConfig)
	}

	ids := make(map[string]string, len(raw))
	for symbol, id := range raw {
		ids[tokens.Normalize(symbol)] = id
	}

	apiKey := cfg.GetString("api_key", "")

	// An API key implies the pro tier unless 'pro' is set explicitly; the
	// tier picks the endpoint and the default rate limit.
	defaultRPM := coingeckoFreeRPM
	defaultBaseURL := coingeckoBaseURL
	if cfg.GetBool("pro", apiKey != "") {
		defaultRPM = coingeckoProRPM
		defaultBaseURL = coingeckoProBaseURL
	}

	return &CoinGeckoSource{
		BaseSource: NewBaseSource(
			cfg.Name,
			cfg.Weight,
			cfg.GetInt("rate_limit_per_minute", defaultRPM),
			cfg.GetDuration("timeout", 10*time.Second),
			deps,
		),
		baseURL: cfg.GetString("base_url", defaultBaseURL),
		apiKey:  apiKey,
		ids:     ids,
	}, nil
}

// Supports reports whether a CoinGecko id is configured for the token.
func (s *CoinGeckoSource) Supports(token string) bool {
	_, ok := s.ids[tokens.Normalize(token)]
	return ok
}

// Fetch returns the current CoinGecko quote for a token.
func (s *CoinGeckoSource) Fetch(ctx context.Context, token string) (Quote, error) {
	id, ok := s.ids[tokens.Normalize(token)]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, token)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, id)
	if s.apiKey != "" {
		url += "&x_cg_pro_api_key=" + s.apiKey
	}

	var payload map[string]map[string]float64
	if err := s.FetchJSON(ctx, url, &payload); err != nil {
		return Quote{}, err
	}

	usd, ok := payload[id]["usd"]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPriceInResponse, token)
	}

	return Quote{
		Source:    s.Name(),
		Token:     token,
		Price:     decimal.NewFromFloat(usd),
		FetchedAt: time.Now(),
	}, nil
}

func init() {
	Register("cex.coingecko", NewCoinGeckoSource)
}
