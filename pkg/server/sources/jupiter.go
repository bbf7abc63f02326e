package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
)

const jupiterBaseURL = "https://api.jup.ag/price/v2"

// JupiterSource fetches prices from the Jupiter price API. Tokens are
// queried by mint address, so any token in the registry is supported.
type JupiterSource struct {
	*BaseSource

	baseURL string
}

// jupiterResponse is the /price/v2 payload: prices keyed by mint address.
type jupiterResponse struct {
	Data map[string]struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}

// NewJupiterSource creates a new Jupiter source
func NewJupiterSource(cfg config.SourceConfig, deps Deps) (Source, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: token registry required", ErrInvalidConfig)
	}

	return &JupiterSource{
		BaseSource: NewBaseSource(
			cfg.Name,
			cfg.Weight,
			cfg.GetInt("rate_limit_per_minute", 600),
			cfg.GetDuration("timeout", 5*time.Second),
			deps,
		),
		baseURL: cfg.GetString("base_url", jupiterBaseURL),
	}, nil
}

// Supports reports whether the token has a registered mint address.
func (s *JupiterSource) Supports(token string) bool {
	return s.Registry().Mint(token) != ""
}

// Fetch returns the current Jupiter quote for a token.
func (s *JupiterSource) Fetch(ctx context.Context, token string) (Quote, error) {
	mint := s.Registry().Mint(token)
	if mint == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, token)
	}

	url := fmt.Sprintf("%s?ids=%s", s.baseURL, mint)

	var payload jupiterResponse
	if err := s.FetchJSON(ctx, url, &payload); err != nil {
		return Quote{}, err
	}

	entry, ok := payload.Data[mint]
	if !ok || entry.Price == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPriceInResponse, token)
	}

	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: price %q: %v", ErrInvalidResponse, entry.Price, err)
	}

	return Quote{
		Source:    s.Name(),
		Token:     token,
		Price:     price,
		FetchedAt: time.Now(),
	}, nil
}

func init() {
	Register("dex.jupiter", NewJupiterSource)
}
