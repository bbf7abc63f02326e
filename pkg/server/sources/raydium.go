package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bonsai515/pricefeed-go/pkg/config"
)

const raydiumBaseURL = "https://api-v3.raydium.io"

// RaydiumSource fetches prices from the Raydium v3 API by mint address.
type RaydiumSource struct {
	*BaseSource

	baseURL string
}

// raydiumResponse is the /mint/price payload: mint -> price string.
type raydiumResponse struct {
	Success bool              `json:"success"`
	Data    map[string]string `json:"data"`
}

// NewRaydiumSource creates a new Raydium source
func NewRaydiumSource(cfg config.SourceConfig, deps Deps) (Source, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: token registry required", ErrInvalidConfig)
	}

	return &RaydiumSource{
		BaseSource: NewBaseSource(
			cfg.Name,
			cfg.Weight,
			cfg.GetInt("rate_limit_per_minute", 120),
			cfg.GetDuration("timeout", 5*time.Second),
			deps,
		),
		baseURL: cfg.GetString("base_url", raydiumBaseURL),
	}, nil
}

// Supports reports whether the token has a registered mint address.
func (s *RaydiumSource) Supports(token string) bool {
	return s.Registry().Mint(token) != ""
}

// Fetch returns the current Raydium quote for a token.
func (s *RaydiumSource) Fetch(ctx context.Context, token string) (Quote, error) {
	mint := s.Registry().Mint(token)
	if mint == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, token)
	}

	url := fmt.Sprintf("%s/mint/price?mints=%s", s.baseURL, mint)

	var payload raydiumResponse
	if err := s.FetchJSON(ctx, url, &payload); err != nil {
		return Quote{}, err
	}

	if !payload.Success {
		return Quote{}, fmt.Errorf("%w: success=false", ErrInvalidResponse)
	}

	raw, ok := payload.Data[mint]
	if !ok || raw == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPriceInResponse, token)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: price %q: %v", ErrInvalidResponse, raw, err)
	}

	return Quote{
		Source:    s.Name(),
		Token:     token,
		Price:     price,
		FetchedAt: time.Now(),
	}, nil
}

func init() {
	Register("dex.raydium", NewRaydiumSource)
}
