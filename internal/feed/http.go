package feed

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"odte-trader/internal/api"
	"odte-trader/internal/types"
)

// HTTPFeed pulls option prices from an external quote service. Requests are
// rate limited so a tight monitoring loop cannot exhaust the provider budget.
type HTTPFeed struct {
	client  *api.Client
	limiter *rate.Limiter
}

type HTTPFeedConfig struct {
	BaseURL            string
	RateLimitPerMinute int
	Timeout            time.Duration
}

func NewHTTPFeed(cfg HTTPFeedConfig) *HTTPFeed {
	return &HTTPFeed{
		client: api.NewClient(
			api.WithBaseURL(cfg.BaseURL),
			api.WithTimeout(cfg.Timeout),
			api.WithLogging(true),
		),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
	}
}

type quoteResponse struct {
	Price float64 `json:"price"`
}

func (f *HTTPFeed) CurrentPrice(ctx context.Context, symbol string, optType types.OptionType, strike float64, expiry string) (float64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("type", string(optType))
	q.Set("strike", fmt.Sprintf("%.2f", strike))
	q.Set("expiry", expiry)

	resp, err := f.client.GET(ctx, "/v1/option/price?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("quote request: %w", err)
	}

	var out quoteResponse
	if err := resp.ParseJSON(&out); err != nil {
		return 0, err
	}
	if out.Price <= 0 {
		return 0, fmt.Errorf("quote service returned non-positive price %.4f for %s", out.Price, symbol)
	}
	return out.Price, nil
}
