// Package hermes implements the price source against the Pyth Hermes HTTP
// API (v2/updates/price/latest).
package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/porbit/orbital-gateway/internal/config"
	pricefeeddomain "github.com/porbit/orbital-gateway/internal/pricefeed/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

type Client struct {
	url          string
	fetchTimeout time.Duration
	log          *zap.Logger
	client       *http.Client
}

func New(p Params) *Client {
	timeout := p.Cfg.PriceFeed.FetchTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		url:          p.Cfg.PriceFeed.URL,
		fetchTimeout: timeout,
		log:          p.Log.Named("pricefeed.hermes"),
		client:       &http.Client{},
	}
}

type latestResponse struct {
	Parsed []pricefeeddomain.ParsedFeed `json:"parsed"`
}

// FetchBatch requests all feed ids in a single call. The whole batch is
// bounded by the configured fetch timeout.
func (c *Client) FetchBatch(ctx context.Context, feedIDs []string) ([]pricefeeddomain.ParsedFeed, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	q := url.Values{}
	for _, id := range feedIDs {
		q.Add("ids[]", id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hermes fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hermes fetch: HTTP %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("hermes decode: %w", err)
	}
	return body.Parsed, nil
}
