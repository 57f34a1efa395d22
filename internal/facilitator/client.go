// Package facilitator talks to the external x402 payment facilitator. The
// gateway only ever uses it as a liveness signal; no response body is read.
package facilitator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/porbit/orbital-gateway/internal/config"
	meteringdomain "github.com/porbit/orbital-gateway/internal/metering/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

type Client struct {
	url    string
	log    *zap.Logger
	client *http.Client
}

func New(p Params) *Client {
	timeout := p.Cfg.Facilitator.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:    p.Cfg.Facilitator.URL,
		log:    p.Log.Named("facilitator.client"),
		client: &http.Client{Timeout: timeout},
	}
}

// Probe performs a HEAD request against the facilitator root. Any HTTP
// response, success or error status, counts as alive.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

var Module = fx.Module("facilitator",
	fx.Provide(
		fx.Annotate(New, fx.As(new(meteringdomain.Prober))),
	),
)
