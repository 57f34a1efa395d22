package domain

import (
	"context"
	"errors"
	"time"
)

// Entry is one cached asset price. Price and Confidence are the scaled
// values; RawPrice and Expo are kept as delivered by the feed.
type Entry struct {
	Symbol     string  `json:"symbol"`
	FeedID     string  `json:"feed_id"`
	RawPrice   float64 `json:"rawPrice"`
	Expo       int32   `json:"expo"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
	Stale      bool    `json:"stale"`
}

// Snapshot is a point-in-time copy of the cache. Mutating it never affects
// the service's own table.
type Snapshot struct {
	Prices     map[string]Entry `json:"prices"`
	LastUpdate *time.Time       `json:"lastUpdate"`
}

// ParsedFeed mirrors one element of the Hermes `parsed` array.
type ParsedFeed struct {
	ID    string    `json:"id"`
	Price FeedPrice `json:"price"`
}

// FeedPrice carries the fixed-point price. Some feed variants name the
// confidence field `confidence` instead of `conf`; both are accepted.
type FeedPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Confidence  string `json:"confidence"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// Source fetches a batch of price updates by feed id.
type Source interface {
	FetchBatch(ctx context.Context, feedIDs []string) ([]ParsedFeed, error)
}

// Service maintains the asset price table via a background poll loop.
// RefreshAll absorbs upstream failures: a failed batch is logged and the
// cache keeps serving last-known-good prices.
type Service interface {
	RefreshAll(ctx context.Context)
	Snapshot() Snapshot
	Start()
	Stop()
}

var ErrUnknownAsset = errors.New("unknown_asset")
