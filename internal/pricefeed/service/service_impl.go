package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/porbit/orbital-gateway/internal/clock"
	"github.com/porbit/orbital-gateway/internal/config"
	obsmetrics "github.com/porbit/orbital-gateway/internal/observability/metrics"
	pricefeeddomain "github.com/porbit/orbital-gateway/internal/pricefeed/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Assets  config.AssetTable
	Source  pricefeeddomain.Source
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	assets   config.AssetTable
	source   pricefeeddomain.Source
	metrics  *obsmetrics.Metrics
	interval time.Duration

	mu         sync.RWMutex
	prices     map[string]pricefeeddomain.Entry
	lastUpdate *time.Time

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func New(p Params) pricefeeddomain.Service {
	interval := p.Cfg.PriceFeed.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Service{
		log:      p.Log.Named("pricefeed.service"),
		clock:    p.Clock,
		assets:   p.Assets,
		source:   p.Source,
		metrics:  p.Metrics,
		interval: interval,
		prices:   make(map[string]pricefeeddomain.Entry),
	}
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// parseOne scales the fixed-point feed price into a decimal entry. The raw
// mantissa and exponent are preserved alongside the scaled values.
func (s *Service) parseOne(meta config.Asset, feed pricefeeddomain.ParsedFeed) (pricefeeddomain.Entry, error) {
	mantissa, err := strconv.ParseFloat(feed.Price.Price, 64)
	if err != nil {
		return pricefeeddomain.Entry{}, err
	}
	scale := math.Pow(10, float64(feed.Price.Expo))

	confRaw := feed.Price.Conf
	if confRaw == "" {
		confRaw = feed.Price.Confidence
	}
	var conf float64
	if confRaw != "" {
		conf, err = strconv.ParseFloat(confRaw, 64)
		if err != nil {
			return pricefeeddomain.Entry{}, err
		}
	}

	ts := feed.Price.PublishTime
	if ts == 0 {
		ts = s.clock.Now().Unix()
	}

	return pricefeeddomain.Entry{
		Symbol:     meta.Symbol,
		FeedID:     meta.FeedID,
		RawPrice:   mantissa,
		Expo:       feed.Price.Expo,
		Price:      round6(mantissa * scale),
		Confidence: round6(conf * scale),
		Timestamp:  ts,
		Stale:      false,
	}, nil
}

// RefreshAll fetches the whole asset table in one batch and merges per-asset.
// A failed batch is logged and leaves the cache and LastUpdate untouched;
// callers always keep last-known-good data.
func (s *Service) RefreshAll(ctx context.Context) {
	keys := make([]string, 0, len(s.assets))
	for key := range s.assets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, s.assets[key].FeedID)
	}

	parsed, err := s.source.FetchBatch(ctx, ids)
	if err != nil {
		s.log.Warn("batch fetch failed", zap.Error(err))
		s.metrics.ObserveFeedRefresh("failure", 0)
		return
	}
	s.log.Debug("fetched price entries", zap.Int("count", len(parsed)))

	byFeedID := make(map[string]pricefeeddomain.ParsedFeed, len(parsed))
	for _, feed := range parsed {
		byFeedID[strings.ToLower(feed.ID)] = feed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make(map[string]pricefeeddomain.Entry, len(s.prices))
	for key, entry := range s.prices {
		updated[key] = entry
	}
	var applied int
	for _, key := range keys {
		meta := s.assets[key]
		feed, ok := byFeedID[strings.ToLower(meta.FeedID)]
		if !ok {
			continue
		}
		entry, err := s.parseOne(meta, feed)
		if err != nil {
			s.log.Warn("failed to parse feed entry", zap.String("asset", key), zap.Error(err))
			continue
		}
		updated[key] = entry
		applied++
		s.log.Debug("updated price", zap.String("asset", key), zap.Float64("price", entry.Price))
	}

	if len(updated) == 0 {
		if s.lastUpdate == nil {
			s.log.Warn("initial refresh produced no data")
		}
		s.metrics.ObserveFeedRefresh("success", 0)
		return
	}

	now := s.clock.Now()
	s.prices = updated
	s.lastUpdate = &now
	s.metrics.ObserveFeedRefresh("success", applied)
}

// sweepStale marks entries older than twice the poll interval. It runs after
// every refresh attempt so a dead feed cannot keep prices looking fresh.
func (s *Service) sweepStale() {
	cutoff := s.clock.Now().Add(-2 * s.interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	var stale int
	for key, entry := range s.prices {
		if entry.Timestamp > 0 && time.Unix(entry.Timestamp, 0).Before(cutoff) {
			entry.Stale = true
			s.prices[key] = entry
		}
		if s.prices[key].Stale {
			stale++
		}
	}
	s.metrics.SetStaleAssets(stale)
}

// Snapshot returns a deep copy of the current table.
func (s *Service) Snapshot() pricefeeddomain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make(map[string]pricefeeddomain.Entry, len(s.prices))
	for key, entry := range s.prices {
		prices[key] = entry
	}
	var last *time.Time
	if s.lastUpdate != nil {
		v := *s.lastUpdate
		last = &v
	}
	return pricefeeddomain.Snapshot{Prices: prices, LastUpdate: last}
}

// Start launches the poll loop. Calling it again while running is a no-op.
func (s *Service) Start() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
}

// loop runs the body, then waits a full interval measured from the body's
// completion. A slow refresh therefore delays the next cycle rather than
// triggering it immediately.
func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	for {
		s.RefreshAll(ctx)
		s.sweepStale()

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop cancels rescheduling. An in-flight fetch may still land.
func (s *Service) Stop() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	<-s.done
}

// Register ties the poll loop to the application lifecycle.
func Register(lc fx.Lifecycle, svc pricefeeddomain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			svc.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			svc.Stop()
			return nil
		},
	})
}
