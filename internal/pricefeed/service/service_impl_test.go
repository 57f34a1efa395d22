package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/porbit/orbital-gateway/internal/clock"
	"github.com/porbit/orbital-gateway/internal/config"
	pricefeeddomain "github.com/porbit/orbital-gateway/internal/pricefeed/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	parsed []pricefeeddomain.ParsedFeed
	err    error
	delay  time.Duration
	calls  int
}

func (s *stubSource) FetchBatch(ctx context.Context, feedIDs []string) ([]pricefeeddomain.ParsedFeed, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.parsed, nil
}

var testAssets = config.AssetTable{
	"usd-coin": {FeedID: "AAA0", Symbol: "USDC"},
	"tether":   {FeedID: "BBB1", Symbol: "USDT"},
	"dai":      {FeedID: "CCC2", Symbol: "DAI"},
	"pyusd":    {FeedID: "DDD3", Symbol: "PYUSD"},
}

func newTestService(t *testing.T, src pricefeeddomain.Source) (*Service, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:    zap.NewNop(),
		Clock:  fc,
		Cfg:    config.Config{PriceFeed: config.PriceFeedConfig{PollInterval: 15 * time.Second}},
		Assets: testAssets,
		Source: src,
	})
	return svc.(*Service), fc
}

func feed(id, price, conf string, expo int32, publishTime int64) pricefeeddomain.ParsedFeed {
	return pricefeeddomain.ParsedFeed{
		ID: id,
		Price: pricefeeddomain.FeedPrice{
			Price:       price,
			Conf:        conf,
			Expo:        expo,
			PublishTime: publishTime,
		},
	}
}

func TestRefreshAll_ScalesFixedPoint(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("aaa0", "123456", "250", -2, 1700000000),
	}}
	svc, _ := newTestService(t, src)

	svc.RefreshAll(context.Background())

	snap := svc.Snapshot()
	entry, ok := snap.Prices["usd-coin"]
	require.True(t, ok)
	assert.Equal(t, "USDC", entry.Symbol)
	assert.Equal(t, "AAA0", entry.FeedID)
	assert.Equal(t, float64(123456), entry.RawPrice)
	assert.Equal(t, int32(-2), entry.Expo)
	assert.Equal(t, 1234.56, entry.Price)
	assert.Equal(t, 2.5, entry.Confidence)
	assert.Equal(t, int64(1700000000), entry.Timestamp)
	assert.False(t, entry.Stale)
	require.NotNil(t, snap.LastUpdate)
}

func TestRefreshAll_ConfidenceFallbackAndDefault(t *testing.T) {
	withConfidence := feed("bbb1", "99991234", "", -8, 1700000000)
	withConfidence.Price.Confidence = "120000"
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		withConfidence,
		feed("ccc2", "1000000", "", -6, 1700000000),
	}}
	svc, _ := newTestService(t, src)

	svc.RefreshAll(context.Background())

	snap := svc.Snapshot()
	assert.Equal(t, 0.0012, snap.Prices["tether"].Confidence)
	assert.Equal(t, float64(0), snap.Prices["dai"].Confidence)
}

func TestRefreshAll_MissingPublishTimeUsesClock(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("ddd3", "1000000", "0", -6, 0),
	}}
	svc, fc := newTestService(t, src)

	svc.RefreshAll(context.Background())

	assert.Equal(t, fc.Now().Unix(), svc.Snapshot().Prices["pyusd"].Timestamp)
}

func TestRefreshAll_PartialMergePreservesExisting(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("aaa0", "100000000", "0", -8, 1700000000),
		feed("bbb1", "99990000", "0", -8, 1700000000),
		feed("ccc2", "100010000", "0", -8, 1700000000),
		feed("ddd3", "99980000", "0", -8, 1700000000),
	}}
	svc, fc := newTestService(t, src)
	svc.RefreshAll(context.Background())
	require.Len(t, svc.Snapshot().Prices, 4)
	firstUpdate := *svc.Snapshot().LastUpdate

	// Second batch only carries two of the four feeds.
	src.parsed = []pricefeeddomain.ParsedFeed{
		feed("aaa0", "100020000", "0", -8, 1700000100),
		feed("ddd3", "99970000", "0", -8, 1700000100),
	}
	fc.Advance(15 * time.Second)
	svc.RefreshAll(context.Background())

	snap := svc.Snapshot()
	require.Len(t, snap.Prices, 4)
	assert.Equal(t, 1.0002, snap.Prices["usd-coin"].Price)
	assert.Equal(t, 0.9997, snap.Prices["pyusd"].Price)
	assert.Equal(t, 0.9999, snap.Prices["tether"].Price)
	assert.Equal(t, int64(1700000000), snap.Prices["tether"].Timestamp)
	assert.True(t, snap.LastUpdate.After(firstUpdate))
}

func TestRefreshAll_FeedIDMatchIsCaseInsensitive(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("AaA0", "1000000", "0", -6, 1700000000),
	}}
	svc, _ := newTestService(t, src)

	svc.RefreshAll(context.Background())
	assert.Contains(t, svc.Snapshot().Prices, "usd-coin")
}

func TestRefreshAll_UnparseableEntrySkippedPerAsset(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("aaa0", "not-a-number", "0", -6, 1700000000),
		feed("bbb1", "999900", "0", -6, 1700000000),
	}}
	svc, _ := newTestService(t, src)

	svc.RefreshAll(context.Background())

	snap := svc.Snapshot()
	assert.NotContains(t, snap.Prices, "usd-coin")
	assert.Contains(t, snap.Prices, "tether")
}

func TestRefreshAll_BatchFailureIsSilentNoOp(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("aaa0", "1000000", "0", -6, 1700000000),
	}}
	svc, fc := newTestService(t, src)
	svc.RefreshAll(context.Background())
	before := svc.Snapshot()

	// A failed batch is absorbed: callers keep last-known-good data and
	// LastUpdate does not move.
	src.err = errors.New("HTTP 500")
	fc.Advance(15 * time.Second)
	svc.RefreshAll(context.Background())

	after := svc.Snapshot()
	assert.Equal(t, before.Prices, after.Prices)
	assert.Equal(t, *before.LastUpdate, *after.LastUpdate)
}

func TestSweepStale_MarksOldEntries(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("aaa0", "1000000", "0", -6, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC).Unix()),
	}}
	svc, fc := newTestService(t, src)
	svc.RefreshAll(context.Background())

	svc.sweepStale()
	assert.False(t, svc.Snapshot().Prices["usd-coin"].Stale)

	// Past twice the poll interval the entry goes stale even though no new
	// refresh succeeded.
	fc.Advance(31 * time.Second)
	svc.sweepStale()
	assert.True(t, svc.Snapshot().Prices["usd-coin"].Stale)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	src := &stubSource{parsed: []pricefeeddomain.ParsedFeed{
		feed("aaa0", "1000000", "0", -6, 1700000000),
	}}
	svc, _ := newTestService(t, src)
	svc.RefreshAll(context.Background())

	snap := svc.Snapshot()
	snap.Prices["usd-coin"] = pricefeeddomain.Entry{Symbol: "HACKED"}
	delete(snap.Prices, "tether")

	assert.Equal(t, "USDC", svc.Snapshot().Prices["usd-coin"].Symbol)
}

func TestLoop_WaitsFullIntervalAfterRefresh(t *testing.T) {
	src := &stubSource{delay: 100 * time.Millisecond}
	fc := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:    zap.NewNop(),
		Clock:  fc,
		Cfg:    config.Config{PriceFeed: config.PriceFeedConfig{PollInterval: 75 * time.Millisecond}},
		Assets: testAssets,
		Source: src,
	}).(*Service)

	// The interval is counted from the end of the refresh body. With a
	// 100ms body and a 75ms interval the second cycle starts at 175ms, so
	// stopping at ~125ms must observe exactly one fetch.
	svc.Start()
	time.Sleep(125 * time.Millisecond)
	svc.Stop()

	assert.Equal(t, 1, src.calls)
}

func TestStartStop_Idempotent(t *testing.T) {
	src := &stubSource{}
	svc, _ := newTestService(t, src)

	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()

	assert.GreaterOrEqual(t, src.calls, 1)
}
