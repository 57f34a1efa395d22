package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level prometheus instruments.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	feedRefreshes   *prometheus.CounterVec
	feedEntries     prometheus.Counter
	feedStaleAssets prometheus.Gauge

	meteringAuthorized prometheus.Counter
	meteringConsumed   prometheus.Counter
	meteringDenied     *prometheus.CounterVec
}

// New registers the gateway instruments on the given registerer. Passing nil
// uses the default registry.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		feedRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_price_refresh_total",
			Help: "Price feed refresh attempts by result.",
		}, []string{"result"}),
		feedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_price_entries_applied_total",
			Help: "Price entries merged into the cache.",
		}),
		feedStaleAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_price_stale_assets",
			Help: "Number of cached assets currently marked stale.",
		}),
		meteringAuthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_metering_authorizations_total",
			Help: "Payment authorizations issued.",
		}),
		meteringConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_metering_units_consumed_total",
			Help: "Metering units consumed.",
		}),
		meteringDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_metering_denied_total",
			Help: "Denied consume attempts by reason.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration,
		m.feedRefreshes, m.feedEntries, m.feedStaleAssets,
		m.meteringAuthorized, m.meteringConsumed, m.meteringDenied,
	} {
		if err := registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return m
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveFeedRefresh(result string, entries int) {
	if m == nil {
		return
	}
	m.feedRefreshes.WithLabelValues(result).Inc()
	if entries > 0 {
		m.feedEntries.Add(float64(entries))
	}
}

func (m *Metrics) SetStaleAssets(count int) {
	if m == nil {
		return
	}
	m.feedStaleAssets.Set(float64(count))
}

func (m *Metrics) RecordAuthorization() {
	if m == nil {
		return
	}
	m.meteringAuthorized.Inc()
}

func (m *Metrics) RecordConsumption(units int64) {
	if m == nil {
		return
	}
	m.meteringConsumed.Add(float64(units))
}

func (m *Metrics) RecordDenied(reason string) {
	if m == nil {
		return
	}
	m.meteringDenied.WithLabelValues(strings.TrimSpace(reason)).Inc()
}
