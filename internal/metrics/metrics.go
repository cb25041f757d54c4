package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinecat",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by cinecat",
		},
		[]string{"route", "method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cinecat",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests handled by cinecat",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinecat",
			Name:      "cache_hits_total",
			Help:      "Total cache hits per catalog operation",
		},
		[]string{"op"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinecat",
			Name:      "cache_misses_total",
			Help:      "Total cache misses per catalog operation",
		},
		[]string{"op"},
	)

	cacheSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cinecat",
			Name:      "cache_swept_entries_total",
			Help:      "Stale cache entries removed by the sweeper",
		},
	)

	upstreamTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinecat",
			Name:      "upstream_requests_total",
			Help:      "Total requests sent to the metadata API",
		},
		[]string{"endpoint", "code"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cinecat",
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests sent to the metadata API",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	openCircuitsSource atomic.Pointer[func() int]

	// openCircuits is read at scrape time so that cooldowns expiring between
	// requests are reflected.
	openCircuits = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cinecat",
			Name:      "upstream_open_circuits",
			Help:      "Number of upstream base URLs with an open circuit",
		},
		func() float64 {
			if fn := openCircuitsSource.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	)

	initOnce sync.Once
)

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestTotal, requestDuration,
			cacheHits, cacheMisses, cacheSwept,
			upstreamTotal, upstreamDuration, openCircuits,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(route, method, code string, d time.Duration) {
	requestTotal.WithLabelValues(route, method, code).Inc()
	requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func ObserveUpstream(endpoint, code string, d time.Duration) {
	upstreamTotal.WithLabelValues(endpoint, code).Inc()
	upstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func IncCacheHit(op string) {
	cacheHits.WithLabelValues(op).Inc()
}

func IncCacheMiss(op string) {
	cacheMisses.WithLabelValues(op).Inc()
}

func AddCacheSwept(n int) {
	cacheSwept.Add(float64(n))
}

// TrackOpenCircuits makes fn the source of the open circuit gauge. The last
// call wins.
func TrackOpenCircuits(fn func() int) {
	openCircuitsSource.Store(&fn)
}

// CacheObserver reports cache lookups as hit/miss counters.
type CacheObserver struct{}

func (CacheObserver) Hit(op string)  { IncCacheHit(op) }
func (CacheObserver) Miss(op string) { IncCacheMiss(op) }
