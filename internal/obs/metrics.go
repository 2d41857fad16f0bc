package obs

import (
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// HTTPMetrics holds the API's request collectors.
type HTTPMetrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec
	InFlight     prometheus.Gauge
}

// NewHTTPMetrics registers the request collectors on reg, reusing any already
// registered under the same names. Latency buckets are milliseconds.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultLatencyBuckets
	}
	buckets = slices.Sorted(slices.Values(buckets))

	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served, by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "Request latency in milliseconds, by method and route pattern.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
		ResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Response body size in bytes, by route pattern.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 6),
		}, []string{"route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		}),
	}
	registerOrReuse(reg, &m.Requests)
	registerOrReuse(reg, &m.Latency)
	registerOrReuse(reg, &m.ResponseSize)
	registerOrReuse(reg, &m.InFlight)
	return m
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
