// Package metrics exposes Prometheus metrics for connectors and the sync
// pipeline. Metrics are registered on the default registry at init, so the
// CLI can serve them with promhttp.
//
//	collector := metrics.NewCollector("notion")
//	collector.RecordEmitted("blocks")
//	timer := metrics.NewTimer("blocks")
//	...
//	collector.ObserveStream("blocks", timer.Stop())
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsEmitted counts records a source pushed onto its record stream.
	// Labels: source, stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbyte_source_records_emitted_total",
			Help: "Records emitted by a source",
		},
		[]string{"source", "stream"},
	)

	// RecordsWritten counts records a destination accepted.
	// Labels: destination, stream
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbyte_destination_records_written_total",
			Help: "Records written by a destination",
		},
		[]string{"destination", "stream"},
	)

	// APIRequests counts HTTP calls to a remote API by response status.
	// Labels: source, endpoint, status ("error" for transport failures)
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbyte_api_requests_total",
			Help: "HTTP requests issued to a remote API",
		},
		[]string{"source", "endpoint", "status"},
	)

	// APIRequestDuration tracks HTTP call latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airbyte_api_request_duration_seconds",
			Help:    "Latency of HTTP requests issued to a remote API",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "endpoint"},
	)

	// Retries counts backoff waits by reason (rate_limit, server_error, client_error, ...).
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbyte_retries_total",
			Help: "Backoff waits performed before retrying a request",
		},
		[]string{"source", "reason"},
	)

	// BranchesAbandoned counts subtrees or slices skipped after a branch-local
	// failure (not_found, invalid_cursor).
	BranchesAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbyte_branches_abandoned_total",
			Help: "Branches skipped after a non-fatal error",
		},
		[]string{"source", "stream", "reason"},
	)

	// StreamDuration tracks wall time per stream read, in seconds.
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airbyte_stream_duration_seconds",
			Help:    "Time spent reading one stream",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		},
		[]string{"source", "stream"},
	)
)

// Collector binds the package metrics to one component name.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a collector for a connector instance.
func NewCollector(name string) *Collector {
	return &Collector{name: name, startTime: time.Now()}
}

// Name returns the label value used for this collector.
func (c *Collector) Name() string {
	return c.name
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordEmitted increments the emitted record counter for stream.
func (c *Collector) RecordEmitted(stream string) {
	RecordsEmitted.WithLabelValues(c.name, stream).Inc()
}

// RecordWritten adds n to the written record counter for stream.
func (c *Collector) RecordWritten(stream string, n int) {
	RecordsWritten.WithLabelValues(c.name, stream).Add(float64(n))
}

// RecordRequest records one HTTP call. status 0 means the call never got a
// response.
func (c *Collector) RecordRequest(endpoint string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequests.WithLabelValues(c.name, endpoint, label).Inc()
	APIRequestDuration.WithLabelValues(c.name, endpoint).Observe(d.Seconds())
}

// RecordRetry records a backoff wait.
func (c *Collector) RecordRetry(reason string) {
	Retries.WithLabelValues(c.name, reason).Inc()
}

// RecordAbandoned records a skipped branch.
func (c *Collector) RecordAbandoned(stream, reason string) {
	BranchesAbandoned.WithLabelValues(c.name, stream, reason).Inc()
}

// ObserveStream records the duration of a stream read.
func (c *Collector) ObserveStream(stream string, d time.Duration) {
	StreamDuration.WithLabelValues(c.name, stream).Observe(d.Seconds())
}

// Timer measures elapsed time from creation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{start: time.Now(), name: name}
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
