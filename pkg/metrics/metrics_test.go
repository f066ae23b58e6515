package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("metrics_test_source")

	c.RecordEmitted("blocks")
	c.RecordEmitted("blocks")
	c.RecordWritten("blocks", 5)
	c.RecordRetry("rate_limit")
	c.RecordAbandoned("blocks", "not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(RecordsEmitted.WithLabelValues("metrics_test_source", "blocks")))
	assert.Equal(t, 5.0, testutil.ToFloat64(RecordsWritten.WithLabelValues("metrics_test_source", "blocks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Retries.WithLabelValues("metrics_test_source", "rate_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(BranchesAbandoned.WithLabelValues("metrics_test_source", "blocks", "not_found")))
}

func TestRecordRequestStatusLabel(t *testing.T) {
	c := NewCollector("metrics_test_requests")

	c.RecordRequest("search", 200, 10*time.Millisecond)
	c.RecordRequest("search", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(APIRequests.WithLabelValues("metrics_test_requests", "search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(APIRequests.WithLabelValues("metrics_test_requests", "search", "error")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("op")
	time.Sleep(time.Millisecond)
	assert.Equal(t, "op", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
