package base

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/connector/core"
)

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker derives connector health from the outcome of remote calls.
// One failure degrades; unhealthyAfter consecutive failures make it
// unhealthy; any success restores it.
type HealthChecker struct {
	name             string
	unhealthyAfter   int
	status           core.HealthStatus
	statusMutex      sync.RWMutex
	logger           *zap.Logger
	checkCount       int64
	failureCount     int64
	consecutiveFails int
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(name string, unhealthyAfter int, logger *zap.Logger) *HealthChecker {
	if unhealthyAfter < 1 {
		unhealthyAfter = 3
	}
	return &HealthChecker{
		name:           name,
		unhealthyAfter: unhealthyAfter,
		status: core.HealthStatus{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
			Details:   make(map[string]interface{}),
		},
		logger: logger.With(zap.String("component", "health_checker")),
	}
}

// Observe records the outcome of one remote call.
func (hc *HealthChecker) Observe(err error) {
	atomic.AddInt64(&hc.checkCount, 1)

	hc.statusMutex.Lock()
	defer hc.statusMutex.Unlock()

	hc.status.Timestamp = time.Now()
	if err == nil {
		if hc.status.Status != StatusHealthy {
			hc.logger.Info("connector recovered", zap.String("previous", hc.status.Status))
		}
		hc.consecutiveFails = 0
		hc.status.Status = StatusHealthy
		hc.status.Error = nil
		delete(hc.status.Details, "consecutive_failures")
		delete(hc.status.Details, "last_error")
		return
	}

	atomic.AddInt64(&hc.failureCount, 1)
	hc.consecutiveFails++
	if hc.consecutiveFails >= hc.unhealthyAfter {
		hc.status.Status = StatusUnhealthy
	} else {
		hc.status.Status = StatusDegraded
	}
	hc.status.Error = err
	hc.status.Details["consecutive_failures"] = hc.consecutiveFails
	hc.status.Details["last_error"] = err.Error()
}

// GetStatus returns a copy of the current health status
func (hc *HealthChecker) GetStatus() core.HealthStatus {
	hc.statusMutex.RLock()
	defer hc.statusMutex.RUnlock()

	cp := hc.status
	cp.Details = make(map[string]interface{}, len(hc.status.Details))
	for k, v := range hc.status.Details {
		cp.Details[k] = v
	}
	return cp
}

// CheckCount returns the number of observed calls
func (hc *HealthChecker) CheckCount() int64 {
	return atomic.LoadInt64(&hc.checkCount)
}

// FailureCount returns the number of observed failures
func (hc *HealthChecker) FailureCount() int64 {
	return atomic.LoadInt64(&hc.failureCount)
}
