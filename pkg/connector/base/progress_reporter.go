package base

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProgressReporter counts records per stream and logs progress at most once
// per interval.
type ProgressReporter struct {
	logger         *zap.Logger
	reportInterval time.Duration
	now            func() time.Time

	mu         sync.Mutex
	counts     map[string]int64
	started    map[string]time.Time
	lastReport time.Time
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(logger *zap.Logger, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProgressReporter{
		logger:         logger,
		reportInterval: interval,
		now:            time.Now,
		counts:         make(map[string]int64),
		started:        make(map[string]time.Time),
		lastReport:     time.Now(),
	}
}

// StartStream resets the counter of stream.
func (pr *ProgressReporter) StartStream(stream string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.counts[stream] = 0
	pr.started[stream] = pr.now()
}

// Increment adds one record to stream and logs when the interval elapsed.
func (pr *ProgressReporter) Increment(stream string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.counts[stream]++
	now := pr.now()
	if now.Sub(pr.lastReport) < pr.reportInterval {
		return
	}
	pr.lastReport = now
	pr.logger.Info("stream progress",
		zap.String("stream", stream),
		zap.Int64("records", pr.counts[stream]),
		zap.Duration("elapsed", now.Sub(pr.started[stream])))
}

// FinishStream logs the final count of stream and returns it.
func (pr *ProgressReporter) FinishStream(stream string) int64 {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	n := pr.counts[stream]
	pr.logger.Info("stream finished",
		zap.String("stream", stream),
		zap.Int64("records", n),
		zap.Duration("elapsed", pr.now().Sub(pr.started[stream])))
	return n
}
