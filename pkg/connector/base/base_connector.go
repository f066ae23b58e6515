// Package base provides the BaseConnector embedded by every connector. It
// owns the shared plumbing: logger, retry policy, health tracking, error
// accounting, progress logging, metrics and per-stream state.
//
//	type MySource struct {
//	    *base.BaseConnector
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{BaseConnector: base.NewBaseConnector("my", core.ConnectorTypeSource, "1.0.0")}
//	}
package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	"github.com/shayan-nathan/airbyte/pkg/logger"
	"github.com/shayan-nathan/airbyte/pkg/metrics"
)

// BaseConnector provides common functionality for all connectors.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	state      core.State
	stateMutex sync.RWMutex

	closed     bool
	closeMutex sync.Mutex

	healthChecker    *HealthChecker
	metricsCollector *metrics.Collector
	errorHandler     *ErrorHandler
	retryPolicy      *RetryPolicy
	progressReporter *ProgressReporter
}

// NewBaseConnector creates a base connector with the given name, type and version.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		state:         make(core.State),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize sets up retry, health, error and progress tracking from cfg.
// It must be called before the connector is used.
func (bc *BaseConnector) Initialize(_ context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	bc.config = cfg

	bc.metricsCollector = metrics.NewCollector(bc.name)
	bc.healthChecker = NewHealthChecker(bc.name, 3, bc.logger)
	bc.errorHandler = NewErrorHandler(bc.logger)
	bc.progressReporter = NewProgressReporter(bc.logger, 10*time.Second)
	if bc.retryPolicy == nil {
		bc.retryPolicy = RetryPolicyFromConfig(cfg.Reliability)
	}
	bc.retryPolicy = bc.retryPolicy.WithLogger(bc.logger)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version))

	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a copy of the current state
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	return bc.state.Clone()
}

// SetState replaces the connector state
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	if state == nil {
		state = make(core.State)
	}
	bc.state = state.Clone()
	bc.logger.Debug("state updated", zap.Any("state", state))
	return nil
}

// StreamState returns the state of one stream, nil when absent.
func (bc *BaseConnector) StreamState(stream string) core.StreamState {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	return bc.state[stream]
}

// SetStreamState replaces the state of one stream.
func (bc *BaseConnector) SetStreamState(stream string, st core.StreamState) {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()
	bc.state[stream] = st
}

// Health reports an error when the connector is closed or unhealthy.
func (bc *BaseConnector) Health(_ context.Context) error {
	bc.closeMutex.Lock()
	closed := bc.closed
	bc.closeMutex.Unlock()
	if closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if bc.healthChecker == nil {
		return errors.New(errors.ErrorTypeConfig, "connector is not initialized")
	}

	status := bc.healthChecker.GetStatus()
	if status.Status == StatusUnhealthy {
		return errors.Wrap(status.Error, errors.ErrorTypeConnection, "health check failed")
	}
	return nil
}

// Metrics returns current metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"name":    bc.name,
		"type":    bc.connectorType,
		"version": bc.version,
	}
	if bc.metricsCollector != nil {
		m["uptime"] = time.Since(bc.metricsCollector.StartTime()).Seconds()
	}
	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		m["health_status"] = status.Status
		m["request_count"] = bc.healthChecker.CheckCount()
		m["request_failures"] = bc.healthChecker.FailureCount()
	}
	if bc.errorHandler != nil {
		for k, v := range bc.errorHandler.GetErrorStats() {
			m[k] = v
		}
	}
	return m
}

// Close marks the connector closed. It is idempotent.
func (bc *BaseConnector) Close(_ context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}
	bc.closed = true
	bc.logger.Info("connector closed")
	return nil
}

// ExecuteWithClassifier executes fn under the retry policy with a custom classifier.
func (bc *BaseConnector) ExecuteWithClassifier(ctx context.Context, fn func(attempt int) error, classify Classifier) error {
	return bc.retryPolicy.ExecuteWithClassifier(ctx, fn, classify)
}

// SetRetryPolicy replaces the retry policy. Calling it before Initialize
// keeps Initialize from deriving one from the configuration.
func (bc *BaseConnector) SetRetryPolicy(rp *RetryPolicy) {
	if bc.logger != nil && rp.Logger == nil {
		rp = rp.WithLogger(bc.logger)
	}
	bc.retryPolicy = rp
}

// GetRetryPolicy returns the retry policy
func (bc *BaseConnector) GetRetryPolicy() *RetryPolicy {
	return bc.retryPolicy
}

// ObserveRequest feeds the outcome of a remote call into health tracking.
func (bc *BaseConnector) ObserveRequest(err error) {
	if bc.healthChecker != nil {
		bc.healthChecker.Observe(err)
	}
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// SetLogger replaces the connector logger. Tests use it with an observer core.
func (bc *BaseConnector) SetLogger(l *zap.Logger) {
	bc.logger = l.With(zap.String("connector", bc.name))
	if bc.retryPolicy != nil {
		bc.retryPolicy = bc.retryPolicy.WithLogger(bc.logger)
	}
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.BaseConfig {
	return bc.config
}

// GetErrorHandler returns the error handler
func (bc *BaseConnector) GetErrorHandler() *ErrorHandler {
	return bc.errorHandler
}

// GetMetricsCollector returns the metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// GetProgressReporter returns the progress reporter
func (bc *BaseConnector) GetProgressReporter() *ProgressReporter {
	return bc.progressReporter
}
