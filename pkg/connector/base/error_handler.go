package base

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/errors"
)

// ErrorHandler logs and counts errors a connector decided to survive, and
// counts the fatal ones it propagates.
type ErrorHandler struct {
	logger      *zap.Logger
	errorCounts map[errors.ErrorType]int64
	errorMutex  sync.RWMutex
	totalErrors int64
	fatalErrors int64
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:      logger,
		errorCounts: make(map[errors.ErrorType]int64),
	}
}

// HandleSkipped records a branch-local error: it is logged at error level
// with msg and fields, counted, and not propagated.
func (eh *ErrorHandler) HandleSkipped(err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}
	eh.count(err)
	eh.logger.Error(msg, append(fields, zap.Error(err), zap.String("error_type", string(errors.TypeOf(err))))...)
}

// HandleFatal records err as fatal and returns it.
func (eh *ErrorHandler) HandleFatal(err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	eh.count(err)
	atomic.AddInt64(&eh.fatalErrors, 1)
	eh.logger.Error("fatal error", append(fields, zap.Error(err), zap.String("error_type", string(errors.TypeOf(err))))...)
	return err
}

// GetErrorStats returns error statistics
func (eh *ErrorHandler) GetErrorStats() map[string]interface{} {
	eh.errorMutex.RLock()
	defer eh.errorMutex.RUnlock()

	byType := make(map[string]int64, len(eh.errorCounts))
	for k, v := range eh.errorCounts {
		byType[string(k)] = v
	}
	return map[string]interface{}{
		"total_errors":   atomic.LoadInt64(&eh.totalErrors),
		"fatal_errors":   atomic.LoadInt64(&eh.fatalErrors),
		"errors_by_type": byType,
	}
}

func (eh *ErrorHandler) count(err error) {
	atomic.AddInt64(&eh.totalErrors, 1)
	eh.errorMutex.Lock()
	eh.errorCounts[errors.TypeOf(err)]++
	eh.errorMutex.Unlock()
}
