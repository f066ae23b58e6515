package base

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/errors"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Decision is a classifier's verdict on a failed attempt.
type Decision struct {
	// Retry is false for errors that must surface immediately
	Retry bool
	// Delay overrides the exponential delay when positive
	Delay time.Duration
	// Reason labels the retry in logs and metrics
	Reason string
}

// Classifier inspects the error of attempt (0-indexed) and decides whether
// and how long to wait before the next one.
type Classifier func(err error, attempt int) Decision

// RetryPolicy defines retry behavior. MaxAttempts counts every call of the
// operation, the first one included.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Sleep defaults to a context-aware timer
	Sleep SleepFunc
	// Logger receives one info line per wait
	Logger *zap.Logger
	// OnRetry is called before each wait
	OnRetry func(attempt int, d Decision)
}

// RetryPolicyFromConfig builds a deterministic policy from the reliability
// section: attempt n waits RetryDelay * RetryMultiplier^n.
func RetryPolicyFromConfig(rc config.ReliabilityConfig) *RetryPolicy {
	rp := &RetryPolicy{
		MaxAttempts:  rc.RetryAttempts,
		InitialDelay: rc.RetryDelay,
		MaxDelay:     rc.MaxRetryDelay,
		Multiplier:   rc.RetryMultiplier,
	}
	if rp.MaxAttempts < 1 {
		rp.MaxAttempts = 1
	}
	if rp.Multiplier < 1 {
		rp.Multiplier = 1
	}
	return rp
}

// ExecuteWithClassifier runs fn until it succeeds, classify rejects an
// error, or MaxAttempts calls have failed. A rejected error is returned
// unchanged. Exhaustion returns an ErrorTypeRetryExhausted error wrapping
// the last failure. Cancellation while waiting returns an ErrorTypeTimeout
// error wrapping ctx.Err().
func (rp *RetryPolicy) ExecuteWithClassifier(ctx context.Context, fn func(attempt int) error, classify Classifier) error {
	maxAttempts := rp.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		d := classify(err, attempt)
		if !d.Retry {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := d.Delay
		if delay <= 0 {
			delay = rp.calculateDelay(attempt)
		}

		if rp.OnRetry != nil {
			rp.OnRetry(attempt, d)
		}
		if rp.Logger != nil {
			rp.Logger.Info(WaitMessage(delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", maxAttempts),
				zap.String("reason", d.Reason),
				zap.Error(err))
		}

		if err := rp.sleep(ctx, delay); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "retry cancelled")
		}
	}

	return errors.Wrap(lastErr, errors.ErrorTypeRetryExhausted,
		fmt.Sprintf("all %d attempts failed", maxAttempts))
}

// WaitMessage renders the log line emitted before a backoff wait.
func WaitMessage(d time.Duration) string {
	return "Waiting " + strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + " seconds then retrying..."
}

func (rp *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if rp.Sleep != nil {
		return rp.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d unless ctx is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))

	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}
	return time.Duration(delay)
}

// GetDelay returns the exponential delay that follows a failed attempt.
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	return rp.calculateDelay(attempt)
}

// Clone creates a copy of the retry policy
func (rp *RetryPolicy) Clone() *RetryPolicy {
	cp := *rp
	return &cp
}

// WithSleep returns a new policy using sleep for waits.
func (rp *RetryPolicy) WithSleep(sleep SleepFunc) *RetryPolicy {
	policy := rp.Clone()
	policy.Sleep = sleep
	return policy
}

// WithLogger returns a new policy logging waits to l.
func (rp *RetryPolicy) WithLogger(l *zap.Logger) *RetryPolicy {
	policy := rp.Clone()
	policy.Logger = l
	return policy
}
