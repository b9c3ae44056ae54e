package controller

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/matflow/matflow/pkg/telemetry"
)

// DefaultMaxAttempts is how often a remote call is tried before the retry
// executor gives up and escalates to fatal.
const DefaultMaxAttempts = 60

// Retrier wraps remote node calls with bounded-retry resilience. The
// environment rejects calls transiently while mutating its own state, so
// every node interaction in the controller goes through a Retrier.
type Retrier struct {
	maxAttempts int
	interval    time.Duration
	log         *telemetry.Logger
	metrics     *telemetry.Metrics
}

// NewRetrier creates a retry executor. maxAttempts <= 0 selects
// DefaultMaxAttempts; interval is the pause between attempts (zero means
// immediate retry).
func NewRetrier(maxAttempts int, interval time.Duration, log *telemetry.Logger, metrics *telemetry.Metrics) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		interval:    interval,
		log:         log.NewComponentLogger("retry"),
		metrics:     metrics,
	}
}

// MaxAttempts returns the configured attempt ceiling.
func (r *Retrier) MaxAttempts() int {
	return r.maxAttempts
}

// Do invokes fn, retrying any failure up to the attempt ceiling. Errors
// already classified fatal are not retried. On exhaustion it returns a
// fatal ControlError carrying the attempt count, the last underlying
// failure, and op as the logical call site.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	attempts := 0

	operation := func() error {
		attempts++
		r.metrics.RecordNodeCall(op)
		err := fn()
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return backoff.Permanent(err)
		}
		if attempts < r.maxAttempts {
			r.metrics.RecordCallRetry(op)
			r.log.WithError(err).Debugf("%s rejected, retrying (attempt %d/%d)", op, attempts, r.maxAttempts)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), uint64(r.maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(operation, policy)
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}

	r.metrics.RecordRetryExhaustion(op)
	return NewFatal("remote call failed after all attempts", err).
		WithOp(op).
		WithAttempts(attempts)
}

// Call is the result-bearing variant of Retrier.Do.
func Call[T any](ctx context.Context, r *Retrier, op string, fn func() (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, op, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
