package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/matflow/matflow/pkg/telemetry"
)

func testRetrier(maxAttempts int) *Retrier {
	return NewRetrier(maxAttempts, 0, telemetry.NewTestLogger(), nil)
}

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	r := testRetrier(10)

	calls := 0
	value, err := Call(context.Background(), r, "test.op", func() (int, error) {
		calls++
		if calls <= 3 {
			return 0, errors.New("transient rejection")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected success after transient failures, got %v", err)
	}
	if value != 42 {
		t.Errorf("expected value 42, got %d", value)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRetrierExhaustionIsFatalAfterExactlyMaxAttempts(t *testing.T) {
	const maxAttempts = 5
	r := testRetrier(maxAttempts)

	calls := 0
	err := r.Do(context.Background(), "test.op", func() error {
		calls++
		return errors.New("always rejected")
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != maxAttempts {
		t.Errorf("expected exactly %d attempts, got %d", maxAttempts, calls)
	}
	if !IsFatal(err) {
		t.Errorf("exhaustion error should be fatal, got %v", err)
	}

	var ce *ControlError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ControlError, got %T", err)
	}
	if ce.Attempts != maxAttempts {
		t.Errorf("expected attempts=%d on the error, got %d", maxAttempts, ce.Attempts)
	}
	if ce.Op != "test.op" {
		t.Errorf("expected op=test.op on the error, got %q", ce.Op)
	}
}

func TestRetrierDoesNotRetryFatalErrors(t *testing.T) {
	r := testRetrier(10)

	calls := 0
	err := r.Do(context.Background(), "test.op", func() error {
		calls++
		return NewFatalf("broken beyond retry")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", calls)
	}
	if !IsFatal(err) {
		t.Errorf("expected the fatal error to propagate, got %v", err)
	}
}

func TestRetrierDefaultsMaxAttempts(t *testing.T) {
	r := testRetrier(0)
	if r.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("expected default of %d attempts, got %d", DefaultMaxAttempts, r.MaxAttempts())
	}
}

func TestRetrierStopsOnContextCancellation(t *testing.T) {
	r := testRetrier(1000)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, "test.op", func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("rejected")
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls >= 1000 {
		t.Errorf("cancellation should stop retries early, got %d calls", calls)
	}
}
