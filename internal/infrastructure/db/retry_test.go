package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient failure")

func fastRetries(attempts int) RetryOptions {
	return RetryOptions{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := WithRetry(context.Background(), fastRetries(3), nil, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("WithRetry error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected result %q", result)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 2 failures before success, got %d calls", calls)
	}
}

func TestWithRetryExhaustsAfterConfiguredAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := WithRetry(context.Background(), fastRetries(3), nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("exhaustion must wrap the last cause, got %v", err)
	}
	if !IsRetriesExhausted(err) {
		t.Fatal("IsRetriesExhausted must match")
	}
}

func TestWithRetryFirstAttemptSuccessSkipsDelays(t *testing.T) {
	t.Parallel()

	start := time.Now()
	result, err := WithRetry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Second}, nil, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("WithRetry error: %v", err)
	}
	if result != 42 {
		t.Fatalf("unexpected result %d", result)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("successful first attempt must not wait, took %v", elapsed)
	}
}

func TestWithRetryConnectionErrorIsTerminal(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := WithRetry(context.Background(), fastRetries(3), nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, &ConnectionError{Err: errTransient}
	})

	if calls != 1 {
		t.Fatalf("acquisition failures must not be retried, got %d calls", calls)
	}
	if !IsConnectionError(err) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if IsRetriesExhausted(err) {
		t.Fatal("acquisition failure must keep its own error kind")
	}
}

func TestWithRetryDelaysDouble(t *testing.T) {
	t.Parallel()

	base := 20 * time.Millisecond
	var stamps []time.Time
	_, _ = WithRetry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: base}, nil, func(ctx context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errTransient
	})

	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}

	firstGap := stamps[1].Sub(stamps[0])
	secondGap := stamps[2].Sub(stamps[1])
	if firstGap < base {
		t.Fatalf("first delay too short: %v", firstGap)
	}
	if secondGap < 2*base {
		t.Fatalf("second delay must double, got %v", secondGap)
	}
}

func TestWithRetryHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := WithRetry(ctx, RetryOptions{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond}, nil, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})

	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("cancelled context must stop retries, got %d calls", calls)
	}
}
