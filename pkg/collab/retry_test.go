package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

var fastBackoff = Backoff{Attempts: 3, Delay: time.Millisecond}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff, func() error {
		calls++
		if calls < 3 {
			return apperr.New(apperr.ErrCodeTransport, "connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff, func() error {
		calls++
		return apperr.New(apperr.ErrCodeInvalidConfig, "bad url")
	})
	if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff, func() error {
		calls++
		return apperr.New(apperr.ErrCodeTimeout, "attempt %d", calls)
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if apperr.UserMessage(err) != "attempt 3" {
		t.Errorf("err = %v, want the third attempt's error", err)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, Backoff{Attempts: 5, Delay: time.Hour}, func() error {
		return apperr.New(apperr.ErrCodeTransport, "down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetryCapsDelay(t *testing.T) {
	start := time.Now()
	_ = Retry(context.Background(), Backoff{Attempts: 4, Delay: 5 * time.Millisecond, MaxDelay: 5 * time.Millisecond}, func() error {
		return apperr.New(apperr.ErrCodeTransport, "down")
	})
	if d := time.Since(start); d > time.Second {
		t.Errorf("Retry took %v, delay cap not applied", d)
	}
}
