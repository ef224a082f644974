package collab

import (
	"context"
	"time"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

// Backoff controls how transports retry connection attempts.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultBackoff tries five times starting at 250ms and never waits longer
// than 5s between attempts.
var DefaultBackoff = Backoff{Attempts: 5, Delay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}

// Retry runs fn until it succeeds, fails with a non-transient error or the
// attempts run out. Errors coded TRANSPORT or TIMEOUT are transient; any
// other error is returned at once. The delay doubles after each failure.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var lastErr error

	for i := range attempts {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return lastErr
}

func transient(err error) bool {
	return apperr.Is(err, apperr.ErrCodeTransport) || apperr.Is(err, apperr.ErrCodeTimeout)
}
