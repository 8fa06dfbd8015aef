package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by PollUntil when the attempt budget runs out
// before the probe reports completion.
var ErrExhausted = errors.New("polling attempts exhausted")

// Probe reports whether the awaited condition holds. A returned error wrapped
// with Fatal() aborts polling immediately; any other error is treated as
// "not yet" and retried on the next tick.
type Probe func(ctx context.Context) (bool, error)

// PollUntil invokes probe at the given fixed interval until it reports done,
// returns a fatal error, the context is cancelled, or maxAttempts is used up.
// The first probe fires immediately rather than after one interval.
//
// Instance-running, image-available, reachability, and target-health waits
// all share this loop; callers translate ErrExhausted into their own
// timeout error types.
func PollUntil(ctx context.Context, interval time.Duration, maxAttempts int, probe Probe) error {
	if maxAttempts <= 0 {
		return fmt.Errorf("maxAttempts must be positive, got %d", maxAttempts)
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err := probe(ctx)
		if err != nil {
			if IsFatal(err) {
				return fmt.Errorf("polling aborted on attempt %d: %w", attempt, err)
			}
			lastErr = err
		} else if done {
			return nil
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("polling cancelled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(interval):
			}
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts, last error: %w", ErrExhausted, maxAttempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrExhausted, maxAttempts)
}

// IsExhausted checks whether err is a polling exhaustion.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}
