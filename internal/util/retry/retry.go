package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff retries an operation with exponentially growing delays between
// attempts. The zero value retries 5 times starting at one second, capped
// at thirty seconds.
type Backoff struct {
	Attempts int           // total attempts, including the first
	Initial  time.Duration // delay after the first failure
	Ceiling  time.Duration // upper bound on the delay
}

// Do runs op until it succeeds, returns an error marked Fatal, the attempts
// run out, or ctx is cancelled. The delay doubles after every failed attempt
// up to b.Ceiling.
func (b Backoff) Do(ctx context.Context, op func() error) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := b.Initial
	if delay <= 0 {
		delay = time.Second
	}
	ceiling := b.Ceiling
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return fmt.Errorf("not retrying: %w", err)
		}
		if attempt == attempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
		if delay *= 2; delay > ceiling {
			delay = ceiling
		}
	}
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err so that Do and PollUntil stop immediately instead of
// retrying. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err carries a Fatal mark anywhere in its chain.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
