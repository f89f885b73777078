// Package poll repeats a status check with exponential backoff until it reports completion.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/runcoach/internal/errors"
)

// ErrTimeout is returned when the job is still unfinished after Policy.MaxDuration.
var ErrTimeout = errors.NewSentinel("polling timed out")

// Policy configures the delays between checks.
type Policy struct {
	// Interval is the delay before the second check. The first check runs immediately.
	Interval time.Duration
	// Multiplier grows the delay after every check. Values below 1 keep the delay fixed.
	Multiplier float64
	// MaxInterval caps the delay. Zero means no cap.
	MaxInterval time.Duration
	// MaxDuration bounds the total time spent polling. Zero means no bound.
	MaxDuration time.Duration
}

// DefaultPolicy starts at two seconds and backs off to thirty, giving up after ten minutes.
func DefaultPolicy() Policy {
	return Policy{
		Interval:    2 * time.Second,  //nolint:mnd // 2s
		Multiplier:  1.5,              //nolint:mnd // backoff factor
		MaxInterval: 30 * time.Second, //nolint:mnd // 30s
		MaxDuration: 10 * time.Minute, //nolint:mnd // 10m
	}
}

// Next returns the delay that follows current.
func (p Policy) Next(current time.Duration) time.Duration {
	next := current
	if p.Multiplier > 1 {
		next = time.Duration(float64(current) * p.Multiplier)
	}
	if p.MaxInterval > 0 && next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

// Check reports whether the polled job is done. Returning an error stops polling.
type Check func(ctx context.Context) (bool, error)

// Run calls check until it reports done, returns an error, ctx is cancelled or the policy's MaxDuration passes.
func Run(ctx context.Context, p Policy, check Check) error {
	if p.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.MaxDuration, ErrTimeout)
		defer cancel()
	}

	delay := p.Interval
	timer := time.NewTimer(0)
	defer timer.Stop()
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return stopCause(ctx, attempt-1)
		case <-timer.C:
		}

		done, err := check(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stopCause(ctx, attempt)
			}
			return errors.Wrap(err, "poll check", slog.Int("attempt", attempt))
		}
		if done {
			return nil
		}

		timer.Reset(delay)
		delay = p.Next(delay)
	}
}

func stopCause(ctx context.Context, attempts int) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeout) {
		return errors.Wrap(ErrTimeout, "poll", slog.Int("attempts", attempts))
	}
	return cause //nolint:wrapcheck // cancellation is reported as is.
}
