package retry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Policy bounds how many times a flaky UI action is attempted and how long to
// pause between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy matches the reference deployment: three attempts, one second apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: time.Second}
}

// Do invokes fn until it succeeds or the policy is spent. Failures before the
// final attempt are logged and swallowed; the final attempt's failure is
// returned to the caller unchanged so typed inspection of the cause still
// works. fn must resolve any element it touches fresh on every call.
func Do(ctx context.Context, log *slog.Logger, pol Policy, op string, fn func(context.Context) error) error {
	if pol.Attempts < 1 {
		pol.Attempts = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	var last error
	for attempt := 1; attempt <= pol.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if attempt == pol.Attempts {
			break
		}
		log.InfoContext(ctx, "retrying", "op", op, "attempt", attempt, "attempts", pol.Attempts, "error", last)
		if err := sleep(ctx, pol.Delay); err != nil {
			return err
		}
	}
	return last
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
