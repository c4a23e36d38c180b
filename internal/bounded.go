package internal

import (
	"context"
	"time"
)

// Bounded runs fn with a context that expires after d and returns no later
// than that deadline, even when fn ignores its context. fn keeps running in
// the background until it notices the cancellation, so anything it writes
// must only be read after Bounded returns nil.
//
// A non-positive d runs fn inline with ctx unchanged.
func Bounded(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
