package cluster

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted signals the caller to stop retrying and surface
// the underlying failure.
var ErrRetriesExhausted = errors.New("max retry attempts exceeded")

// Backoff paces caller-level retries with exponential delays. It does
// not perform the retried operation itself.
type Backoff struct {
	MaxRetries int
	Delay      time.Duration
	MaxDelay   time.Duration

	retries int
}

// Attempts returns how many delays have been taken so far.
func (b *Backoff) Attempts() int { return b.retries }

// NextDelay computes the upcoming delay without sleeping:
// min(base*(2^n-1)/2, max) for attempt n.
func (b *Backoff) NextDelay() time.Duration {
	n := b.retries + 1
	d := b.Delay * time.Duration((1<<uint(n))-1) / 2
	if d > b.MaxDelay {
		d = b.MaxDelay
	}
	return d
}

// Wait sleeps for the next exponential delay, honoring ctx cancellation.
// Calling it beyond MaxRetries fails with ErrRetriesExhausted instead of
// computing a delay.
func (b *Backoff) Wait(ctx context.Context) error {
	if b.retries == b.MaxRetries {
		return ErrRetriesExhausted
	}
	d := b.NextDelay()
	b.retries++
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
