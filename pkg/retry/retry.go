// Package retry runs operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last failure once every attempt has been spent.
var ErrExhausted = errors.New("retries exhausted")

// Policy bounds a retry loop. Zero fields fall back to the defaults
// applied by Do.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Retryable reports whether a failure should be attempted again.
	// A nil Retryable retries every error.
	Retryable func(error) bool

	// OnRetry observes each failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 50 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Do calls op until it succeeds, returns a non-retryable error, the
// context ends, or MaxAttempts is reached. The final error of an exhausted
// loop wraps both ErrExhausted and the last failure.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.normalize()
	delay := p.InitialDelay

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
