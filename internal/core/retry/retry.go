// Package retry holds the bounded linear backoff discipline shared by the
// fetch primitive and one-shot CLI reads.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries = 3
	DefaultDelay      = time.Second
)

// Policy bounds retries of a failed read. The wait before retry n (zero based)
// is Delay * (n + 1).
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultPolicy returns three retries with a one second base delay.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, Delay: DefaultDelay}
}

// Backoff returns the wait before the retry that follows retryCount failures
// already retried.
func (p Policy) Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return p.Delay * time.Duration(retryCount+1)
}

// CanRetry reports whether another retry is allowed after retryCount retries.
func (p Policy) CanRetry(retryCount int) bool {
	return retryCount < p.MaxRetries
}

// BackOff adapts the policy to a backoff.BackOff capped at MaxRetries.
func (p Policy) BackOff() backoff.BackOff {
	return backoff.WithMaxRetries(&linear{delay: p.Delay}, uint64(max(p.MaxRetries, 0)))
}

type linear struct {
	delay time.Duration
	n     int
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	return l.delay * time.Duration(l.n)
}

func (l *linear) Reset() { l.n = 0 }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a Permanent error, the context ends,
// or the policy is exhausted. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying after failure")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(p.BackOff(), ctx), notify)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return errors.Join(err, ctx.Err())
	}
	return err
}
