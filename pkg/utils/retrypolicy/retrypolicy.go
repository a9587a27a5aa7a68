// Package retrypolicy provides a bounded retry/poll loop with a fixed
// interval and a hard attempt cap. The same primitive backs both the archive
// fetch retry and the post-deploy verification poll, so no unbounded wait
// exists anywhere in the installer.
package retrypolicy

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNoAttempts is returned when a policy is configured with zero attempts.
var ErrNoAttempts = errors.New("retry policy requires at least one attempt")

// Policy describes a bounded retry loop: a constant delay between attempts
// and a maximum total attempt count (including the first try).
type Policy struct {
	Interval    time.Duration
	MaxAttempts uint64
}

// Do runs op until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. The last error from op is returned on exhaustion.
// Wrap an error with Permanent to abort retrying immediately.
func (p Policy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts == 0 {
		return ErrNoAttempts
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), p.MaxAttempts-1),
		ctx,
	)

	//nolint:wrapcheck // The caller's own error is surfaced unchanged.
	return backoff.Retry(op, policy)
}

// Permanent marks err as non-retryable so Do aborts without consuming the
// remaining attempt budget.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
