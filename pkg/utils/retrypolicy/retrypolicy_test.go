package retrypolicy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattskanaut/car-cs-deployment/pkg/utils/retrypolicy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient failure")

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	policy := retrypolicy.Policy{Interval: time.Millisecond, MaxAttempts: 3}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	policy := retrypolicy.Policy{Interval: time.Millisecond, MaxAttempts: 5}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttemptBudget(t *testing.T) {
	t.Parallel()

	policy := retrypolicy.Policy{Interval: time.Millisecond, MaxAttempts: 3}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++

		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentAbortsEarly(t *testing.T) {
	t.Parallel()

	policy := retrypolicy.Policy{Interval: time.Millisecond, MaxAttempts: 10}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++

		return retrypolicy.Permanent(errTransient)
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRejected(t *testing.T) {
	t.Parallel()

	policy := retrypolicy.Policy{Interval: time.Millisecond}

	err := policy.Do(context.Background(), func() error { return nil })

	require.ErrorIs(t, err, retrypolicy.ErrNoAttempts)
}

func TestDo_ContextCancellationStopsRetry(t *testing.T) {
	t.Parallel()

	policy := retrypolicy.Policy{Interval: 50 * time.Millisecond, MaxAttempts: 100}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, func() error {
		calls++

		return errTransient
	})

	require.Error(t, err)
	assert.Less(t, calls, 100)
}
