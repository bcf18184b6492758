package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	base := 30 * time.Millisecond
	var stamps []time.Time

	err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: base}, func(ctx context.Context, attempt int) error {
		stamps = append(stamps, time.Now())
		if attempt <= 2 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 1*base)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 2*base)
}

func TestDo_ExhaustsBudgetAndReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("attempt " + string(rune('0'+attempt)))
	})

	require.Error(t, err)
	assert.Equal(t, "attempt 4", err.Error())
	assert.Equal(t, 4, calls)
}

func TestDo_CounterIsPerCall(t *testing.T) {
	p := Policy{MaxRetries: 1, BaseDelay: time.Millisecond}
	for i := 0; i < 3; i++ {
		var attempts []int
		_ = Do(context.Background(), p, func(ctx context.Context, attempt int) error {
			attempts = append(attempts, attempt)
			return errFlaky
		})
		assert.Equal(t, []int{1, 2}, attempts)
	}
}

func TestDo_NotRetryable(t *testing.T) {
	errFatal := errors.New("forbidden")
	calls := 0
	err := Do(context.Background(), Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Retryable:  func(err error) bool { return !errors.Is(err, errFatal) },
	}, func(ctx context.Context, attempt int) error {
		calls++
		return errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, Policy{MaxRetries: 3, BaseDelay: time.Second}, func(ctx context.Context, attempt int) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDo_ContextDoneBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultPolicy(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_PermanentStopsRetrying(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 0, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestLinearBackOff(t *testing.T) {
	l := &linear{base: time.Second}
	assert.Equal(t, 1*time.Second, l.NextBackOff())
	assert.Equal(t, 2*time.Second, l.NextBackOff())
	assert.Equal(t, 3*time.Second, l.NextBackOff())
	l.Reset()
	assert.Equal(t, 1*time.Second, l.NextBackOff())
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Nil(t, p.Retryable)
}
