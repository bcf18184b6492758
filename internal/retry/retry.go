// Package retry runs an operation with a bounded, linearly growing backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crimson-sun/fortiwatch/internal/logging"
)

// Policy controls retry behavior.
type Policy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before retry N is N*BaseDelay

	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
}

// DefaultPolicy returns three retries with a one second base delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

func normalizePolicy(p Policy) Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

// linear is a backoff.BackOff whose Nth delay is N*base.
type linear struct {
	base time.Duration
	n    int
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.base
}

func (l *linear) Reset() { l.n = 0 }

// Permanent marks err as final: Do returns it without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, the retry budget is spent, the error is
// not retryable, or ctx is done. op is never called once ctx is done. The
// attempt number (starting at 1) is passed to op. The last error from op is
// returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	p = normalizePolicy(p)

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Debug("retrying", logging.Attempt(attempt), slog.Duration("wait", wait), logging.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linear{base: p.BaseDelay}, uint64(p.MaxRetries)), ctx)
	err := backoff.RetryNotify(operation, b, notify)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
