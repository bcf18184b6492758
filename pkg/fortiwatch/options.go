package fortiwatch

import (
	"log/slog"
	"time"
)

type options struct {
	maxRetries int
	retryDelay time.Duration
	bufferSize int
	logger     *slog.Logger
	onUpdate   func([]Record, error)
	schedule   string
}

// Option configures a Client.
type Option func(*options)

// WithRetry sets how many times a failed fetch is retried and the base
// delay; retry N waits N times the base delay. Default: 3 retries, 1s.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.retryDelay = baseDelay
	}
}

// WithBufferSize sets the window capacity. Default: 100.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithOnUpdate registers a callback invoked after every cycle with the
// window contents and the cycle's error, if any. It must not call Stop.
func WithOnUpdate(f func(records []Record, err error)) Option {
	return func(o *options) {
		o.onUpdate = f
	}
}

// WithSchedule replaces the fixed poll interval with a cron expression,
// e.g. "*/5 * * * *" or "@every 45s".
func WithSchedule(expr string) Option {
	return func(o *options) {
		o.schedule = expr
	}
}

func defaultOptions() options {
	return options{
		maxRetries: 3,
		retryDelay: time.Second,
		bufferSize: 100,
	}
}
