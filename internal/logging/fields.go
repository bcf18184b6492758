package logging

import (
	"fmt"
	"log/slog"
	"time"
)

// Field names shared by every package that logs.
const (
	FieldHost     = "host"
	FieldProvider = "provider"
	FieldState    = "state"
	FieldAttempt  = "attempt"
	FieldRecords  = "records"
	FieldDuration = "duration_ms"
	FieldError    = "error"
	FieldKind     = "kind"
)

// Host returns a slog attribute for the appliance address.
func Host(host string) slog.Attr {
	return slog.String(FieldHost, host)
}

// Provider returns a slog attribute for the connector provider name.
func Provider(name string) slog.Attr {
	return slog.String(FieldProvider, name)
}

// State returns a slog attribute for a pipeline state.
func State(s fmt.Stringer) slog.Attr {
	return slog.String(FieldState, s.String())
}

// Attempt returns a slog attribute for a 1-based attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Duration returns a slog attribute for an elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Kind returns a slog attribute for an error classification.
func Kind(k fmt.Stringer) slog.Attr {
	return slog.String(FieldKind, k.String())
}
