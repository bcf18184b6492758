package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Kind is the diagnostic category of a failed request.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServerError
	KindConnectionRefused
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	case KindConnectionRefused:
		return "connection_refused"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified request failure. Message is meant for display.
type Error struct {
	Kind       Kind
	StatusCode int // set for HTTP status kinds
	Err        error
}

func (e *Error) Error() string { return e.Message() }

func (e *Error) Unwrap() error { return e.Err }

// Message returns the human-readable diagnostic for the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindUnauthorized:
		return "Invalid credentials or session expired"
	case KindForbidden:
		return "Access forbidden - check your permissions"
	case KindNotFound:
		return "API endpoint not found - check your FortiGate version"
	case KindServerError:
		if e.StatusCode == http.StatusInternalServerError {
			return "FortiGate internal server error"
		}
		return fmt.Sprintf("Server error: %d", e.StatusCode)
	case KindConnectionRefused:
		return "Connection refused - check if the device is reachable"
	case KindTimeout:
		return "Connection timed out - check your network or device status"
	default:
		if e.Err == nil {
			return "Unknown error"
		}
		return e.Err.Error()
	}
}

// Classify maps err onto a diagnostic category. It returns nil for a nil
// error and passes an already classified *Error through.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var se *StatusError
	if errors.As(err, &se) {
		e := &Error{StatusCode: se.StatusCode, Err: err}
		switch se.StatusCode {
		case http.StatusUnauthorized:
			e.Kind = KindUnauthorized
		case http.StatusForbidden:
			e.Kind = KindForbidden
		case http.StatusNotFound:
			e.Kind = KindNotFound
		default:
			e.Kind = KindServerError
		}
		return e
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Kind: KindConnectionRefused, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}

// IsUnauthorized reports whether err classifies as an HTTP 401.
func IsUnauthorized(err error) bool {
	ce := Classify(err)
	return ce != nil && ce.Kind == KindUnauthorized
}

// IsTransient reports whether retrying err could plausibly succeed:
// timeouts, refused connections, 5xx responses, 401 (the session is
// re-established on the next attempt) and unclassified failures.
func IsTransient(err error) bool {
	ce := Classify(err)
	if ce == nil {
		return false
	}
	switch ce.Kind {
	case KindForbidden, KindNotFound:
		return false
	case KindServerError:
		return ce.StatusCode >= 500 || ce.StatusCode == http.StatusTooManyRequests
	default:
		return true
	}
}
