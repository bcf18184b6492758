package pipeline

import (
	"errors"

	"github.com/crimson-sun/fortiwatch/internal/connector/httpclient"
)

// ErrStale is returned by Cycle when its result was discarded because the
// pipeline was stopped or reset while the cycle was in flight, or when the
// cycle was asked to run after its context was done or the window closed.
var ErrStale = errors.New("pipeline: cycle result discarded")

// FetchError reports a cycle that failed after exhausting its retries.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "Failed to fetch logs: " + httpclient.Classify(e.Err).Message()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Kind returns the diagnostic category of the underlying failure.
func (e *FetchError) Kind() httpclient.Kind {
	return httpclient.Classify(e.Err).Kind
}
