package connector

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/fortiwatch/internal/model"
)

// Connector defines the interface all log source connectors must implement.
type Connector interface {
	// Fetch returns the latest raw log records from the source.
	Fetch(ctx context.Context, params QueryParams) ([]model.RawRecord, error)

	// Test checks reachability and permissions. It never returns an error;
	// the outcome is carried in the Verdict.
	Test(ctx context.Context) Verdict
}

// PhaseReporter is implemented by connectors that can report which phase of a
// fetch they are in (authenticating, fetching).
type PhaseReporter interface {
	SetPhaseHook(func(model.State))
}

// ConnectorConfig holds the appliance connection settings.
type ConnectorConfig struct {
	Provider     string
	Protocol     string
	Host         string
	Port         string
	Username     string
	Password     string
	PollInterval int // seconds
	Insecure     bool
	Mock         bool
}

// QueryParams defines filters for a log fetch.
type QueryParams struct {
	Limit  int
	Sort   string
	Filter string
}

// DefaultQuery is the standing query for security-relevant events.
var DefaultQuery = QueryParams{
	Limit:  100,
	Sort:   "-timestamp",
	Filter: "action==blocked || level==critical || level==warning",
}

// Verdict is the result of a connection test.
type Verdict struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var (
	ErrInvalidProtocol = errors.New("protocol must be http or https")
	ErrInvalidInterval = errors.New("poll interval must be at least 1 second")
)

// Validate checks the invariants of a live configuration. Mock
// configurations only need a valid poll interval.
func (c ConnectorConfig) Validate() error {
	if c.PollInterval < 1 {
		return ErrInvalidInterval
	}
	if c.UseMock() {
		return nil
	}
	if c.Protocol != "http" && c.Protocol != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, c.Protocol)
	}
	return nil
}

// UseMock reports whether records should be synthesized instead of fetched.
func (c ConnectorConfig) UseMock() bool {
	return c.Mock || c.Host == ""
}

// BaseURL returns the API root, e.g. https://fw.local:443/api/v2.
func (c ConnectorConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%s/api/v2", c.Protocol, c.Host, c.Port)
}

// ProviderName resolves the registry name for this configuration.
func (c ConnectorConfig) ProviderName() string {
	if c.UseMock() {
		return "mock"
	}
	if c.Provider == "" {
		return "fortigate"
	}
	return c.Provider
}
