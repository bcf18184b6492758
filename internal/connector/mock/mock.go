// Package mock implements a connector that synthesizes a fixed set of
// security events, for demos and for running without an appliance.
package mock

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

func init() {
	connector.Register("mock", func(connector.ConnectorConfig) connector.Connector {
		return New()
	})
}

type event struct {
	level   model.Level
	message string
	action  string
}

var events = []event{
	{model.LevelError, "Failed login attempt detected", "blocked"},
	{model.LevelWarning, "Unusual traffic pattern detected", "monitored"},
	{model.LevelInfo, "VPN connection established", "allowed"},
	{model.LevelError, "Port scan detected", "blocked"},
	{model.LevelWarning, "High CPU usage detected", "monitored"},
}

// Connector returns the same five events on every fetch with fresh
// identities, timestamps and source addresses.
type Connector struct {
	mu   sync.Mutex
	last int64 // identity base of the previous batch
	now  func() time.Time
}

// New creates a mock Connector.
func New() *Connector {
	return &Connector{now: time.Now}
}

// Fetch never fails. Identities are the current unix millis plus the event
// index; the base never goes backwards and never overlaps the previous batch.
func (c *Connector) Fetch(_ context.Context, _ connector.QueryParams) ([]model.RawRecord, error) {
	now := c.now()

	c.mu.Lock()
	base := now.UnixMilli()
	if floor := c.last + int64(len(events)); base < floor {
		base = floor
	}
	c.last = base
	c.mu.Unlock()

	ts := now.UTC().Format(time.RFC3339Nano)
	out := make([]model.RawRecord, 0, len(events))
	for i, ev := range events {
		out = append(out, model.RawRecord{
			"id":        strconv.FormatInt(base+int64(i), 10),
			"timestamp": ts,
			"level":     string(ev.level),
			"source":    fmt.Sprintf("192.168.1.%d", gofakeit.Number(100, 199)),
			"message":   ev.message,
			"action":    ev.action,
		})
	}
	return out, nil
}

// Test always succeeds.
func (c *Connector) Test(context.Context) connector.Verdict {
	return connector.Verdict{Success: true, Message: "Connection successful (Mock Mode)"}
}
