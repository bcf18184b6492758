package fortiwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/engine"
	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/pipeline"
	"github.com/crimson-sun/fortiwatch/internal/retry"

	_ "github.com/crimson-sun/fortiwatch/internal/connector/fortigate"
	_ "github.com/crimson-sun/fortiwatch/internal/connector/mock"
)

// Config describes the appliance to poll.
type Config struct {
	Host         string
	Port         string
	Protocol     string // http or https
	Username     string
	Password     string
	PollInterval int  // seconds, at least 1
	Insecure     bool // accept self-signed certificates
	Mock         bool // serve synthetic events
}

func (c Config) connector() connector.ConnectorConfig {
	return connector.ConnectorConfig{
		Provider:     "fortigate",
		Protocol:     c.Protocol,
		Host:         c.Host,
		Port:         c.Port,
		Username:     c.Username,
		Password:     c.Password,
		PollInterval: c.PollInterval,
		Insecure:     c.Insecure,
		Mock:         c.Mock,
	}
}

// Client polls one appliance. Each Client owns its session token and window.
type Client struct {
	pipeline *pipeline.Pipeline
	mock     bool
}

// New validates cfg and creates a stopped Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cc := cfg.connector()
	if err := cc.Validate(); err != nil {
		return nil, fmt.Errorf("fortiwatch: %w", err)
	}
	conn, err := connector.Open(cc)
	if err != nil {
		return nil, fmt.Errorf("fortiwatch: %w", err)
	}
	sched, err := pipeline.Schedule(time.Duration(cfg.PollInterval)*time.Second, o.schedule)
	if err != nil {
		return nil, fmt.Errorf("fortiwatch: %w", err)
	}

	popts := []pipeline.Option{
		pipeline.WithRetry(retry.Policy{MaxRetries: o.maxRetries, BaseDelay: o.retryDelay}),
		pipeline.WithBufferSize(o.bufferSize),
		pipeline.WithSchedule(sched),
	}
	if o.logger != nil {
		popts = append(popts, pipeline.WithLogger(o.logger))
	}
	if o.onUpdate != nil {
		f := o.onUpdate
		popts = append(popts, pipeline.WithOnUpdate(func(rs []model.Record, err error) {
			f(recordsFromModel(rs), err)
		}))
	}

	return &Client{
		pipeline: pipeline.New(conn, engine.New(nil), popts...),
		mock:     cc.UseMock(),
	}, nil
}

// Logs fetches once (with retries), merges the result into the window and
// returns the records of this fetch.
func (c *Client) Logs(ctx context.Context) ([]Record, error) {
	rs, err := c.pipeline.Cycle(ctx)
	if err != nil {
		return nil, err
	}
	return recordsFromModel(rs), nil
}

// Refresh fetches once and returns the merged window.
func (c *Client) Refresh(ctx context.Context) ([]Record, error) {
	rs, err := c.pipeline.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return recordsFromModel(rs), nil
}

// Start fetches immediately and then polls on the configured interval until
// Stop is called or ctx is done.
func (c *Client) Start(ctx context.Context) {
	c.pipeline.Start(ctx)
}

// Stop ends polling. No fetch starts after Stop returns and results of
// fetches still in flight are discarded. Safe to call repeatedly.
func (c *Client) Stop() {
	c.pipeline.Stop()
}

// Records returns the window, newest first.
func (c *Client) Records() []Record {
	return recordsFromModel(c.pipeline.Records())
}

// Filter returns window records whose message or source contains term,
// ignoring case.
func (c *Client) Filter(term string) []Record {
	return recordsFromModel(pipeline.Filter(c.pipeline.Records(), term))
}

// Stats summarizes the window.
func (c *Client) Stats() Stats {
	s := pipeline.Summarize(c.pipeline.Records())
	out := Stats{
		Total:    s.Total,
		Threats:  s.Threats,
		Blocked:  s.Blocked,
		Warnings: s.Warnings(),
		ByLevel:  make(map[string]int, len(s.ByLevel)),
	}
	for lv, n := range s.ByLevel {
		out.ByLevel[string(lv)] = n
	}
	return out
}

// TestConnection verifies reachability, credentials and permissions. It
// never returns an error; the outcome is in the Verdict.
func (c *Client) TestConnection(ctx context.Context) Verdict {
	v := c.pipeline.TestConnection(ctx)
	return Verdict{Success: v.Success, Message: v.Message}
}

// State returns the current phase: idle, authenticating, fetching,
// normalizing, merged or failed.
func (c *Client) State() string {
	return c.pipeline.State().String()
}

// LastError returns the error of the most recent cycle, or nil.
func (c *Client) LastError() error {
	return c.pipeline.LastError()
}

// Mock reports whether the Client serves synthetic events.
func (c *Client) Mock() bool { return c.mock }
