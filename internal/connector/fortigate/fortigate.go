// Package fortigate implements the connector for FortiGate's REST log API.
package fortigate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/connector/httpclient"
	"github.com/crimson-sun/fortiwatch/internal/connector/session"
	"github.com/crimson-sun/fortiwatch/internal/logging"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

const logPath = "/monitor/log/system"

func init() {
	connector.Register("fortigate", func(cfg connector.ConnectorConfig) connector.Connector {
		return New(cfg)
	})
}

// Connector fetches system logs from one appliance. The session token is
// owned by the connector and never shared with another configuration.
type Connector struct {
	client  *httpclient.Client
	session *session.Manager
	phase   func(model.State)
}

type logsResponse struct {
	Results []model.RawRecord `json:"results"`
}

// New creates a Connector for cfg.
func New(cfg connector.ConnectorConfig, opts ...httpclient.Option) *Connector {
	if cfg.Insecure {
		opts = append([]httpclient.Option{httpclient.WithInsecureTLS()}, opts...)
	}
	client := httpclient.New(cfg.BaseURL(), opts...)
	return &Connector{
		client: client,
		session: session.New(client, session.Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
		}),
		phase: func(model.State) {},
	}
}

// SetPhaseHook registers a callback for authenticating/fetching phases.
func (c *Connector) SetPhaseHook(f func(model.State)) {
	if f == nil {
		f = func(model.State) {}
	}
	c.phase = f
}

// Session exposes the token manager, mainly for inspection in tests.
func (c *Connector) Session() *session.Manager { return c.session }

// Fetch returns the latest log records. A 401 drops the cached token before
// the error is returned so the next attempt re-authenticates.
func (c *Connector) Fetch(ctx context.Context, params connector.QueryParams) ([]model.RawRecord, error) {
	var resp logsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("fortigate connector: %w", err)
	}
	if resp.Results == nil {
		return []model.RawRecord{}, nil
	}
	return resp.Results, nil
}

// Test authenticates and reads a single record to verify permissions.
func (c *Connector) Test(ctx context.Context) connector.Verdict {
	if err := c.get(ctx, connector.QueryParams{Limit: 1}, nil); err != nil {
		return connector.Verdict{
			Success: false,
			Message: "Connection failed: " + httpclient.Classify(err).Message(),
		}
	}
	return connector.Verdict{Success: true, Message: "Connection successful - API access verified"}
}

func (c *Connector) get(ctx context.Context, params connector.QueryParams, dest any) error {
	if !c.session.Valid() {
		c.phase(model.StateAuthenticating)
	}
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}

	c.phase(model.StateFetching)
	err = c.client.Do(ctx, httpclient.Request{
		Path:  logPath,
		Query: queryValues(params),
		Token: token,
	}, dest)
	if httpclient.IsUnauthorized(err) {
		slog.Info("session expired, dropping token", logging.Host(c.client.BaseURL()))
		c.session.Invalidate()
	}
	return err
}

func queryValues(p connector.QueryParams) url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Filter != "" {
		q.Set("filter", p.Filter)
	}
	return q
}
