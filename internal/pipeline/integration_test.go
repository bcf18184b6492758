package pipeline

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/connector/fortigate"
	"github.com/crimson-sun/fortiwatch/internal/connector/fortigate/fortigatetest"
	"github.com/crimson-sun/fortiwatch/internal/engine"
	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/retry"

	_ "github.com/crimson-sun/fortiwatch/internal/connector/mock"
)

func newAppliancePipeline(t *testing.T, srv *fortigatetest.Server, opts ...Option) (*Pipeline, *fortigate.Connector) {
	t.Helper()
	conn := fortigate.New(srv.Config())
	opts = append([]Option{WithRetry(retry.Policy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})}, opts...)
	return New(conn, engine.New(nil), opts...), conn
}

func TestIntegration_RecordMapping(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()
	srv.SetRecords(map[string]any{
		"id": 1, "timestamp": 1700000000, "level": "critical",
		"source_ip": "10.0.0.5", "msg": "x", "action": "blocked",
	})

	p, _ := newAppliancePipeline(t, srv)
	records, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.Record{
		ID:        "1",
		Timestamp: "2023-11-14T22:13:20.000Z",
		Level:     model.LevelError,
		Source:    "10.0.0.5",
		Message:   "x",
		Action:    "blocked",
	}, records[0])
}

func TestIntegration_UnauthorizedReauthenticatesOnRetry(t *testing.T) {
	srv := fortigatetest.NewServer("tok-1")
	defer srv.Close()
	srv.SetRecords(map[string]any{"id": 7, "level": "warning"})

	p, conn := newAppliancePipeline(t, srv)
	_, err := p.Cycle(context.Background())
	require.NoError(t, err)

	// The appliance rotates its token; the cached one now gets a 401.
	srv.SetToken("tok-2")
	records, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Equal(t, int32(2), srv.Logins.Load())
	assert.Equal(t, []string{"tok-1", "tok-1", "tok-2"}, srv.Tokens())
	assert.True(t, conn.Session().Valid())
}

func TestIntegration_ServerErrorExhaustsRetries(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()
	srv.FailNext(http.StatusInternalServerError, http.StatusInternalServerError,
		http.StatusInternalServerError, http.StatusInternalServerError)

	p, _ := newAppliancePipeline(t, srv)
	_, err := p.Cycle(context.Background())

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "Failed to fetch logs: FortiGate internal server error", err.Error())
	assert.Equal(t, int32(4), srv.Fetches.Load())
	assert.Equal(t, int32(1), srv.Logins.Load())
	assert.Equal(t, model.StateIdle, p.State())
}

func TestIntegration_PhasesReported(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()

	p, conn := newAppliancePipeline(t, srv)
	var seen []model.State
	conn.SetPhaseHook(func(s model.State) {
		seen = append(seen, s)
		p.setState(s)
	})

	_, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.State{model.StateAuthenticating, model.StateFetching}, seen)
}

func TestIntegration_MockSource(t *testing.T) {
	conn, err := connector.Open(connector.ConnectorConfig{Mock: true, PollInterval: 30})
	require.NoError(t, err)
	p := New(conn, engine.New(nil))

	first, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 5)

	second, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 5)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	window := p.Records()
	assert.Len(t, window, 10, "every mock batch carries new identities")
	for _, r := range window {
		assert.Contains(t, []model.Level{model.LevelError, model.LevelWarning, model.LevelInfo}, r.Level)
	}
}
