package fortigate

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/connector/fortigate/fortigatetest"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

func TestFetch_Success(t *testing.T) {
	srv := fortigatetest.NewServer("tok-1")
	defer srv.Close()
	srv.SetRecords(
		map[string]any{"id": 1, "timestamp": 1700000000, "level": "critical", "source_ip": "10.0.0.5", "msg": "x", "action": "blocked"},
		map[string]any{"id": 2, "level": "warning"},
	)

	c := New(srv.Config())
	raws, err := c.Fetch(context.Background(), connector.DefaultQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 records, got %d", len(raws))
	}
	if raws[0]["id"] != json.Number("1") {
		t.Fatalf("expected id json.Number(1), got %#v", raws[0]["id"])
	}
	if raws[0]["source_ip"] != "10.0.0.5" {
		t.Fatalf("unexpected source_ip: %v", raws[0]["source_ip"])
	}

	q := srv.LastQuery()
	if q.Get("limit") != "100" || q.Get("sort") != "-timestamp" {
		t.Fatalf("unexpected query: %v", q)
	}
	if q.Get("filter") != "action==blocked || level==critical || level==warning" {
		t.Fatalf("unexpected filter: %q", q.Get("filter"))
	}
	if tokens := srv.Tokens(); len(tokens) != 1 || tokens[0] != "tok-1" {
		t.Fatalf("unexpected bearer tokens: %v", tokens)
	}
}

func TestFetch_EmptyResults(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()

	raws, err := New(srv.Config()).Fetch(context.Background(), connector.DefaultQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raws == nil || len(raws) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", raws)
	}
}

func TestFetch_TokenReused(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()

	c := New(srv.Config())
	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background(), connector.DefaultQuery); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if srv.Logins.Load() != 1 {
		t.Fatalf("expected 1 login, got %d", srv.Logins.Load())
	}
}

func TestFetch_UnauthorizedInvalidatesSession(t *testing.T) {
	srv := fortigatetest.NewServer("tok-1")
	defer srv.Close()

	c := New(srv.Config())
	if _, err := c.Fetch(context.Background(), connector.DefaultQuery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Token rotated on the appliance: the old one is now rejected.
	srv.SetToken("tok-2")
	_, err := c.Fetch(context.Background(), connector.DefaultQuery)
	if err == nil {
		t.Fatal("expected error")
	}
	if c.Session().Valid() {
		t.Fatal("expected token to be cleared after 401")
	}

	if _, err := c.Fetch(context.Background(), connector.DefaultQuery); err != nil {
		t.Fatalf("expected re-authenticated fetch to succeed: %v", err)
	}
	if srv.Logins.Load() != 2 {
		t.Fatalf("expected 2 logins, got %d", srv.Logins.Load())
	}
	tokens := srv.Tokens()
	if tokens[len(tokens)-1] != "tok-2" {
		t.Fatalf("expected new token on last fetch, got %v", tokens)
	}
}

func TestFetch_ForbiddenKeepsSession(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()
	srv.FailNext(http.StatusForbidden)

	c := New(srv.Config())
	if _, err := c.Fetch(context.Background(), connector.DefaultQuery); err == nil {
		t.Fatal("expected error")
	}
	if !c.Session().Valid() {
		t.Fatal("403 must not clear the token")
	}
}

func TestFetch_PhaseHook(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()

	c := New(srv.Config())
	var phases []model.State
	c.SetPhaseHook(func(s model.State) { phases = append(phases, s) })

	c.Fetch(context.Background(), connector.DefaultQuery)
	c.Fetch(context.Background(), connector.DefaultQuery)

	want := []model.State{model.StateAuthenticating, model.StateFetching, model.StateFetching}
	if len(phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("expected phases %v, got %v", want, phases)
		}
	}
}

func TestTest_Success(t *testing.T) {
	srv := fortigatetest.NewServer("tok")
	defer srv.Close()

	v := New(srv.Config()).Test(context.Background())
	if !v.Success || v.Message != "Connection successful - API access verified" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if srv.LastQuery().Get("limit") != "1" {
		t.Fatalf("expected limit=1, got %v", srv.LastQuery())
	}
}

func TestTest_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fortigatetest.Server)
		cfg    func(connector.ConnectorConfig) connector.ConnectorConfig
		expect string
	}{
		{
			name:   "bad credentials",
			cfg:    func(c connector.ConnectorConfig) connector.ConnectorConfig { c.Password = "wrong"; return c },
			expect: "Connection failed: Invalid credentials or session expired",
		},
		{
			name:   "forbidden",
			setup:  func(s *fortigatetest.Server) { s.FailNext(http.StatusForbidden) },
			expect: "Connection failed: Access forbidden - check your permissions",
		},
		{
			name:   "not found",
			setup:  func(s *fortigatetest.Server) { s.FailNext(http.StatusNotFound) },
			expect: "Connection failed: API endpoint not found - check your FortiGate version",
		},
		{
			name:   "internal error",
			setup:  func(s *fortigatetest.Server) { s.FailNext(http.StatusInternalServerError) },
			expect: "Connection failed: FortiGate internal server error",
		},
		{
			name:   "no token",
			setup:  func(s *fortigatetest.Server) { s.SetToken("") },
			expect: "Connection failed: authentication failed: no access token received",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fortigatetest.NewServer("tok")
			defer srv.Close()
			if tt.setup != nil {
				tt.setup(srv)
			}
			cfg := srv.Config()
			if tt.cfg != nil {
				cfg = tt.cfg(cfg)
			}

			v := New(cfg).Test(context.Background())
			if v.Success {
				t.Fatal("expected failure")
			}
			if v.Message != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, v.Message)
			}
		})
	}
}

func TestRegistered(t *testing.T) {
	ctor, err := connector.Get("fortigate")
	if err != nil {
		t.Fatalf("fortigate not registered: %v", err)
	}
	if _, ok := ctor(connector.ConnectorConfig{Protocol: "https", Host: "fw", Port: "443"}).(*Connector); !ok {
		t.Fatal("constructor returned unexpected type")
	}
}
