// Package fortigatetest provides an in-process fake appliance for tests.
package fortigatetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/crimson-sun/fortiwatch/internal/connector"
)

// Server is a fake appliance exposing the authentication and system log
// endpoints. Zero or more queued statuses are returned by the log endpoint
// before it starts serving Records.
type Server struct {
	*httptest.Server

	Username string
	Password string

	Logins  atomic.Int32
	Fetches atomic.Int32

	mu        sync.Mutex
	token     string
	records   []map[string]any
	failures  []int
	lastQuery url.Values
	tokens    []string // bearer tokens seen by the log endpoint
}

// NewServer starts a fake appliance that issues token on login.
func NewServer(token string) *Server {
	s := &Server{Username: "admin", Password: "s3cret", token: token}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/authentication", s.handleLogin)
	mux.HandleFunc("/api/v2/monitor/log/system", s.handleLogs)
	s.Server = httptest.NewServer(mux)
	return s
}

// Config returns a connector configuration pointing at the server.
func (s *Server) Config() connector.ConnectorConfig {
	u, _ := url.Parse(s.URL)
	host, port, _ := strings.Cut(u.Host, ":")
	return connector.ConnectorConfig{
		Provider:     "fortigate",
		Protocol:     "http",
		Host:         host,
		Port:         port,
		Username:     s.Username,
		Password:     s.Password,
		PollInterval: 1,
	}
}

// SetRecords replaces the records served by the log endpoint.
func (s *Server) SetRecords(records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// SetToken changes the token issued by subsequent logins.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailNext queues HTTP statuses returned by the next log requests.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// LastQuery returns the query string of the most recent log request.
func (s *Server) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Tokens returns the bearer tokens presented to the log endpoint, in order.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.Logins.Add(1)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body["username"] != s.Username || body["password"] != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		w.Write([]byte(`{"status":"ok"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.Fetches.Add(1)

	s.mu.Lock()
	s.lastQuery = r.URL.Query()
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.tokens = append(s.tokens, bearer)
	var status int
	if len(s.failures) > 0 {
		status, s.failures = s.failures[0], s.failures[1:]
	}
	token := s.token
	records := s.records
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if bearer == "" || bearer != token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if records == nil {
		records = []map[string]any{}
	}
	json.NewEncoder(w).Encode(map[string]any{"results": records})
}
