// Package session owns the bearer token used against the appliance API.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/fortiwatch/internal/connector/httpclient"
	"github.com/crimson-sun/fortiwatch/internal/metrics"
)

// ClientID identifies this tool to the appliance's authentication endpoint.
const ClientID = "fortigate_monitor"

// ErrNoAccessToken is returned when a login response carries no access_token.
var ErrNoAccessToken = errors.New("authentication failed: no access token received")

const (
	tokenKey     = "access_token"
	expiryLeeway = 30 * time.Second
)

// Credentials are sent to the authentication endpoint.
type Credentials struct {
	Username string
	Password string
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ClientID  string `json:"client_id"`
	GrantType string `json:"grant_type"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Manager caches the access token and logs in lazily. It is safe for
// concurrent use; concurrent callers share a single login request.
type Manager struct {
	client *httpclient.Client
	creds  Credentials
	cache  *gocache.Cache
	group  singleflight.Group
	now    func() time.Time
}

// New creates a Manager that authenticates through client.
func New(client *httpclient.Client, creds Credentials) *Manager {
	return &Manager{
		client: client,
		creds:  creds,
		cache:  gocache.New(gocache.NoExpiration, time.Minute),
		now:    time.Now,
	}
}

// Token returns the cached access token, logging in first when none is held.
// The shared login ignores cancellation of the caller that started it, so
// one caller giving up does not fail the others; it is still bounded by the
// client timeout.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cache.Get(tokenKey); ok {
		return tok.(string), nil
	}

	v, err, _ := m.group.Do(tokenKey, func() (any, error) {
		if tok, ok := m.cache.Get(tokenKey); ok {
			return tok.(string), nil
		}
		resp, err := m.login(context.WithoutCancel(ctx))
		if err != nil {
			metrics.Logins.WithLabelValues("failure").Inc()
			return "", err
		}
		metrics.Logins.WithLabelValues("success").Inc()
		m.cache.Set(tokenKey, resp.AccessToken, m.ttl(resp))
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Valid reports whether a token is currently cached.
func (m *Manager) Valid() bool {
	_, ok := m.cache.Get(tokenKey)
	return ok
}

// Invalidate drops the cached token so the next Token call re-authenticates.
func (m *Manager) Invalidate() {
	m.cache.Delete(tokenKey)
}

func (m *Manager) login(ctx context.Context) (loginResponse, error) {
	var resp loginResponse
	err := m.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/authentication",
		Body: loginRequest{
			Username:  m.creds.Username,
			Password:  m.creds.Password,
			ClientID:  ClientID,
			GrantType: "password",
		},
	}, &resp)
	if err != nil {
		return loginResponse{}, fmt.Errorf("login: %w", err)
	}
	if resp.AccessToken == "" {
		return loginResponse{}, ErrNoAccessToken
	}
	slog.Debug("authenticated", "base_url", m.client.BaseURL())
	return resp, nil
}

// ttl derives how long a token may be reused. JWT expiry wins over
// expires_in; neither means the token lives until a 401 invalidates it.
func (m *Manager) ttl(resp loginResponse) time.Duration {
	var exp time.Time
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	} else if resp.ExpiresIn > 0 {
		exp = m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if exp.IsZero() {
		return gocache.NoExpiration
	}

	d := exp.Sub(m.now()) - expiryLeeway
	if d <= 0 {
		// Already (nearly) expired.
		return time.Second
	}
	return d
}
