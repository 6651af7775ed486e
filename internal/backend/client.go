package backend

import (
	"net/http"
	"time"

	"github.com/mekod/ledger/internal/connection"
	"github.com/mekod/ledger/internal/logging"
)

// Client is one live handle to a backend project. Construction allocates
// only; no network traffic happens until a call is made.
type Client struct {
	cfg     *connection.Config
	baseURL string
	http    *http.Client

	// Auth owns the session and the auth-state stream for this identity.
	Auth *AuthClient
}

// ClientOption configures clients produced by a Registry.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient   *http.Client
	sessionStore SessionStore
	log          logging.Logger
}

// WithHTTPClient substitutes the transport (tests, custom timeouts).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = h }
}

// WithSessionStore sets where sessions are persisted. Defaults to an
// in-memory store.
func WithSessionStore(s SessionStore) ClientOption {
	return func(o *clientOptions) { o.sessionStore = s }
}

// WithLogger sets the logger for all produced clients.
func WithLogger(log logging.Logger) ClientOption {
	return func(o *clientOptions) { o.log = log }
}

func newClient(cfg *connection.Config, opts clientOptions) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: cfg.URL,
		http:    opts.httpClient,
	}
	c.Auth = newAuthClient(cfg.URL, cfg.AnonKey, cfg.Identity(), c.http, opts.sessionStore, opts.log)
	return c
}

// Config returns the connection config this client was built from.
func (c *Client) Config() *connection.Config { return c.cfg }

// Identity returns the connection identity this client serves.
func (c *Client) Identity() string { return c.cfg.Identity() }

// Table starts a row-level operation against the named table.
func (c *Client) Table(name string) *Query {
	return newQuery(c, name)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
