// Package backend is a small client for the hosted backend-as-a-service:
// auth under /auth/v1, tables and remote procedures under /rest/v1 and
// object storage under /storage/v1.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	authPath    = "/auth/v1"
	restPath    = "/rest/v1"
	storagePath = "/storage/v1"
)

// ErrMissingConfig is returned when the project URL or public key is empty
var ErrMissingConfig = errors.New("backend URL and anon key are required")

// Client talks to one backend project
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
	auth    *Auth
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every request
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides the time source used for session expiry. Tokens handed
// to the refreshing token source are shifted by the clock's offset from the
// wall clock, so both agree on when a token has expired.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the project at projectURL authenticated with the public anon key
func New(projectURL, anonKey string, opts ...Option) (*Client, error) {
	if projectURL == "" || anonKey == "" {
		return nil, ErrMissingConfig
	}

	u, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", projectURL)
	}

	c := &Client{
		baseURL: u,
		anonKey: anonKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.auth = newAuth(c)

	return c, nil
}

// Auth returns the authentication API
func (c *Client) Auth() *Auth {
	return c.auth
}

// request describes one HTTP call against the project
type request struct {
	method string
	path   string
	query  url.Values
	body   io.Reader
	header http.Header
	anon   bool // send the anon key instead of the session token
	bearer string
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("apikey", c.anonKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	switch {
	case r.bearer != "":
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	case r.anon:
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	default:
		if err := c.auth.authorize(req); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// do sends the request and decodes a JSON response into dest when dest is non-nil
func (c *Client) do(ctx context.Context, r request, dest any) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", c.now().Sub(start)),
	)

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", r.path, err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(b), nil
}

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}
