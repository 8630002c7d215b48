// Package api is the client for the habit REST backend.
//
// Every call is a single attempt: no retry, no backoff, no client-side
// timeout. The bearer token is read from the persisted token cache at call
// time (TokenSource), so whichever session event wrote last is what the
// backend sees.
//
//	c := api.New("http://localhost:8000", store)
//	body, err := c.Get(ctx, "/habits")
//	var habits []model.Habit
//	err = body.Decode(&habits)
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// TokenSource returns the cached access token, or "" when there is none.
type TokenSource interface {
	CachedToken(ctx context.Context) (string, error)
}

// Client issues JSON requests against the backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client (tests use the
// httptest server's client).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for diagnostic traces.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. A trailing slash on baseURL is dropped; an empty
// baseURL falls back to DefaultBaseURL. tokens may be nil, in which case no
// call is ever authenticated.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalised backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

type callOptions struct {
	auth bool
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// WithoutAuth suppresses the bearer header (public endpoints).
func WithoutAuth() CallOption {
	return func(o *callOptions) { o.auth = false }
}

// Get fetches path.
func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) (*Body, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts)
}

// Post creates at path. A nil body is sent as {}.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...CallOption) (*Body, error) {
	return c.do(ctx, http.MethodPost, path, jsonBody(body), opts)
}

// Put replaces at path. A nil body is sent as {}.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...CallOption) (*Body, error) {
	return c.do(ctx, http.MethodPut, path, jsonBody(body), opts)
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, path string, opts ...CallOption) (*Body, error) {
	return c.do(ctx, http.MethodDelete, path, nil, opts)
}

// jsonBody defers marshalling to do so encode errors surface there.
func jsonBody(v any) func() ([]byte, error) {
	return func() ([]byte, error) {
		if v == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body func() ([]byte, error), opts []CallOption) (*Body, error) {
	o := callOptions{auth: true}
	for _, opt := range opts {
		opt(&o)
	}

	// Once issued, a request is not abandoned because the caller went away.
	ctx = context.WithoutCancel(ctx)

	var reader io.Reader
	if body != nil {
		payload, err := body()
		if err != nil {
			return nil, fmt.Errorf("api: encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hc, err := c.clientFor(ctx, o.auth)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading %s %s response: %w", method, path, err)
	}
	parsed := newBody(raw)

	c.logger.Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   parsed,
		}
	}

	return parsed, nil
}

// clientFor returns an http.Client that attaches the cached bearer token,
// or the plain client when auth is off or no token is cached.
func (c *Client) clientFor(ctx context.Context, auth bool) (*http.Client, error) {
	if !auth || c.tokens == nil {
		return c.httpClient, nil
	}

	token, err := c.tokens.CachedToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: reading cached token: %w", err)
	}
	if token == "" {
		return c.httpClient, nil
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// oauth2.Transport sets "Authorization: Bearer <token>" on a clone of
	// each request.
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: token,
				TokenType:   "Bearer",
			}),
			Base: base,
		},
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}, nil
}
