package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/auth"
)

// Client is a stateless client for a GoTrue-compatible provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	verifier   *auth.TokenService
	logger     *slog.Logger
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithVerifier makes the client check the signature of every access token it
// receives. Use when the provider's JWT secret is known.
func WithVerifier(v *auth.TokenService) ClientOption {
	return func(c *Client) { c.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the provider at baseURL. apiKey is sent in
// the "apikey" header of every request when non-empty.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordGrant starts a session with email and password.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", credentials{email, password}, &s); err != nil {
		return nil, err
	}
	return c.finish(&s)
}

// RefreshGrant trades a refresh token for a new session.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &s); err != nil {
		return nil, err
	}
	return c.finish(&s)
}

// signupResponse covers both shapes /signup answers with: a full session
// when accounts are auto-confirmed, the bare user otherwise.
type signupResponse struct {
	Session
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Signup registers a new account. It returns the session when the provider
// signs the user straight in, or nil and the created user when it does not.
func (c *Client) Signup(ctx context.Context, email, password string) (*Session, *User, error) {
	var resp signupResponse
	if err := c.do(ctx, http.MethodPost, "/signup", "", credentials{email, password}, &resp); err != nil {
		return nil, nil, err
	}
	if resp.AccessToken == "" {
		return nil, &User{ID: resp.ID, Email: resp.Email}, nil
	}
	s, err := c.finish(&resp.Session)
	if err != nil {
		return nil, nil, err
	}
	return s, &s.User, nil
}

// Logout revokes the refresh tokens of the session the access token belongs to.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// GetUser returns the user the access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// finish fills in ExpiresAt and verifies the access token.
func (c *Client) finish(s *Session) (*Session, error) {
	if s.AccessToken == "" {
		return nil, apperror.AuthFailed("provider returned no access token")
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Unix() + int64(s.ExpiresIn)
	}
	if c.verifier != nil {
		if _, err := c.verifier.Validate(s.AccessToken); err != nil {
			return nil, fmt.Errorf("identity: rejecting access token: %w", err)
		}
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("identity: encoding %s body: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("identity: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %s %s: %w", method, redact(path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("identity: reading %s response: %w", path, err)
	}

	c.logger.Debug("identity request",
		slog.String("method", method),
		slog.String("path", redact(path)),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Status: resp.StatusCode, Message: providerMessage(resp.StatusCode, raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("identity: decoding %s response: %w", path, err)
	}
	return nil
}

// redact drops the query string, which never carries secrets here but keeps
// log lines uniform.
func redact(path string) string {
	if u, err := url.Parse(path); err == nil {
		return u.Path
	}
	return path
}

// ProviderError is a non-success answer from the provider. It unwraps to
// apperror.ErrAuth so callers can tell "the provider said no" from a
// transport failure.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// Detail is the human-readable message shown to the user.
func (e *ProviderError) Detail() string { return e.Message }

func (e *ProviderError) Unwrap() error { return apperror.ErrAuth }

// IsProviderStatus reports whether err is a ProviderError with one of codes.
func IsProviderStatus(err error, codes ...int) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	for _, code := range codes {
		if pe.Status == code {
			return true
		}
	}
	return false
}

// providerMessage picks the first message field GoTrue-style providers use.
func providerMessage(status int, raw []byte) string {
	var fields struct {
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &fields) == nil {
		for _, m := range []string{fields.Msg, fields.ErrorDescription, fields.Message, fields.Error} {
			if m != "" {
				return m
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}
