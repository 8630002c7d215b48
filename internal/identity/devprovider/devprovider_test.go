package devprovider_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/identity/devprovider/devtest"
)

func post(t *testing.T, srv *httptest.Server, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", devtest.APIKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func signup(t *testing.T, srv *httptest.Server, email, password string) identity.Session {
	t.Helper()
	resp, body := post(t, srv, "/signup", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	raw, _ := json.Marshal(body)
	var s identity.Session
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

// ===== SIGNUP TESTS =====

func TestSignup_ReturnsSession(t *testing.T) {
	srv := devtest.Start(t)

	s := signup(t, srv, "user@example.com", "secret123")
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.Equal(t, "bearer", s.TokenType)
	assert.Equal(t, 3600, s.ExpiresIn)
	assert.NotZero(t, s.ExpiresAt)
	assert.Equal(t, "user@example.com", s.User.Email)
	assert.NotEmpty(t, s.User.ID)
}

func TestSignup_Errors(t *testing.T) {
	srv := devtest.Start(t)
	signup(t, srv, "taken@example.com", "secret123")

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
		wantMsg    string
	}{
		{"duplicate", "taken@example.com", "another1", http.StatusUnprocessableEntity, "User already registered"},
		{"short password", "new@example.com", "12345", http.StatusUnprocessableEntity, "Password should be at least 6 characters"},
		{"bad email", "not-an-email", "secret123", http.StatusBadRequest, "Unable to validate email address: invalid format"},
		{"long password", "long@example.com", strings.Repeat("p", 73), http.StatusUnprocessableEntity, "Password should be at most 72 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, "/signup", "", map[string]string{"email": tt.email, "password": tt.password})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, body["msg"])
		})
	}
}

// ===== TOKEN TESTS =====

func TestPasswordGrant(t *testing.T) {
	srv := devtest.Start(t)
	signup(t, srv, "user@example.com", "secret123")

	resp, body := post(t, srv, "/token?grant_type=password", "", map[string]string{"email": "user@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])

	resp, body = post(t, srv, "/token?grant_type=password", "", map[string]string{"email": "user@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid login credentials", body["error_description"])

	resp, body = post(t, srv, "/token?grant_type=password", "", map[string]string{"email": "nobody@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid login credentials", body["error_description"], "unknown accounts look like wrong passwords")
}

func TestRefreshGrant_IsSingleUse(t *testing.T) {
	srv := devtest.Start(t)
	s := signup(t, srv, "user@example.com", "secret123")

	resp, body := post(t, srv, "/token?grant_type=refresh_token", "", map[string]string{"refresh_token": s.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, s.RefreshToken, body["refresh_token"])

	resp, body = post(t, srv, "/token?grant_type=refresh_token", "", map[string]string{"refresh_token": s.RefreshToken})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_grant", body["error"])
}

func TestRefreshGrant_RejectsAccessToken(t *testing.T) {
	srv := devtest.Start(t)
	s := signup(t, srv, "user@example.com", "secret123")

	resp, _ := post(t, srv, "/token?grant_type=refresh_token", "", map[string]string{"refresh_token": s.AccessToken})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnsupportedGrant(t *testing.T) {
	srv := devtest.Start(t)
	resp, body := post(t, srv, "/token?grant_type=magic", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_grant_type", body["error"])
}

// ===== LOGOUT / USER TESTS =====

func TestLogout_RevokesRefreshTokens(t *testing.T) {
	srv := devtest.Start(t)
	s := signup(t, srv, "user@example.com", "secret123")

	resp, _ := post(t, srv, "/logout", s.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = post(t, srv, "/token?grant_type=refresh_token", "", map[string]string{"refresh_token": s.RefreshToken})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout_RequiresBearer(t *testing.T) {
	srv := devtest.Start(t)
	resp, body := post(t, srv, "/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["msg"])
}

func TestGetUser(t *testing.T) {
	srv := devtest.Start(t)
	s := signup(t, srv, "user@example.com", "secret123")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/user", nil)
	req.Header.Set("apikey", devtest.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var u identity.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&u))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, s.User.ID, u.ID)
	assert.Equal(t, "authenticated", u.Role)
}

func TestAPIKeyRequired(t *testing.T) {
	srv := devtest.Start(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/signup", bytes.NewReader([]byte(`{}`)))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
