package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/habit-tracker/internal/config"
	"github.com/sakif/habit-tracker/internal/identity/devprovider/devtest"
	sqliteRepo "github.com/sakif/habit-tracker/internal/repository/sqlite"
)

// =========================================================================
// FAKE BACKEND
// =========================================================================
//
// fakeBackend stands in for the habit REST backend. It keeps habits and a
// profile in memory and records every request it receives.

type backendRequest struct {
	Method, Path, Auth, Body string
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []backendRequest
	habits   []map[string]any
	nextID   int
	profile  map[string]any
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{nextID: 1}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, backendRequest{
		Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: string(raw),
	})

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/habits":
		_ = json.NewEncoder(w).Encode(b.habitList())
	case r.Method == http.MethodGet && r.URL.Path == "/habits/public":
		_ = json.NewEncoder(w).Encode(b.habitList())
	case r.Method == http.MethodPost && r.URL.Path == "/habits":
		var h map[string]any
		_ = json.Unmarshal(raw, &h)
		h["id"] = b.nextID
		h["user_id"] = "u1"
		h["created_at"] = "2024-01-01T00:00:00Z"
		b.nextID++
		b.habits = append(b.habits, h)
		_, _ = io.WriteString(w, `{"ok":true}`)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/habits/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/habits/"))
		kept := b.habits[:0]
		for _, h := range b.habits {
			if h["id"] != id {
				kept = append(kept, h)
			}
		}
		b.habits = kept
		_, _ = io.WriteString(w, `{"ok":true,"data":[]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/profiles/me":
		if b.profile == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Profile not found"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(b.profile)
	case r.Method == http.MethodPut && r.URL.Path == "/profiles/me":
		_ = json.Unmarshal(raw, &b.profile)
		_, _ = io.WriteString(w, `{"ok":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}
}

func (b *fakeBackend) habitList() []map[string]any {
	if b.habits == nil {
		return []map[string]any{}
	}
	return b.habits
}

func (b *fakeBackend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *fakeBackend) last(method, path string) backendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Method == method && b.requests[i].Path == path {
			return b.requests[i]
		}
	}
	return backendRequest{}
}

// =========================================================================
// HARNESS
// =========================================================================

type harness struct {
	backend *fakeBackend
	web     *httptest.Server
	client  *http.Client
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()

	idp := devtest.Start(t)
	backend, backendSrv := newFakeBackend(t)

	cfg := &config.Config{
		Port: 3000,
		Client: config.Client{
			APIURL:            backendSrv.URL,
			IdentityURL:       idp.URL,
			IdentityAPIKey:    devtest.APIKey,
			IdentityJWTSecret: devtest.Secret,
		},
		StorageDriver:  config.DriverSQLite,
		DBPath:         ":memory:",
		SessionIdleTTL: time.Hour,
		GuardWait:      5 * time.Second,
		AuthRate:       100,
		AuthBurst:      100,
	}
	for _, f := range tweak {
		f(cfg)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	require.NoError(t, err)

	s, err := newServer(cfg, db, slog.New(slog.DiscardHandler), nil)
	require.NoError(t, err)

	web := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		web.Close()
		s.registry.Close()
		db.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &harness{backend: backend, web: web, client: client}
}

type page struct {
	status   int
	location string
	body     string
}

func (h *harness) get(t *testing.T, path string) page {
	t.Helper()
	resp, err := h.client.Get(h.web.URL + path)
	require.NoError(t, err)
	return read(t, resp)
}

func (h *harness) post(t *testing.T, path string, form url.Values) page {
	t.Helper()
	resp, err := h.client.PostForm(h.web.URL+path, form)
	require.NoError(t, err)
	return read(t, resp)
}

func read(t *testing.T, resp *http.Response) page {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (h *harness) signUpAndLogIn(t *testing.T) {
	t.Helper()
	creds := url.Values{"email": {"user@example.com"}, "password": {"secret123"}}

	p := h.post(t, "/auth/signup", creds)
	require.Equal(t, http.StatusSeeOther, p.status)
	require.Equal(t, "/auth/login", p.location)

	p = h.post(t, "/auth/login", creds)
	require.Equal(t, http.StatusSeeOther, p.status, p.body)
	require.Equal(t, "/habits", p.location)
}

// =========================================================================
// TESTS
// =========================================================================

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	p := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, p.status)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, p.body)
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t)

	p := h.get(t, "/static/style.css")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "body")
}

func TestHomeAndPublicNeedNoLogin(t *testing.T) {
	h := newHarness(t)

	p := h.get(t, "/")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Welcome to Habit Tracker")

	p = h.get(t, "/public")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "No public habits yet.")
	assert.Empty(t, h.backend.last(http.MethodGet, "/habits/public").Auth)
}

func TestAnonymousBrowsingKeepsNoSession(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/public", "/auth/login", "/auth/signup"} {
		resp, err := h.client.Get(h.web.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Empty(t, resp.Cookies(), path)
	}

	p := h.get(t, "/healthz")
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, p.body)
}

func TestProtectedPagesRedirectBeforeFetching(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/habits", "/habits/new", "/habits/1", "/profile"} {
		p := h.get(t, path)
		assert.Equal(t, http.StatusSeeOther, p.status, path)
		assert.Equal(t, "/auth/login", p.location, path)
	}

	assert.Zero(t, h.backend.count(http.MethodGet, "/habits"))
	assert.Zero(t, h.backend.count(http.MethodGet, "/profiles/me"))

	p := h.get(t, "/auth/login")
	assert.Contains(t, p.body, "Please log in first")
}

func TestLoginThenListSendsBearer(t *testing.T) {
	h := newHarness(t)
	h.backend.habits = []map[string]any{
		{"id": 1, "name": "Run", "description": "", "is_public": false, "created_at": "2024-01-01T00:00:00Z"},
	}
	h.signUpAndLogIn(t)

	p := h.get(t, "/habits")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Logged in successfully!")
	assert.Contains(t, p.body, "Run")
	assert.Contains(t, p.body, "Hi, user@example.com")

	auth := h.backend.last(http.MethodGet, "/habits").Auth
	assert.True(t, strings.HasPrefix(auth, "Bearer "), auth)
	assert.Greater(t, len(auth), len("Bearer "))
}

func TestLoginFailureShowsProviderMessage(t *testing.T) {
	h := newHarness(t)

	p := h.post(t, "/auth/login", url.Values{"email": {"nobody@example.com"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusUnauthorized, p.status)
	assert.Contains(t, p.body, "Login failed: Invalid login credentials")
	assert.Contains(t, p.body, "nobody@example.com", "the email is kept in the form")
}

func TestCreateHabit(t *testing.T) {
	h := newHarness(t)
	h.signUpAndLogIn(t)

	p := h.post(t, "/habits/new", url.Values{"name": {"Run"}, "description": {"5k"}, "is_public": {"on"}})
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/habits", p.location)
	assert.JSONEq(t, `{"name":"Run","description":"5k","is_public":true}`, h.backend.last(http.MethodPost, "/habits").Body)

	p = h.get(t, "/habits")
	assert.Contains(t, p.body, "Habit created successfully!")
	assert.Contains(t, p.body, "5k")
}

func TestCreateHabitBlankNameIsNeverSent(t *testing.T) {
	h := newHarness(t)
	h.signUpAndLogIn(t)

	p := h.post(t, "/habits/new", url.Values{"name": {"  "}, "description": {"kept"}})
	assert.Equal(t, http.StatusUnprocessableEntity, p.status)
	assert.Contains(t, p.body, "Please enter a name")
	assert.Contains(t, p.body, "kept")
	assert.Zero(t, h.backend.count(http.MethodPost, "/habits"))
}

func TestDeleteHabitAsksFirst(t *testing.T) {
	h := newHarness(t)
	h.backend.habits = []map[string]any{
		{"id": 1, "name": "Run", "description": "", "is_public": false, "created_at": "2024-01-01T00:00:00Z"},
		{"id": 2, "name": "Read", "description": "", "is_public": false, "created_at": "2024-01-01T00:00:00Z"},
	}
	h.signUpAndLogIn(t)

	p := h.get(t, "/habits/2/delete")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Delete this habit?")
	assert.Zero(t, h.backend.count(http.MethodDelete, "/habits/2"))

	p = h.post(t, "/habits/2/delete", nil)
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, 1, h.backend.count(http.MethodDelete, "/habits/2"))

	p = h.get(t, "/habits")
	assert.Contains(t, p.body, "Run")
	assert.NotContains(t, p.body, "Read")
}

func TestEditUnknownHabit(t *testing.T) {
	h := newHarness(t)
	h.signUpAndLogIn(t)

	p := h.get(t, "/habits/42")
	assert.Equal(t, http.StatusNotFound, p.status)
	assert.Contains(t, p.body, "Habit not found")

	p = h.get(t, "/habits/abc")
	assert.Equal(t, http.StatusNotFound, p.status)
}

func TestProfileIsCreatedOnFirstVisit(t *testing.T) {
	h := newHarness(t)
	h.signUpAndLogIn(t)

	p := h.get(t, "/profile")
	require.Equal(t, http.StatusOK, p.status)
	assert.NotContains(t, p.body, "Error loading profile")
	assert.Contains(t, p.body, "Save Profile")

	assert.Equal(t, 2, h.backend.count(http.MethodGet, "/profiles/me"))
	assert.Equal(t, 1, h.backend.count(http.MethodPut, "/profiles/me"))
	assert.JSONEq(t, `{"username":"","avatar_url":"","bio":""}`, h.backend.last(http.MethodPut, "/profiles/me").Body)

	p = h.post(t, "/profile", url.Values{"username": {"sakif"}, "avatar_url": {""}, "bio": {"runner"}})
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.JSONEq(t, `{"username":"sakif","avatar_url":"","bio":"runner"}`, h.backend.last(http.MethodPut, "/profiles/me").Body)

	p = h.get(t, "/profile")
	assert.Contains(t, p.body, "Profile updated successfully!")
	assert.Contains(t, p.body, `value="sakif"`)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.signUpAndLogIn(t)

	p := h.post(t, "/auth/logout", nil)
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/", p.location)

	p = h.get(t, "/habits")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/auth/login", p.location)
}

func TestAuthFormsAreRateLimited(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.AuthRate = 0.001
		c.AuthBurst = 2
	})

	form := url.Values{"email": {"a@example.com"}, "password": {"whatever"}}
	for i := 0; i < 2; i++ {
		p := h.post(t, "/auth/login", form)
		assert.NotEqual(t, http.StatusTooManyRequests, p.status)
	}
	p := h.post(t, "/auth/login", form)
	assert.Equal(t, http.StatusTooManyRequests, p.status)
}
