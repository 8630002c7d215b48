package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/habit-tracker/internal/api"
)

// =========================================================================
// MOCK BACKEND
// =========================================================================
//
// mockBackend implements Backend and records every call. Responses are
// queued per "METHOD path"; an empty queue answers 200 {"ok":true}.

type call struct {
	Method string
	Path   string
	Body   string
	Auth   bool
}

type reply struct {
	status int
	body   string
}

type mockBackend struct {
	calls   []call
	replies map[string][]reply
}

func newMockBackend() *mockBackend {
	return &mockBackend{replies: make(map[string][]reply)}
}

func (m *mockBackend) on(method, path string, status int, body string) {
	key := method + " " + path
	m.replies[key] = append(m.replies[key], reply{status: status, body: body})
}

func (m *mockBackend) count(method, path string) int {
	n := 0
	for _, c := range m.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (m *mockBackend) Get(_ context.Context, path string, opts ...api.CallOption) (*api.Body, error) {
	return m.handle(http.MethodGet, path, nil, opts)
}

func (m *mockBackend) Post(_ context.Context, path string, body any, opts ...api.CallOption) (*api.Body, error) {
	return m.handle(http.MethodPost, path, body, opts)
}

func (m *mockBackend) Put(_ context.Context, path string, body any, opts ...api.CallOption) (*api.Body, error) {
	return m.handle(http.MethodPut, path, body, opts)
}

func (m *mockBackend) Delete(_ context.Context, path string, opts ...api.CallOption) (*api.Body, error) {
	return m.handle(http.MethodDelete, path, nil, opts)
}

func (m *mockBackend) handle(method, path string, body any, opts []api.CallOption) (*api.Body, error) {
	c := call{Method: method, Path: path, Auth: len(opts) == 0}
	if body != nil {
		b, _ := json.Marshal(body)
		c.Body = string(b)
	}
	m.calls = append(m.calls, c)

	r := reply{status: http.StatusOK, body: `{"ok":true}`}
	key := method + " " + path
	if q := m.replies[key]; len(q) > 0 {
		r, m.replies[key] = q[0], q[1:]
	}

	trimmed := strings.TrimSpace(r.body)
	parsed := &api.Body{
		Raw:    []byte(r.body),
		IsJSON: strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["),
	}
	if r.status < 200 || r.status > 299 {
		return nil, &api.Error{Method: method, Path: path, Status: r.status, Body: parsed}
	}
	return parsed, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
