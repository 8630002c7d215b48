// Package service holds the page logic shared by the web client and the
// terminal client.
//
//	Handler / CLI command → Service → api.Client → REST backend
//	                               ↘ session.Store → identity provider
//
// Services validate at the submission boundary and return domain errors
// (apperror). They know nothing about HTTP responses or terminals, so both
// front ends surface the same messages.
package service

import (
	"context"

	"github.com/sakif/habit-tracker/internal/api"
)

// Backend is the request surface of the REST backend. *api.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, path string, opts ...api.CallOption) (*api.Body, error)
	Post(ctx context.Context, path string, body any, opts ...api.CallOption) (*api.Body, error)
	Put(ctx context.Context, path string, body any, opts ...api.CallOption) (*api.Body, error)
	Delete(ctx context.Context, path string, opts ...api.CallOption) (*api.Body, error)
}

var _ Backend = (*api.Client)(nil)
