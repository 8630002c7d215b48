// Package repository declares the persistence interfaces.
//
// Two concerns live here:
//   - BrowserStorage: the per-browser key/value "local storage" the web client
//     persists sessions and the cached access token into (sqlite or redis).
//   - UserRepository: accounts of the development identity provider.
package repository

import (
	"context"

	"github.com/sakif/habit-tracker/internal/model"
)

// BrowserStorage stores string items per browser session id.
//
// GetItem returns an error wrapping apperror.ErrNotFound for a missing item.
// RemoveItem of a missing item is not an error.
type BrowserStorage interface {
	GetItem(ctx context.Context, sid, key string) (string, error)
	SetItem(ctx context.Context, sid, key, value string) error
	RemoveItem(ctx context.Context, sid, key string) error
	Close() error
}

// UserRepository stores development identity provider accounts.
//
// Create returns apperror.ErrConflict when the email is taken; the getters
// return apperror.ErrNotFound for unknown accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
