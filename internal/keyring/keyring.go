// Package keyring stores the terminal client's session state in the OS
// keyring (macOS Keychain, Secret Service, Windows Credential Manager).
package keyring

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/kv"
)

// DefaultService is the keyring service name entries are filed under.
const DefaultService = "habit-tracker"

var _ kv.Store = (*Store)(nil)

// Store is a kv.Store where every key is a keyring entry of one service.
type Store struct {
	service string
}

// New returns a Store for service; "" means DefaultService.
func New(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", apperror.NotFound("keyring entry", key)
		}
		return "", fmt.Errorf("keyring: reading %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("keyring: writing %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring: deleting %s: %w", key, err)
	}
	return nil
}

// Available reports whether the OS keyring can be reached.
func Available() bool {
	_, err := keyring.Get(DefaultService, "availability-probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
