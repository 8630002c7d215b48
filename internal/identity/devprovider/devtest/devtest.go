// Package devtest starts an in-process development identity provider for
// tests of the packages that talk to one.
package devtest

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/habit-tracker/internal/auth"
	"github.com/sakif/habit-tracker/internal/identity/devprovider"
	"github.com/sakif/habit-tracker/internal/repository/sqlite"
)

// Secret is the JWT secret the test provider signs with.
const Secret = "devtest-secret-at-least-16-chars"

// APIKey is the key the test provider requires.
const APIKey = "devtest-anon-key"

// Start runs a provider backed by in-memory sqlite until the test ends.
func Start(t testing.TB, opts ...auth.TokenOption) *httptest.Server {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("devtest: opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(Secret, opts...)
	if err != nil {
		t.Fatalf("devtest: token service: %v", err)
	}

	srv := devprovider.New(db, auth.NewPasswordServiceForTest(bcrypt.MinCost), tokens, APIKey, slog.New(slog.DiscardHandler))
	hs := httptest.NewServer(srv.Routes())
	t.Cleanup(hs.Close)
	return hs
}
