package session

import (
	"net/http"
	"time"
)

// LoginPath is where the guard sends anonymous visitors.
const LoginPath = "/auth/login"

// LoginRequiredMessage is flashed on the login page after a guard redirect.
const LoginRequiredMessage = "Please log in first"

// Guard withholds protected pages from visitors who are not signed in.
type Guard struct {
	wait     time.Duration
	checking http.Handler
}

// NewGuard creates a Guard that waits up to wait for a Loading Store to
// resolve. checking renders the neutral placeholder shown when it does not;
// nil means a plain "Checking auth..." page.
func NewGuard(wait time.Duration, checking http.Handler) *Guard {
	if checking == nil {
		checking = http.HandlerFunc(plainChecking)
	}
	return &Guard{wait: wait, checking: checking}
}

// Require wraps next. Anonymous visitors are redirected to the login page
// before next runs, so no protected data is fetched for them. While the
// session is still Loading the placeholder is served with a Refresh header
// so the browser asks again shortly.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A browser without a session cookie cannot be signed in.
		store, ok := FromContext(r.Context())
		if !ok {
			g.toLogin(w, r)
			return
		}

		switch store.WaitFor(r.Context(), g.wait).Status {
		case StatusAuthenticated:
			next.ServeHTTP(w, r)
		case StatusLoading:
			w.Header().Set("Refresh", "1")
			w.Header().Set("Cache-Control", "no-store")
			g.checking.ServeHTTP(w, r)
		default:
			g.toLogin(w, r)
		}
	})
}

// toLogin flashes the login-required message and redirects. The flash
// needs a Store, so a cookieless browser gets one here.
func (g *Guard) toLogin(w http.ResponseWriter, r *http.Request) {
	if store, err := Ensure(r.Context()); err == nil {
		store.AddFlash(FlashError, LoginRequiredMessage)
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func plainChecking(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!doctype html><title>Checking auth...</title><p>Checking auth...</p>`))
}
