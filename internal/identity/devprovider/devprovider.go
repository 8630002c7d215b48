// Package devprovider is a small GoTrue-compatible identity provider for
// local development and tests.
//
// It answers the subset of the hosted provider's REST API the clients use:
//
//	POST /signup                          {email, password} → session
//	POST /token?grant_type=password       {email, password} → session
//	POST /token?grant_type=refresh_token  {refresh_token}   → session
//	POST /logout                          Bearer access token → 204
//	GET  /user                            Bearer access token → user
//
// Accounts live in a repository.UserRepository (sqlite), passwords are
// bcrypt hashes and tokens are HS256 JWTs. Sign-up confirms accounts
// immediately and returns a session, like a hosted project with email
// confirmation turned off.
package devprovider

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/habit-tracker/internal/auth"
	"github.com/sakif/habit-tracker/internal/repository"
)

// Server holds the provider's dependencies and its refresh token registry.
type Server struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	apiKey    string
	logger    *slog.Logger

	// refresh holds the jti of every refresh token not yet spent or revoked,
	// per user. Refresh tokens are single use; logout drops all of a user's.
	mu      sync.Mutex
	refresh map[string]map[string]struct{}
}

// New creates a Server. apiKey, when non-empty, must be sent in the
// "apikey" header of every request.
func New(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	apiKey string,
	logger *slog.Logger,
) *Server {
	return &Server{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		apiKey:    apiKey,
		logger:    logger,
		refresh:   make(map[string]map[string]struct{}),
	}
}

// Routes mounts the provider's endpoints on a chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requireAPIKey)

	r.Post("/signup", s.handleSignup)
	r.Post("/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(s.tokens))
		r.Post("/logout", s.handleLogout)
		r.Get("/user", s.handleUser)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("apikey") != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Invalid API key",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeMsg writes the {"code", "msg"} error shape GoTrue uses for most errors.
func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "msg": msg})
}

// writeGrantError writes the OAuth-style error shape of /token.
func writeGrantError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
