package devprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/auth"
	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/model"
)

const invalidCredentials = "Invalid login credentials"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignup creates an account and signs it in.
//
// HTTP: POST /signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMsg(w, http.StatusBadRequest, "Could not read signup params")
		return
	}

	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		writeMsg(w, http.StatusBadRequest, "Unable to validate email address: invalid format")
		return
	}
	if err := s.passwords.CheckStrength(in.Password); err != nil {
		writeMsg(w, http.StatusUnprocessableEntity, passwordMessage(err))
		return
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrPasswordTooLong) {
			s.logger.Error("hashing password", slog.String("error", err.Error()))
			writeMsg(w, http.StatusInternalServerError, "Database error saving new user")
			return
		}
		writeMsg(w, http.StatusUnprocessableEntity, passwordMessage(err))
		return
	}

	user := &model.User{Email: email, PasswordHash: hash}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			writeMsg(w, http.StatusUnprocessableEntity, "User already registered")
			return
		}
		s.logger.Error("creating user", slog.String("error", err.Error()))
		writeMsg(w, http.StatusInternalServerError, "Database error saving new user")
		return
	}

	s.logger.Info("user signed up", slog.String("user_id", user.ID), slog.String("email", user.Email))
	s.writeSession(w, user)
}

// passwordMessage is what a signup form shows for a rejected password.
func passwordMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Sprintf("Password should be at least %d characters", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "Password should be at most 72 bytes"
	default:
		return "Password is not acceptable"
	}
}

// handleToken dispatches on grant_type.
//
// HTTP: POST /token?grant_type=password|refresh_token
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		s.passwordGrant(w, r)
	case "refresh_token":
		s.refreshGrant(w, r)
	default:
		writeGrantError(w, "unsupported_grant_type", "Unsupported grant type: "+grant)
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeGrantError(w, "invalid_request", "Could not read password grant params")
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeGrantError(w, "invalid_grant", invalidCredentials)
			return
		}
		s.logger.Error("looking up user", slog.String("error", err.Error()))
		writeMsg(w, http.StatusInternalServerError, "Database error querying schema")
		return
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		writeGrantError(w, "invalid_grant", invalidCredentials)
		return
	}

	s.writeSession(w, user)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken == "" {
		writeGrantError(w, "invalid_request", "refresh_token required")
		return
	}

	c, err := s.tokens.ValidateUse(in.RefreshToken, auth.UseRefresh)
	if err != nil {
		writeGrantError(w, "invalid_grant", "Invalid Refresh Token: "+err.Error())
		return
	}
	if !s.spendRefresh(c.Subject, c.ID) {
		writeGrantError(w, "invalid_grant", "Invalid Refresh Token: Already Used")
		return
	}

	user, err := s.users.GetUserByID(r.Context(), c.Subject)
	if err != nil {
		writeGrantError(w, "invalid_grant", "Invalid Refresh Token: User Not Found")
		return
	}

	s.writeSession(w, user)
}

// handleLogout revokes every refresh token of the caller.
//
// HTTP: POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClaimsFromContext(r.Context())

	s.mu.Lock()
	delete(s.refresh, c.Subject)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// handleUser returns the caller's account.
//
// HTTP: GET /user
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClaimsFromContext(r.Context())

	user, err := s.users.GetUserByID(r.Context(), c.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeMsg(w, http.StatusNotFound, "User not found")
			return
		}
		writeMsg(w, http.StatusInternalServerError, "Database error finding user")
		return
	}

	writeJSON(w, http.StatusOK, toIdentityUser(user))
}

// writeSession issues an access/refresh pair for user.
func (s *Server) writeSession(w http.ResponseWriter, user *model.User) {
	access, exp, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		writeMsg(w, http.StatusInternalServerError, "Error generating access token")
		return
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Email)
	if err != nil {
		writeMsg(w, http.StatusInternalServerError, "Error generating refresh token")
		return
	}
	if err := s.trackRefresh(user.ID, refresh); err != nil {
		writeMsg(w, http.StatusInternalServerError, "Error generating refresh token")
		return
	}

	writeJSON(w, http.StatusOK, identity.Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.AccessTTL() / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         toIdentityUser(user),
	})
}

func (s *Server) trackRefresh(userID, token string) error {
	c, err := auth.ParseUnverified(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresh[userID] == nil {
		s.refresh[userID] = make(map[string]struct{})
	}
	s.refresh[userID][c.ID] = struct{}{}
	return nil
}

// spendRefresh removes jti from the live set and reports whether it was there.
func (s *Server) spendRefresh(userID, jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.refresh[userID]
	if _, ok := live[jti]; !ok {
		return false
	}
	delete(live, jti)
	return true
}

func toIdentityUser(u *model.User) identity.User {
	return identity.User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      auth.RoleAuthenticated,
		Aud:       auth.RoleAuthenticated,
		CreatedAt: u.CreatedAt,
	}
}
