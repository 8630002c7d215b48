package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/service"
	"github.com/sakif/habit-tracker/internal/session"
)

type credentialsForm struct {
	Email string
}

// AuthHandler serves the login, signup and logout forms.
type AuthHandler struct {
	auth   *service.AuthService
	pages  *Renderer
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth *service.AuthService, pages *Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, pages: pages, logger: logger}
}

// HandleLoginForm renders the login form.
//
// HTTP: GET /auth/login
func (h *AuthHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageLogin, view{Title: "Log in", Data: credentialsForm{}})
}

// HandleLogin starts a session and goes to the habit list.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	store, ok := storeFrom(w, r)
	if !ok {
		return
	}

	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if err := h.auth.Login(r.Context(), store, email, password); err != nil {
		h.pages.render(w, r, statusFor(err), pageLogin, view{
			Title: "Log in",
			Alert: failure("Login failed: ", err),
			Data:  credentialsForm{Email: email},
		})
		return
	}

	redirect(w, r, "/habits", session.FlashSuccess, service.LoginSuccessMessage)
}

// HandleSignupForm renders the signup form.
//
// HTTP: GET /auth/signup
func (h *AuthHandler) HandleSignupForm(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageSignup, view{Title: "Sign up", Data: credentialsForm{}})
}

// HandleSignup registers an account and sends the browser to the login
// page, even when the provider already started a session.
//
// HTTP: POST /auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	store, ok := storeFrom(w, r)
	if !ok {
		return
	}

	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if _, err := h.auth.Signup(r.Context(), store, email, password); err != nil {
		h.pages.render(w, r, statusFor(err), pageSignup, view{
			Title: "Sign up",
			Alert: failure("Signup failed: ", err),
			Data:  credentialsForm{Email: email},
		})
		return
	}

	redirect(w, r, session.LoginPath, session.FlashSuccess, service.SignupSuccessMessage)
}

// HandleLogout ends the session. Logout is a POST so a prefetch or a
// cross-site link cannot sign anybody out.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	store, ok := session.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.auth.Logout(r.Context(), store); err != nil {
		h.logger.Warn("logout failed", slog.String("error", err.Error()))
		redirect(w, r, "/", session.FlashError, alert("Logout failed: ", err))
		return
	}
	redirect(w, r, "/", session.FlashInfo, service.LogoutSuccessMessage)
}

// failure prefixes provider and backend errors; a local validation message
// is shown on its own.
func failure(prefix string, err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) {
		return appErr.Message
	}
	return alert(prefix, err)
}
