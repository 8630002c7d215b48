package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/habit-tracker/internal/api"
	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/session"
)

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error to the status of the page that shows it.
//
// Backend failures keep the backend's status (a 500 traceback stays a 500,
// proxied as 502). Domain errors map the way the API layer would:
// validation 422, not-found 404, and so on.
func statusFor(err error) int {
	if s := api.StatusOf(err); s != 0 {
		if s >= http.StatusInternalServerError {
			return http.StatusBadGateway
		}
		return s
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrAuth), errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	}
	// Transport failures: the backend or provider could not be reached.
	return http.StatusBadGateway
}

// alert builds the visible error text: prefix plus the server's detail.
func alert(prefix string, err error) string {
	return prefix + apperror.Message(err)
}

// storeFrom returns the browser's session Store, creating it (and the
// session cookie) for a browser that has none yet.
func storeFrom(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	store, err := session.Ensure(r.Context())
	switch {
	case errors.Is(err, session.ErrClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return nil, false
	case err != nil:
		slog.Error("request has no session store", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return store, true
}

// redirect flashes message (if any) and sends a 303 to path.
func redirect(w http.ResponseWriter, r *http.Request, path, kind, message string) {
	if message != "" {
		if store, ok := session.FromContext(r.Context()); ok {
			store.AddFlash(kind, message)
		}
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
