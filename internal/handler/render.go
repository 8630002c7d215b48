// Package handler contains the HTTP handlers of the web client.
//
// Every page is server-rendered from the embedded templates in package web.
// A handler reads the browser's session.Store from the request context,
// calls one service, and either renders a page or redirects with a flash:
//
//	loading -> loaded | errored      (GET)
//	saving  -> saved  | save-errored (POST)
//
// Errors become a visible alert carrying the server's detail message.
// Successes become a flash on the page the browser is redirected to.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/habit-tracker/internal/session"
)

// Page templates, each parsed together with base.html.
const (
	pageHome        = "home.html"
	pageLogin       = "login.html"
	pageSignup      = "signup.html"
	pageHabits      = "habits.html"
	pageHabitForm   = "habit_form.html"
	pageHabitDelete = "habit_delete.html"
	pagePublic      = "public.html"
	pageProfile     = "profile.html"
	pageChecking    = "checking.html"
)

var pages = []string{
	pageHome, pageLogin, pageSignup, pageHabits, pageHabitForm,
	pageHabitDelete, pagePublic, pageProfile, pageChecking,
}

var funcs = template.FuncMap{
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 3:04 PM")
	},
}

// view is what every template receives.
type view struct {
	Title   string
	Session session.Snapshot
	Flashes []session.Flash
	Alert   string
	Data    any
}

// Renderer executes page templates.
//
// Templates are parsed once at startup. Each page gets its own set because
// every page defines "content".
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses templates/base.html plus every page from fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		pages:  make(map[string]*template.Template, len(pages)),
		logger: logger,
	}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(fsys, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// render writes page with status. The session snapshot and the queued
// flashes of the request's Store are filled in here, so flashes are consumed
// only by a page that is actually shown.
//
// The page is rendered into a buffer first: a template error must still be
// able to answer 500.
func (rn *Renderer) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	v.Session = session.Snapshot{Status: session.StatusAnonymous}
	if store, ok := session.FromContext(r.Context()); ok {
		v.Session = store.Snapshot()
		v.Flashes = store.PopFlashes()
	}

	tmpl, ok := rn.pages[page]
	if !ok {
		rn.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", v); err != nil {
		rn.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Checking is the neutral placeholder the guard serves while a session is
// still loading.
func (rn *Renderer) Checking() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rn.render(w, r, http.StatusOK, pageChecking, view{Title: "Checking auth"})
	})
}
