// Package cli implements habitctl, the terminal client. It drives the same
// identity, session and request layers as the web client; the OS keyring
// plays the part of the browser's local storage.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/sakif/habit-tracker/internal/api"
	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/auth"
	"github.com/sakif/habit-tracker/internal/config"
	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/keyring"
	"github.com/sakif/habit-tracker/internal/kv"
	"github.com/sakif/habit-tracker/internal/service"
	"github.com/sakif/habit-tracker/internal/session"
)

// CLI is the habitctl command tree.
type CLI struct {
	config.Client `embed:""`

	Keyring  string `env:"HABITCTL_KEYRING" default:"habit-tracker" help:"OS keyring service the session is stored under."`
	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"warn" enum:"debug,info,warn,error" help:"Minimum log level."`

	Login   LoginCmd   `cmd:"" help:"Log in with email and password."`
	Signup  SignupCmd  `cmd:"" help:"Create an account."`
	Logout  LogoutCmd  `cmd:"" help:"Log out."`
	Whoami  WhoamiCmd  `cmd:"" help:"Show who is logged in."`
	Habits  HabitsCmd  `cmd:"" help:"Manage your habits."`
	Public  PublicCmd  `cmd:"" help:"List public habits."`
	Profile ProfileCmd `cmd:"" help:"Show or edit your profile."`
}

// Context is handed to every command's Run method.
type Context struct {
	Ctx      context.Context
	Session  *session.Store
	Auth     *service.AuthService
	Habits   *service.HabitService
	Profiles *service.ProfileService
	Prompt   Prompter
	Out      io.Writer
}

// Setup builds the Context for root. The returned func releases the
// session subscription and must be called before exit.
func Setup(ctx context.Context, root *CLI, out io.Writer, logger *slog.Logger) (*Context, func(), error) {
	var storage kv.Store
	if keyring.Available() {
		storage = keyring.New(root.Keyring)
	} else {
		logger.Warn("OS keyring unavailable; the session lasts for this command only")
		storage = kv.NewMemory()
	}

	idOpts := []identity.ClientOption{identity.WithLogger(logger)}
	if root.IdentityJWTSecret != "" {
		verifier, err := auth.NewTokenService(root.IdentityJWTSecret, auth.WithIssuer(""))
		if err != nil {
			return nil, nil, err
		}
		idOpts = append(idOpts, identity.WithVerifier(verifier))
	}

	idClient := identity.NewClient(config.NormalizeURL(root.IdentityURL), root.IdentityAPIKey, idOpts...)
	store := session.NewStore(identity.NewAuth(idClient, storage, identity.WithAuthLogger(logger)), storage, logger)
	backend := api.New(config.NormalizeURL(root.APIURL), store, api.WithLogger(logger))

	return NewContext(ctx, store, backend, HuhPrompter{}, out, logger), store.Close, nil
}

// NewContext assembles a Context from its parts.
func NewContext(ctx context.Context, store *session.Store, backend service.Backend, prompt Prompter, out io.Writer, logger *slog.Logger) *Context {
	return &Context{
		Ctx:      ctx,
		Session:  store,
		Auth:     service.NewAuthService(logger),
		Habits:   service.NewHabitService(backend, logger),
		Profiles: service.NewProfileService(backend, logger),
		Prompt:   prompt,
		Out:      out,
	}
}

// requireLogin fails with "Please log in first" unless a session exists.
// Commands call it before sending any request.
func (c *Context) requireLogin() (session.Snapshot, error) {
	snap, err := c.Session.Wait(c.Ctx)
	if err != nil {
		return snap, err
	}
	if !snap.Authenticated() {
		return snap, apperror.Unauthorized(session.LoginRequiredMessage)
	}
	return snap, nil
}
