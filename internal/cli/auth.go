package cli

import (
	"fmt"

	"github.com/sakif/habit-tracker/internal/service"
)

// LoginCmd signs in with email and password, prompting for what is missing.
type LoginCmd struct {
	Email    string `arg:"" optional:"" help:"Account email (prompted when omitted)."`
	Password string `env:"HABITCTL_PASSWORD" help:"Password (prompted when omitted)."`
}

func (c *LoginCmd) Run(ctx *Context) error {
	email, password, err := credentials(ctx, c.Email, c.Password)
	if err != nil {
		return err
	}
	if err := ctx.Auth.Login(ctx.Ctx, ctx.Session, email, password); err != nil {
		return failed("Login failed: ", err)
	}
	printSuccess(ctx.Out, service.LoginSuccessMessage)
	return nil
}

// SignupCmd creates an account. Some providers sign the new user in at
// once; others ask them to confirm their email first.
type SignupCmd struct {
	Email    string `arg:"" optional:"" help:"Account email (prompted when omitted)."`
	Password string `env:"HABITCTL_PASSWORD" help:"Password (prompted when omitted)."`
}

func (c *SignupCmd) Run(ctx *Context) error {
	email, password, err := credentials(ctx, c.Email, c.Password)
	if err != nil {
		return err
	}
	signedIn, err := ctx.Auth.Signup(ctx.Ctx, ctx.Session, email, password)
	if err != nil {
		return failed("Signup failed: ", err)
	}
	if signedIn {
		printSuccess(ctx.Out, "Signup success! You are now logged in.")
		return nil
	}
	printSuccess(ctx.Out, service.SignupSuccessMessage)
	return nil
}

// LogoutCmd signs out and forgets the stored session.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *Context) error {
	if err := ctx.Auth.Logout(ctx.Ctx, ctx.Session); err != nil {
		return failed("Logout failed: ", err)
	}
	printSuccess(ctx.Out, service.LogoutSuccessMessage)
	return nil
}

// WhoamiCmd prints the signed-in email, or that nobody is signed in.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx *Context) error {
	snap, err := ctx.Session.Wait(ctx.Ctx)
	if err != nil {
		return err
	}
	if !snap.Authenticated() {
		fmt.Fprintln(ctx.Out, mutedStyle.Render("Not logged in."))
		return nil
	}
	fmt.Fprintf(ctx.Out, "Logged in as %s\n", nameStyle.Render(snap.Email()))
	return nil
}

// credentials prompts for whatever was not given on the command line.
func credentials(ctx *Context, email, password string) (string, string, error) {
	var err error
	if email == "" {
		if email, err = ctx.Prompt.Input("Email", false); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = ctx.Prompt.Input("Password", true); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}
