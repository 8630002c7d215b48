package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/habit-tracker/internal/apperror"
)

// User-facing outcomes of the auth forms.
const (
	LoginSuccessMessage  = "Logged in successfully!"
	SignupSuccessMessage = "Signup success! You can now log in."
	LogoutSuccessMessage = "Logged out."
)

// Session is the part of a session.Store the auth forms drive.
type Session interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) (bool, error)
	SignOut(ctx context.Context) error
}

// AuthService validates credentials and drives a client's session.
type AuthService struct {
	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(logger *slog.Logger) *AuthService {
	return &AuthService{logger: logger}
}

// Login signs the client in. Provider failures come back with the
// provider's message ("Invalid login credentials").
func (s *AuthService) Login(ctx context.Context, sess Session, email, password string) error {
	email, err := validateCredentials(email, password)
	if err != nil {
		return err
	}
	if err := sess.SignIn(ctx, email, password); err != nil {
		s.logger.Info("login failed", slog.String("email", email), slog.String("reason", apperror.Message(err)))
		return err
	}
	s.logger.Info("login succeeded", slog.String("email", email))
	return nil
}

// Signup registers an account. signedIn is true when the provider also
// started a session.
func (s *AuthService) Signup(ctx context.Context, sess Session, email, password string) (signedIn bool, err error) {
	email, err = validateCredentials(email, password)
	if err != nil {
		return false, err
	}
	signedIn, err = sess.SignUp(ctx, email, password)
	if err != nil {
		s.logger.Info("signup failed", slog.String("email", email), slog.String("reason", apperror.Message(err)))
		return false, err
	}
	s.logger.Info("signup succeeded", slog.String("email", email), slog.Bool("signed_in", signedIn))
	return signedIn, nil
}

// Logout ends the client's session.
func (s *AuthService) Logout(ctx context.Context, sess Session) error {
	return sess.SignOut(ctx)
}

func validateCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "Please enter your email")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "Please enter your password")
	}
	return email, nil
}
