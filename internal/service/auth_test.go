package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/habit-tracker/internal/apperror"
)

type mockSession struct {
	signIns, signUps, signOuts int
	email, password            string
	signedIn                   bool
	err                        error
}

func (m *mockSession) SignIn(_ context.Context, email, password string) error {
	m.signIns++
	m.email, m.password = email, password
	return m.err
}

func (m *mockSession) SignUp(_ context.Context, email, password string) (bool, error) {
	m.signUps++
	m.email, m.password = email, password
	return m.signedIn, m.err
}

func (m *mockSession) SignOut(context.Context) error {
	m.signOuts++
	return m.err
}

func TestLogin(t *testing.T) {
	sess := &mockSession{}
	svc := NewAuthService(discardLogger())

	require.NoError(t, svc.Login(context.Background(), sess, "  a@b.co ", "secret1"))
	assert.Equal(t, 1, sess.signIns)
	assert.Equal(t, "a@b.co", sess.email)
	assert.Equal(t, "secret1", sess.password, "passwords are not trimmed")
}

func TestLogin_RequiresBothFields(t *testing.T) {
	tests := []struct {
		name, email, password, wantField string
	}{
		{"no email", "", "pw", "email"},
		{"blank email", "   ", "pw", "email"},
		{"no password", "a@b.co", "", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &mockSession{}
			svc := NewAuthService(discardLogger())

			err := svc.Login(context.Background(), sess, tt.email, tt.password)
			require.Error(t, err)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Zero(t, sess.signIns)
		})
	}
}

func TestLogin_ProviderMessage(t *testing.T) {
	sess := &mockSession{err: apperror.AuthFailed("Invalid login credentials")}
	svc := NewAuthService(discardLogger())

	err := svc.Login(context.Background(), sess, "a@b.co", "wrong!")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", apperror.Message(err))
}

func TestSignup(t *testing.T) {
	sess := &mockSession{signedIn: true}
	svc := NewAuthService(discardLogger())

	signedIn, err := svc.Signup(context.Background(), sess, "a@b.co", "secret1")
	require.NoError(t, err)
	assert.True(t, signedIn)
	assert.Equal(t, 1, sess.signUps)

	sess = &mockSession{err: apperror.AuthFailed("User already registered")}
	signedIn, err = svc.Signup(context.Background(), sess, "a@b.co", "secret1")
	require.Error(t, err)
	assert.False(t, signedIn)
	assert.Equal(t, "User already registered", apperror.Message(err))

	_, err = svc.Signup(context.Background(), &mockSession{}, "", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestLogout(t *testing.T) {
	sess := &mockSession{}
	svc := NewAuthService(discardLogger())

	require.NoError(t, svc.Logout(context.Background(), sess))
	assert.Equal(t, 1, sess.signOuts)
}
