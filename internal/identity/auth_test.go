package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/identity/devprovider/devtest"
	"github.com/sakif/habit-tracker/internal/kv"
)

func newAuth(t *testing.T, opts ...identity.AuthOption) (*identity.Auth, *identity.Client, *kv.Memory) {
	t.Helper()
	srv := devtest.Start(t)
	c := newClient(t, srv)
	store := kv.NewMemory()
	return identity.NewAuth(c, store, opts...), c, store
}

func recv(t *testing.T, ch <-chan identity.Event) identity.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return identity.Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan identity.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.Kind)
	default:
	}
}

func TestAuth_NoSession(t *testing.T) {
	a, _, _ := newAuth(t)

	s, err := a.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestAuth_SignUpSignInSignOut(t *testing.T) {
	a, _, store := newAuth(t)
	ctx := context.Background()

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	s, err := a.SignUp(ctx, "user@example.com", "secret123")
	require.NoError(t, err)
	require.NotNil(t, s)
	ev := recv(t, events)
	assert.Equal(t, identity.EventSignedIn, ev.Kind)
	assert.Equal(t, s.AccessToken, ev.Session.AccessToken)

	s, err = a.SignInWithPassword(ctx, "user@example.com", "secret123")
	require.NoError(t, err)
	ev = recv(t, events)
	assert.Equal(t, identity.EventSignedIn, ev.Kind)

	stored, err := a.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, s.AccessToken, stored.AccessToken)
	assertNoEvent(t, events)

	require.NoError(t, a.SignOut(ctx))
	ev = recv(t, events)
	assert.Equal(t, identity.EventSignedOut, ev.Kind)
	assert.Nil(t, ev.Session)

	_, ok, err := kv.Lookup(ctx, store, identity.StorageKey)
	require.NoError(t, err)
	assert.False(t, ok, "session removed from storage")
}

func TestAuth_FailedSignInChangesNothing(t *testing.T) {
	a, _, store := newAuth(t)
	ctx := context.Background()

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	_, err := a.SignInWithPassword(ctx, "nobody@example.com", "secret123")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
	assertNoEvent(t, events)

	_, ok, _ := kv.Lookup(ctx, store, identity.StorageKey)
	assert.False(t, ok)
}

func TestAuth_RefreshesExpiringSession(t *testing.T) {
	later := time.Now().Add(2 * time.Hour)
	a, _, _ := newAuth(t, identity.WithClock(func() time.Time { return later }))
	ctx := context.Background()

	first, err := a.SignUp(ctx, "user@example.com", "secret123")
	require.NoError(t, err)

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	s, err := a.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NotEqual(t, first.RefreshToken, s.RefreshToken)

	ev := recv(t, events)
	assert.Equal(t, identity.EventTokenRefreshed, ev.Kind)
	assert.Equal(t, s.AccessToken, ev.Session.AccessToken)
}

func TestAuth_RejectedRefreshSignsOut(t *testing.T) {
	later := time.Now().Add(2 * time.Hour)
	a, c, store := newAuth(t, identity.WithClock(func() time.Time { return later }))
	ctx := context.Background()

	s, err := a.SignUp(ctx, "user@example.com", "secret123")
	require.NoError(t, err)
	// Revoke behind the client's back.
	require.NoError(t, c.Logout(ctx, s.AccessToken))

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	got, err := a.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, identity.EventSignedOut, recv(t, events).Kind)

	_, ok, _ := kv.Lookup(ctx, store, identity.StorageKey)
	assert.False(t, ok)
}

func TestAuth_CorruptStoredSessionIsDiscarded(t *testing.T) {
	a, _, store := newAuth(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, identity.StorageKey, "{not json"))

	s, err := a.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestAuth_UnsubscribeStopsDelivery(t *testing.T) {
	a, _, _ := newAuth(t)
	ctx := context.Background()

	events, unsubscribe := a.Subscribe()
	unsubscribe()
	unsubscribe()

	// More sign-ins than the buffer holds: none may block on the stale channel.
	_, err := a.SignUp(ctx, "user@example.com", "secret123")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := a.SignInWithPassword(ctx, "user@example.com", "secret123")
		require.NoError(t, err)
	}
	assertNoEvent(t, events)
}

func TestAuth_EveryEventReachesEverySubscriber(t *testing.T) {
	a, _, _ := newAuth(t)
	ctx := context.Background()

	one, u1 := a.Subscribe()
	defer u1()
	two, u2 := a.Subscribe()
	defer u2()

	_, err := a.SignUp(ctx, "user@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, a.SignOut(ctx))

	for _, ch := range []<-chan identity.Event{one, two} {
		assert.Equal(t, identity.EventSignedIn, recv(t, ch).Kind)
		assert.Equal(t, identity.EventSignedOut, recv(t, ch).Kind)
	}
}

func TestSession_ExpiresSoon(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, (&identity.Session{}).ExpiresSoon(now), "no expiry")
	assert.False(t, (&identity.Session{ExpiresAt: now.Add(time.Hour).Unix()}).ExpiresSoon(now))
	assert.True(t, (&identity.Session{ExpiresAt: now.Add(5 * time.Second).Unix()}).ExpiresSoon(now))
	assert.True(t, (&identity.Session{ExpiresAt: now.Add(-time.Minute).Unix()}).ExpiresSoon(now))
}

func TestSession_RefreshIn(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	_, ok := (&identity.Session{}).RefreshIn(now)
	assert.False(t, ok, "no expiry")
	_, ok = (*identity.Session)(nil).RefreshIn(now)
	assert.False(t, ok)

	tests := []struct {
		name    string
		expires time.Duration
		want    time.Duration
	}{
		{"margin before a long expiry", time.Hour, time.Hour - 10*time.Second},
		{"half of a short lifetime", 12 * time.Second, 6 * time.Second},
		{"floor for a nearly expired token", 1 * time.Second, time.Second},
		{"floor for an expired token", -time.Minute, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := (&identity.Session{ExpiresAt: now.Add(tt.expires).Unix()}).RefreshIn(now)
			require.True(t, ok)
			assert.Equal(t, tt.want, d)
		})
	}
}
