package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/kv"
)

// subscriberBuffer is how many events may queue per subscriber before the
// emitter waits.
const subscriberBuffer = 16

// compile-time check that *Auth implements Provider
var _ Provider = (*Auth)(nil)

// Auth is the provider session of one client (a browser, or the terminal
// user). It persists the session under StorageKey in store.
type Auth struct {
	client *Client
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time

	// op serializes session mutations so a refresh token is never spent
	// twice and events leave in the order their changes were persisted.
	op sync.Mutex

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// AuthOption configures an Auth.
type AuthOption func(*Auth)

// WithAuthLogger sets the logger.
func WithAuthLogger(l *slog.Logger) AuthOption {
	return func(a *Auth) { a.logger = l }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) AuthOption {
	return func(a *Auth) { a.now = now }
}

// NewAuth returns the session handler for one client.
func NewAuth(client *Client, store kv.Store, opts ...AuthOption) *Auth {
	a := &Auth{
		client: client,
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		subs:   make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SignInWithPassword starts a session and emits SIGNED_IN.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	s, err := a.client.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.save(ctx, s); err != nil {
		return nil, err
	}
	a.emit(Event{Kind: EventSignedIn, Session: s})
	return s, nil
}

// SignUp registers an account. When the provider signs the new user in
// directly the session is stored and SIGNED_IN emitted; otherwise it
// returns (nil, nil) and nothing changes locally.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	s, _, err := a.client.Signup(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	if err := a.save(ctx, s); err != nil {
		return nil, err
	}
	a.emit(Event{Kind: EventSignedIn, Session: s})
	return s, nil
}

// SignOut revokes the session at the provider, forgets it locally and emits
// SIGNED_OUT. A provider that no longer knows the session (401, 403, 404)
// does not stop the local sign-out; any other failure does.
func (a *Auth) SignOut(ctx context.Context) error {
	a.op.Lock()
	defer a.op.Unlock()

	s, err := a.load(ctx)
	if err != nil {
		return err
	}
	if s != nil {
		err := a.client.Logout(ctx, s.AccessToken)
		if err != nil && !IsProviderStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return err
		}
	}

	if err := a.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("identity: removing session: %w", err)
	}
	a.emit(Event{Kind: EventSignedOut})
	return nil
}

// Session returns the stored session, refreshing it first when it is about
// to expire (TOKEN_REFRESHED). A refresh the provider rejects ends the
// session (SIGNED_OUT) and returns (nil, nil). Transport failures are
// returned and leave the stored session in place.
func (a *Auth) Session(ctx context.Context) (*Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	s, err := a.load(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.ExpiresSoon(a.now()) {
		return s, nil
	}

	refreshed, err := a.client.RefreshGrant(ctx, s.RefreshToken)
	if err != nil {
		if !errors.Is(err, apperror.ErrAuth) {
			return nil, err
		}
		a.logger.Info("session refresh rejected, signing out",
			slog.String("user", s.User.Email),
			slog.String("reason", err.Error()),
		)
		if err := a.store.Delete(ctx, StorageKey); err != nil {
			return nil, fmt.Errorf("identity: removing session: %w", err)
		}
		a.emit(Event{Kind: EventSignedOut})
		return nil, nil
	}

	if err := a.save(ctx, refreshed); err != nil {
		return nil, err
	}
	a.emit(Event{Kind: EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// Subscribe registers for session events. Events arrive one at a time in
// the order the changes happened. The returned func unsubscribes; it is
// safe to call more than once. The channel is never closed.
func (a *Auth) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = sub
	a.mu.Unlock()

	return sub.ch, func() {
		// Stop first so an emit blocked on this subscriber lets go of mu.
		sub.stop()
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// emit delivers ev to every subscriber while holding mu, so two emits never
// interleave.
func (a *Auth) emit(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}

func (a *Auth) load(ctx context.Context) (*Session, error) {
	raw, ok, err := kv.Lookup(ctx, a.store, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("identity: reading session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// A corrupt entry is treated as signed out rather than a hard failure.
		a.logger.Warn("discarding unreadable stored session", slog.String("error", err.Error()))
		if err := a.store.Delete(ctx, StorageKey); err != nil {
			return nil, fmt.Errorf("identity: removing session: %w", err)
		}
		return nil, nil
	}
	return &s, nil
}

func (a *Auth) save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("identity: encoding session: %w", err)
	}
	if err := a.store.Set(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("identity: persisting session: %w", err)
	}
	return nil
}
