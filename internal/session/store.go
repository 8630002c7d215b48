// Package session holds the client-side view of who is signed in.
//
// A Store is the session state of one client: a browser for the web client,
// the terminal user for habitctl. It is an explicit object handed to every
// page, never a global. On creation it subscribes to the provider's session
// events, then fetches the provider session once in the background. Until
// that fetch resolves the Store is Loading; afterwards it is Authenticated or
// Anonymous and follows every event the provider pushes.
//
// The access token of the current session is mirrored into the client's kv
// storage under identity.TokenKey. The request client reads it from there at
// call time, so the mirror is a cache and the provider session stays the
// source of truth.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/kv"
)

// Status is the tri-state authentication status.
type Status int

const (
	// StatusLoading: the initial provider fetch has not resolved yet.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("session: store closed")

// Snapshot is a consistent copy of a Store's state.
type Snapshot struct {
	Status    Status
	User      *identity.User
	Token     string
	LastEvent identity.EventKind
}

// Authenticated reports whether a user is signed in.
func (s Snapshot) Authenticated() bool { return s.Status == StatusAuthenticated }

// Email is the signed-in user's email, or "".
func (s Snapshot) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next page the client renders.
type Flash struct {
	Kind    string
	Message string
}

// Store is the session state of one client.
type Store struct {
	provider identity.Provider
	cache    kv.Store
	logger   *slog.Logger

	mu    sync.RWMutex
	state Snapshot

	// current is the session last applied. Only run touches it.
	current *identity.Session

	flashMu sync.Mutex
	flashes []Flash

	ready       chan struct{}
	barrier     chan chan struct{}
	quit        chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
	closeOnce   sync.Once
}

// NewStore subscribes to provider events and starts the background fetch of
// the current session. cache is where the access token is mirrored.
// Close must be called to release the subscription.
func NewStore(provider identity.Provider, cache kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		provider: provider,
		cache:    cache,
		logger:   logger,
		state:    Snapshot{Status: StatusLoading},
		ready:    make(chan struct{}),
		barrier:  make(chan chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	// Subscribe before fetching so no change between the two is missed.
	events, unsubscribe := provider.Subscribe()
	s.unsubscribe = unsubscribe

	go s.run(ctx, events)
	return s
}

// refreshRetryDelay is how long run waits to try again after a refresh
// failed without a provider answer.
const refreshRetryDelay = 30 * time.Second

// run owns every state transition: the initial fetch first, then events in
// arrival order. The last one applied wins.
func (s *Store) run(ctx context.Context, events <-chan identity.Event) {
	defer close(s.done)

	sess, err := s.provider.Session(ctx)
	if err != nil {
		s.logger.Warn("fetching initial session", slog.String("error", err.Error()))
		sess = nil
	}
	s.apply(ctx, identity.Event{Kind: identity.EventInitialSession, Session: sess})
	close(s.ready)

	refresh := time.NewTimer(time.Hour)
	defer refresh.Stop()
	s.schedule(refresh)

	for {
		select {
		case ev := <-events:
			s.apply(ctx, ev)
			s.schedule(refresh)
		case ack := <-s.barrier:
			s.drain(ctx, events)
			close(ack)
			s.schedule(refresh)
		case <-refresh.C:
			if err := s.refresh(ctx, events); err != nil {
				s.logger.Warn("refreshing session", slog.String("error", err.Error()))
				refresh.Reset(refreshRetryDelay)
				continue
			}
			s.schedule(refresh)
		case <-s.quit:
			return
		}
	}
}

// schedule arms t for the next refresh of the current session, or stops it
// when there is nothing to refresh.
func (s *Store) schedule(t *time.Timer) {
	t.Stop()
	if d, ok := s.current.RefreshIn(time.Now()); ok {
		t.Reset(d)
	}
}

// refresh asks the provider for the session again. A provider that renews
// or ends it has already pushed the matching event; drain applies it. A
// change that arrived without an event is applied as one.
func (s *Store) refresh(ctx context.Context, events <-chan identity.Event) error {
	sess, err := s.provider.Session(ctx)
	if err != nil {
		return err
	}
	s.drain(ctx, events)
	switch {
	case sess == nil && s.current != nil:
		s.apply(ctx, identity.Event{Kind: identity.EventSignedOut})
	case sess != nil && (s.current == nil || sess.AccessToken != s.current.AccessToken):
		s.apply(ctx, identity.Event{Kind: identity.EventTokenRefreshed, Session: sess})
	}
	return nil
}

// drain applies every event already queued, without waiting for more.
func (s *Store) drain(ctx context.Context, events <-chan identity.Event) {
	for {
		select {
		case ev := <-events:
			s.apply(ctx, ev)
		default:
			return
		}
	}
}

func (s *Store) apply(ctx context.Context, ev identity.Event) {
	next := Snapshot{Status: StatusAnonymous, LastEvent: ev.Kind}
	s.current = nil
	if ev.Session != nil && ev.Session.AccessToken != "" {
		s.current = ev.Session
		u := ev.Session.User
		next = Snapshot{
			Status:    StatusAuthenticated,
			User:      &u,
			Token:     ev.Session.AccessToken,
			LastEvent: ev.Kind,
		}
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("session updated",
		slog.String("event", string(ev.Kind)),
		slog.String("status", next.Status.String()),
		slog.String("user", next.Email()),
	)

	s.mirror(ctx, ev.Kind, next.Token)
}

// mirror writes the token cache. An initial fetch that finds no session
// leaves whatever is cached alone; only an event clears it.
func (s *Store) mirror(ctx context.Context, kind identity.EventKind, token string) {
	var err error
	switch {
	case token != "":
		err = s.cache.Set(ctx, identity.TokenKey, token)
	case kind != identity.EventInitialSession:
		err = s.cache.Delete(ctx, identity.TokenKey)
	}
	if err != nil {
		s.logger.Warn("mirroring access token", slog.String("error", err.Error()))
	}
}

// Snapshot returns the current state without waiting.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready is closed once the initial fetch has been applied.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Wait blocks until the initial fetch resolves or ctx is done, then returns
// the state. On ctx expiry the Loading snapshot is returned with ctx's error.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.ready:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// WaitFor is Wait bounded by d.
func (s *Store) WaitFor(ctx context.Context, d time.Duration) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	snap, _ := s.Wait(ctx)
	return snap
}

// CachedToken reads the mirrored access token; "" when none is cached.
func (s *Store) CachedToken(ctx context.Context) (string, error) {
	token, _, err := kv.Lookup(ctx, s.cache, identity.TokenKey)
	return token, err
}

// SignIn starts a provider session. When it returns nil the Store already
// reflects the new session.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if _, err := s.provider.SignInWithPassword(ctx, email, password); err != nil {
		return err
	}
	return s.sync(ctx)
}

// SignUp registers an account. signedIn reports whether the provider also
// started a session (it does not when email confirmation is required).
func (s *Store) SignUp(ctx context.Context, email, password string) (signedIn bool, err error) {
	sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return false, err
	}
	if err := s.sync(ctx); err != nil {
		return false, err
	}
	return sess != nil, nil
}

// SignOut ends the provider session. When it returns nil the Store is
// Anonymous and the token cache is cleared.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return err
	}
	return s.sync(ctx)
}

// sync waits until every event the provider has emitted so far is applied.
func (s *Store) sync(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.barrier <- ack:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddFlash queues a message for the next rendered page.
func (s *Store) AddFlash(kind, message string) {
	s.flashMu.Lock()
	defer s.flashMu.Unlock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes returns and clears the queued messages.
func (s *Store) PopFlashes() []Flash {
	s.flashMu.Lock()
	defer s.flashMu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// Close releases the provider subscription and stops the Store. It is safe
// to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.cancel()
		close(s.quit)
		<-s.done
	})
}
