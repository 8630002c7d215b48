package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/kv"
	"github.com/sakif/habit-tracker/internal/repository"
)

// CookieName is the cookie carrying the browser session id.
const CookieName = "habit_sid"

// cookieMaxAge keeps the browser id for a year; the stored session expires
// on the provider's terms, not the cookie's.
const cookieMaxAge = 365 * 24 * 60 * 60

// ProviderFactory builds the identity provider session handler for one
// browser, persisting into that browser's storage.
type ProviderFactory func(storage kv.Store) identity.Provider

// purger is implemented by storages that can drop stale items in bulk.
type purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type entry struct {
	store    *Store
	lastSeen time.Time
	// returned is set once the browser came back with the cookie it was
	// given. Entries it never returns for are swept after unconfirmedTTL.
	returned bool
}

// Registry is the web client's application root: it owns one Store per
// browser and releases them when they go idle or on Close.
//
// A browser without a session cookie gets no Store until a handler asks for
// one with Ensure (sign-in, sign-up, or the guard's login redirect). Pages
// anyone may see render without a Store, so crawlers and health checks
// never allocate session state.
type Registry struct {
	storage        repository.BrowserStorage
	factory        ProviderFactory
	logger         *slog.Logger
	idleTTL        time.Duration
	unconfirmedTTL time.Duration
	storageTTL     time.Duration
	secure     bool
	now        func() time.Time

	mu     sync.Mutex
	stores map[string]*entry
	closed bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL sets how long an unused Store stays in memory. Its persisted
// session survives eviction and is restored on the next visit.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

// WithUnconfirmedTTL sets how long a Store created for a cookieless request
// stays in memory if the browser never comes back with the cookie.
func WithUnconfirmedTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.unconfirmedTTL = d }
}

// WithStorageTTL sets how old persisted items may get before the janitor
// purges them (storages that support it).
func WithStorageTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.storageTTL = d }
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) RegistryOption {
	return func(r *Registry) { r.secure = secure }
}

// WithRegistryClock overrides time.Now (tests).
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty Registry.
func NewRegistry(storage repository.BrowserStorage, factory ProviderFactory, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		storage: storage,
		factory: factory,
		logger:  logger,
		idleTTL:        24 * time.Hour,
		unconfirmedTTL: 10 * time.Minute,
		now:            time.Now,
		stores:         make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.unconfirmedTTL <= 0 || r.unconfirmedTTL > r.idleTTL {
		r.unconfirmedTTL = r.idleTTL
	}
	return r
}

// Get returns the Store of browser sid, creating it on first use. The
// browser is known to hold the sid cookie.
func (r *Registry) Get(sid string) (*Store, error) {
	return r.get(sid, true)
}

func (r *Registry) get(sid string, returned bool) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if e, ok := r.stores[sid]; ok {
		e.lastSeen = r.now()
		e.returned = e.returned || returned
		return e.store, nil
	}

	storage := kv.Scoped(r.storage, sid)
	store := NewStore(r.factory(storage), storage, r.logger.With(slog.String("sid", sid)))
	r.stores[sid] = &entry{store: store, lastSeen: r.now(), returned: returned}
	return store, nil
}

// Len is the number of live Stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Middleware attaches the Store of a browser that sends a valid session
// cookie to the request context. Requests without one carry only the means
// to create a Store on demand (Ensure).
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b := &binding{registry: r, w: w}
		if c, err := req.Cookie(CookieName); err == nil {
			if id, err := xid.FromString(c.Value); err == nil {
				store, err := r.Get(id.String())
				if err != nil {
					http.Error(w, "shutting down", http.StatusServiceUnavailable)
					return
				}
				b.store = store
			}
		}

		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), storeKey{}, b)))
	})
}

// create issues a new browser id cookie on w and returns its Store.
func (r *Registry) create(w http.ResponseWriter) (*Store, error) {
	sid := xid.New().String()
	store, err := r.get(sid, false)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// Sweep closes Stores idle longer than the idle TTL, and Stores whose
// browser never returned after the unconfirmed TTL, and returns how many.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	unconfirmed := r.now().Add(-r.unconfirmedTTL)

	r.mu.Lock()
	var stale []*Store
	for sid, e := range r.stores {
		if e.lastSeen.Before(cutoff) || (!e.returned && e.lastSeen.Before(unconfirmed)) {
			stale = append(stale, e.store)
			delete(r.stores, sid)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Janitor sweeps idle Stores, and purges stale persisted items when the
// storage supports it, every interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("evicted idle sessions", slog.Int("count", n))
			}
			r.purge(ctx)
		}
	}
}

func (r *Registry) purge(ctx context.Context) {
	p, ok := r.storage.(purger)
	if !ok || r.storageTTL <= 0 {
		return
	}
	n, err := p.PurgeBefore(ctx, r.now().Add(-r.storageTTL))
	if err != nil {
		r.logger.Warn("purging browser storage", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		r.logger.Info("purged stale browser storage", slog.Int64("items", n))
	}
}

// Close releases every Store's subscription. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	stores := r.stores
	r.stores = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range stores {
		e.store.Close()
	}
}

type storeKey struct{}

// binding is what Middleware puts in a request context: the browser's
// Store, if it has one, and what is needed to create it.
type binding struct {
	registry *Registry
	w        http.ResponseWriter
	store    *Store
}

// ErrNoStore is returned by Ensure for a request the Registry middleware
// did not see.
var ErrNoStore = errors.New("session: no session store for request")

// WithStore returns ctx carrying store.
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, &binding{store: store})
}

// FromContext returns the browser's Store, if it already has one. It never
// creates one.
func FromContext(ctx context.Context) (*Store, bool) {
	b, ok := ctx.Value(storeKey{}).(*binding)
	if !ok || b.store == nil {
		return nil, false
	}
	return b.store, true
}

// Ensure returns the browser's Store, creating it and setting the session
// cookie when the browser has none. It must be called before the response
// header is written.
func Ensure(ctx context.Context) (*Store, error) {
	b, ok := ctx.Value(storeKey{}).(*binding)
	if !ok {
		return nil, ErrNoStore
	}
	if b.store != nil {
		return b.store, nil
	}
	if b.registry == nil {
		return nil, ErrNoStore
	}
	store, err := b.registry.create(b.w)
	if err != nil {
		return nil, err
	}
	b.store = store
	return store, nil
}

// ContextTokens is an api.TokenSource that reads the token cache of the
// Store in the call's context. Calls without a Store are unauthenticated.
type ContextTokens struct{}

func (ContextTokens) CachedToken(ctx context.Context) (string, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return "", nil
	}
	return s.CachedToken(ctx)
}
