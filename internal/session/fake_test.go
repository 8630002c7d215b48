package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sakif/habit-tracker/internal/identity"
)

// fakeProvider is an identity.Provider under test control.
type fakeProvider struct {
	mu           sync.Mutex
	current      *identity.Session
	fetchGate    chan struct{}
	fetchErr     error
	signInErr    error
	subs         map[int]chan identity.Event
	nextID       int
	unsubscribed int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: make(map[int]chan identity.Event)}
}

func testSession(email, token string) *identity.Session {
	return &identity.Session{
		AccessToken: token,
		TokenType:   "bearer",
		User:        identity.User{ID: "id-" + email, Email: email},
	}
}

func (p *fakeProvider) emit(ev identity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		ch <- ev
	}
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, _ string) (*identity.Session, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	s := testSession(email, "tok-"+email)
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()
	p.emit(identity.Event{Kind: identity.EventSignedIn, Session: s})
	return s, nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	return p.SignInWithPassword(ctx, email, password)
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.emit(identity.Event{Kind: identity.EventSignedOut})
	return nil
}

func (p *fakeProvider) Session(ctx context.Context) (*identity.Session, error) {
	if p.fetchGate != nil {
		select {
		case <-p.fetchGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakeProvider) Subscribe() (<-chan identity.Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan identity.Event, 16)
	p.subs[id] = ch
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			p.unsubscribed++
		}
	}
}

func (p *fakeProvider) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

var errBoom = errors.New("boom")
