// Package authstate holds the process-wide {user, loading} auth state.
//
// A Store owns exactly one subscription to the identity client, taken in
// Start and released in Stop. Screens and commands take scoped
// subscriptions on the Store instead of subscribing to the provider
// themselves.
package authstate

import (
	"context"
	"sync"

	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/session"
)

// State is a snapshot of the auth state.
type State struct {
	// User is nil when signed out.
	User *identity.User

	// Loading is true until the identity client reports for the first
	// time, and never true again afterwards.
	Loading bool
}

// Authenticated reports whether a user is present and loading is over.
func (s State) Authenticated() bool {
	return !s.Loading && s.User != nil
}

// Identity is the identity client surface the store uses.
type Identity interface {
	Subscribe(fn identity.Listener) func()
	Restore(ctx context.Context) error
	SignInWithCredentials(ctx context.Context, email, password string) (*identity.User, error)
	SignInWithPopup(ctx context.Context) (*identity.User, error)
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
}

// Bridge runs sign-ins through the server session exchange.
type Bridge interface {
	SignIn(ctx context.Context, signIn session.SignInFunc) (*identity.User, error)
	SignOut(ctx context.Context)
}

type subscriber struct {
	id int
	fn func(State)
}

// Store is the process-wide auth state.
type Store struct {
	identity Identity
	bridge   Bridge
	logger   *log.Logger

	// notifyMu orders deliveries so every subscriber sees states in the
	// order they were written. Callbacks must not start sign-ins
	// synchronously.
	notifyMu sync.Mutex

	mu          sync.RWMutex
	state       State
	subscribers []subscriber
	nextID      int
	unsubscribe func()
}

// NewStore creates a store in the loading state.
func NewStore(id Identity, bridge Bridge, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Component("authstate")
	}
	return &Store{
		identity: id,
		bridge:   bridge,
		logger:   logger,
		state:    State{Loading: true},
	}
}

// Start takes the provider subscription and restores the persisted
// session, which ends loading. Calling Start twice is a no-op.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return nil
	}
	s.unsubscribe = func() {}
	s.mu.Unlock()

	unsubscribe := s.identity.Subscribe(s.onUser)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return s.identity.Restore(ctx)
}

// Stop releases the provider subscription. Consumers keep the last state.
func (s *Store) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// onUser is the only writer of the state.
func (s *Store) onUser(user *identity.User) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state = State{User: user, Loading: false}
	state := s.state
	subs := append([]subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	if user != nil {
		s.logger.Debug("auth state changed", "uid", user.UID)
	} else {
		s.logger.Debug("auth state changed", "uid", "")
	}
	for _, sub := range subs {
		sub.fn(state)
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe calls fn with the current state now and on every change until
// the returned cancel function is called.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.notifyMu.Lock()
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	state := s.state
	s.mu.Unlock()
	fn(state)
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
					break
				}
			}
		})
	}
}

// Login signs in with email and password and establishes the server
// session.
func (s *Store) Login(ctx context.Context, email, password string) (*identity.User, error) {
	return s.bridge.SignIn(ctx, func(ctx context.Context) (*identity.User, error) {
		return s.identity.SignInWithCredentials(ctx, email, password)
	})
}

// LoginWithGoogle runs the browser consent sign-in and establishes the
// server session.
func (s *Store) LoginWithGoogle(ctx context.Context) (*identity.User, error) {
	return s.bridge.SignIn(ctx, s.identity.SignInWithPopup)
}

// SignUp creates an account, signs it in and establishes the server
// session.
func (s *Store) SignUp(ctx context.Context, email, password string) (*identity.User, error) {
	return s.bridge.SignIn(ctx, func(ctx context.Context) (*identity.User, error) {
		return s.identity.SignUp(ctx, email, password)
	})
}

// Logout ends the server and identity sessions. It always completes.
func (s *Store) Logout(ctx context.Context) {
	s.bridge.SignOut(ctx)
}

// IDToken mints a token for the current user. With no user it returns an
// empty token and no error.
func (s *Store) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	user := s.Snapshot().User
	if user == nil {
		return "", nil
	}
	return user.IDToken(ctx, forceRefresh)
}
