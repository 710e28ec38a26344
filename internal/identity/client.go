package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/log"
)

// refreshSkew refreshes tokens this long before they expire.
const refreshSkew = 5 * time.Minute

// idpRequestURI is the continue URI sent with federated credentials.
const idpRequestURI = "http://localhost"

// Consent runs an interactive federated sign-in and returns the provider's
// id_token.
type Consent interface {
	IDToken(ctx context.Context) (string, error)
}

// ConsentFunc adapts a function to Consent.
type ConsentFunc func(ctx context.Context) (string, error)

// IDToken calls f.
func (f ConsentFunc) IDToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Listener receives the current user, or nil when signed out.
type Listener func(*User)

type listenerEntry struct {
	id string
	fn Listener
}

// Client is the identity provider client. It owns the provider session and
// notifies listeners whenever the signed-in user changes.
type Client struct {
	toolkit *Toolkit
	store   Store
	consent Consent
	logger  *log.Logger
	now     func() time.Time

	// notifyMu orders listener deliveries: a state change and its
	// notifications, or a subscriber's initial call, run as one unit.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	creds     *Credentials
	user      *User
	restored  bool
	listeners []listenerEntry

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithStore sets where the session is persisted.
func WithStore(store Store) Option {
	return func(c *Client) { c.store = store }
}

// WithConsent enables SignInWithPopup.
func WithConsent(consent Consent) Option {
	return func(c *Client) { c.consent = consent }
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates an identity client. Call Restore before relying on
// subscriptions.
func NewClient(toolkit *Toolkit, opts ...Option) *Client {
	c := &Client{
		toolkit: toolkit,
		store:   NewMemoryStore(),
		logger:  log.Component("identity"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the persisted session and completes the initial
// subscription handshake: every listener registered so far, and every
// later one, is called with the restored user. Restore is idempotent.
func (c *Client) Restore(ctx context.Context) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.restored {
		c.mu.Unlock()
		return nil
	}

	creds, err := c.store.Load()
	if err != nil {
		c.logger.WithError(err).WarnContext(ctx, "discarding unreadable identity session")
		_ = c.store.Clear()
		creds = nil
	}
	if creds != nil && creds.ExpiresAt.IsZero() {
		if claims, err := ParseClaims(creds.IDToken); err == nil && claims.ExpiresAt != nil {
			creds.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	c.setLocked(creds)
	c.restored = true
	user, listeners := c.user, c.snapshotListenersLocked()
	c.mu.Unlock()

	if user != nil {
		c.logger.DebugContext(ctx, "restored identity session",
			"uid", user.UID, "token", Fingerprint(creds.IDToken))
	}
	notify(listeners, user)
	return nil
}

// Subscribe registers fn for user changes. Once Restore has run, fn is
// called immediately with the current user, before any later change is
// delivered to it. Listeners must not call back into the Client. The
// returned function removes the subscription.
func (c *Client) Subscribe(fn Listener) func() {
	id := uuid.NewString()

	c.notifyMu.Lock()
	c.mu.Lock()
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	restored, user := c.restored, c.user
	c.mu.Unlock()

	if restored {
		fn(user)
	}
	c.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// CurrentUser returns the signed-in user, or nil.
func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SignInWithCredentials signs in with an email/password pair.
func (c *Client) SignInWithCredentials(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.toolkit.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, classify("sign-in", err)
	}
	if resp.ProviderID == "" {
		resp.ProviderID = ProviderPassword
	}
	return c.establish(ctx, resp)
}

// SignUp creates an email/password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.toolkit.SignUp(ctx, email, password)
	if err != nil {
		return nil, classify("sign-up", err)
	}
	if resp.ProviderID == "" {
		resp.ProviderID = ProviderPassword
	}
	return c.establish(ctx, resp)
}

// SignInWithPopup runs the browser consent flow and exchanges the federated
// token for a provider session.
func (c *Client) SignInWithPopup(ctx context.Context) (*User, error) {
	if c.consent == nil {
		return nil, errors.NewProviderError("Google sign-in is not configured", nil).
			WithSuggestion("Set identity.google.client_id with 'vibesub config set identity.google.client_id <id>'")
	}

	idpToken, err := c.consent.IDToken(ctx)
	if err != nil {
		if errors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, errors.NewProviderError("Google sign-in failed", err)
	}

	resp, err := c.toolkit.SignInWithIdp(ctx, ProviderGoogle, idpToken, idpRequestURI)
	if err != nil {
		return nil, classify("Google sign-in", err)
	}
	return c.establish(ctx, resp)
}

// SignOut ends the provider session. Local state is cleared and listeners
// are notified even when the store cannot be cleared.
func (c *Client) SignOut(ctx context.Context) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.setLocked(nil)
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	err := c.store.Clear()
	notify(listeners, nil)

	if err != nil {
		return errors.NewProviderError("failed to clear identity session", err)
	}
	c.logger.DebugContext(ctx, "signed out of identity provider")
	return nil
}

// Reload refreshes the current user's profile from the provider.
func (c *Client) Reload(ctx context.Context) (*User, error) {
	user := c.CurrentUser()
	if user == nil {
		return nil, errors.NewProviderError("no signed-in user", nil)
	}
	token, err := user.IDToken(ctx, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.toolkit.Lookup(ctx, token)
	if err != nil {
		return nil, classify("profile lookup", err)
	}
	if len(resp.Users) == 0 {
		return nil, errors.NewProviderError("identity provider returned no profile", nil)
	}
	profile := resp.Users[0]

	c.mu.Lock()
	if c.creds == nil || c.creds.UID != user.UID {
		c.mu.Unlock()
		return nil, errors.NewProviderError("user signed out during profile lookup", nil)
	}
	updated := *c.creds
	updated.Email = profile.Email
	updated.DisplayName = profile.DisplayName
	updated.PhotoURL = profile.PhotoURL
	c.setLocked(&updated)
	reloaded := c.user
	c.mu.Unlock()

	if err := c.store.Save(&updated); err != nil {
		c.logger.WithError(err).WarnContext(ctx, "failed to persist reloaded profile")
	}
	return reloaded, nil
}

func (c *Client) establish(ctx context.Context, resp *AuthResponse) (*User, error) {
	creds := &Credentials{
		User: User{
			UID:         resp.LocalID,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
			PhotoURL:    resp.PhotoURL,
			ProviderID:  resp.ProviderID,
		},
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiry(c.now(), resp.ExpiresIn),
	}
	if creds.UID == "" {
		return nil, errors.NewProviderError("identity provider returned no user id", nil)
	}

	if err := c.store.Save(creds); err != nil {
		c.logger.WithError(err).WarnContext(ctx, "identity session will not survive restart")
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.setLocked(creds)
	user, listeners := c.user, c.snapshotListenersLocked()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "signed in",
		"uid", user.UID, "provider", user.ProviderID, "token", Fingerprint(creds.IDToken))
	notify(listeners, user)
	return user, nil
}

// idToken serves User.IDToken. Concurrent refreshes for one user share a
// single provider call.
func (c *Client) idToken(ctx context.Context, uid string, forceRefresh bool) (string, error) {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()

	if creds == nil || creds.UID != uid {
		return "", errors.NewProviderError("user is no longer signed in", nil)
	}
	if !forceRefresh && c.now().Add(refreshSkew).Before(creds.ExpiresAt) {
		return creds.IDToken, nil
	}

	v, err, _ := c.refreshGroup.Do(uid, func() (any, error) {
		return c.refresh(ctx, creds)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refresh(ctx context.Context, creds *Credentials) (string, error) {
	resp, err := c.toolkit.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		if sessionRevoked(err) {
			c.logger.WarnContext(ctx, "identity session revoked", "uid", creds.UID)
			_ = c.SignOut(ctx)
		}
		return "", errors.NewProviderError("failed to refresh identity token", err)
	}

	updated := *creds
	updated.IDToken = resp.IDToken
	if resp.RefreshToken != "" {
		updated.RefreshToken = resp.RefreshToken
	}
	updated.ExpiresAt = expiry(c.now(), resp.ExpiresIn)

	c.mu.Lock()
	if c.creds == nil || c.creds.UID != creds.UID {
		c.mu.Unlock()
		return "", errors.NewProviderError("user signed out during token refresh", nil)
	}
	c.creds = &updated
	c.mu.Unlock()

	if err := c.store.Save(&updated); err != nil {
		c.logger.WithError(err).WarnContext(ctx, "failed to persist refreshed token")
	}
	c.logger.DebugContext(ctx, "refreshed identity token",
		"uid", updated.UID, "token", Fingerprint(updated.IDToken))
	return updated.IDToken, nil
}

// setLocked replaces the session and the user handle. Token refreshes
// bypass it and keep the handle.
func (c *Client) setLocked(creds *Credentials) {
	c.creds = creds
	if creds == nil {
		c.user = nil
		return
	}
	u := creds.User
	u.client = c
	c.user = &u
}

func (c *Client) snapshotListenersLocked() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l.fn)
	}
	return out
}

func notify(listeners []Listener, user *User) {
	for _, fn := range listeners {
		fn(user)
	}
}
