// Package session bridges an identity provider sign-in to a first-party
// server session held as a cookie.
package session

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/platform"
)

// API is the server session surface of the platform client.
type API interface {
	SessionLogin(ctx context.Context, idToken string) (*platform.SessionStatus, error)
	SessionLogout(ctx context.Context) error
}

// Identity is the part of the identity client the bridge drives.
type Identity interface {
	SignOut(ctx context.Context) error
}

// SignInFunc performs one identity sign-in.
type SignInFunc func(ctx context.Context) (*identity.User, error)

// Bridge establishes and tears down server sessions.
type Bridge struct {
	api      API
	identity Identity
	logger   *log.Logger
}

// NewBridge creates a bridge. A nil logger uses the default logger.
func NewBridge(api API, id Identity, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Component("session")
	}
	return &Bridge{api: api, identity: id, logger: logger}
}

// EstablishServerSession exchanges idToken for a server session cookie.
// Only a 2xx response with status "success" counts; there is no retry.
func (b *Bridge) EstablishServerSession(ctx context.Context, idToken string) (*platform.SessionStatus, error) {
	status, err := b.api.SessionLogin(ctx, idToken)
	if err != nil {
		var statusErr *platform.StatusError
		if stderrors.As(err, &statusErr) {
			return nil, errors.NewSessionEstablishmentError(fmt.Sprintf("status %d", statusErr.StatusCode), err).
				WithStatus(statusErr.StatusCode)
		}
		return nil, errors.NewSessionEstablishmentError("request failed", err)
	}
	if !status.OK() {
		return status, errors.NewSessionEstablishmentError(fmt.Sprintf("server answered %q", status.Status), nil)
	}

	b.logger.DebugContext(ctx, "server session established", "token", identity.Fingerprint(idToken))
	return status, nil
}

// TerminateServerSession asks the server to clear the session cookie.
// Callers treat failures as best-effort.
func (b *Bridge) TerminateServerSession(ctx context.Context) error {
	if err := b.api.SessionLogout(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeSessionTeardownFailed, "failed to end server session", err)
	}
	return nil
}

// SignIn runs signIn, mints a token for the new user and establishes the
// server session. Every sign-in path goes through here. When the server
// session cannot be created the identity user is signed out again, so a
// failed bridge never leaves a half-signed-in client.
func (b *Bridge) SignIn(ctx context.Context, signIn SignInFunc) (*identity.User, error) {
	user, err := signIn(ctx)
	if err != nil {
		return nil, err
	}

	token, err := user.IDToken(ctx, false)
	if err != nil {
		b.rollback(ctx)
		return nil, errors.NewSessionEstablishmentError("could not mint identity token", err)
	}

	if _, err := b.EstablishServerSession(ctx, token); err != nil {
		b.rollback(ctx)
		return nil, err
	}
	return user, nil
}

// SignOut tears down the server session, then the identity session.
// Failures of either step are logged; local identity state is cleared
// regardless, so sign-out always completes from the caller's view.
func (b *Bridge) SignOut(ctx context.Context) {
	if err := b.TerminateServerSession(ctx); err != nil {
		b.logger.WithError(err).WarnContext(ctx, "continuing sign-out without server teardown")
	}
	if err := b.identity.SignOut(ctx); err != nil {
		b.logger.WithError(err).WarnContext(ctx, "identity sign-out reported an error")
	}
}

func (b *Bridge) rollback(ctx context.Context) {
	if err := b.identity.SignOut(ctx); err != nil {
		b.logger.WithError(err).WarnContext(ctx, "failed to roll back identity sign-in")
	}
}
