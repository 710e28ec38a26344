package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/platform"
)

type fakeAPI struct {
	loginStatus *platform.SessionStatus
	loginErr    error
	logoutErr   error
	tokens      []string
	logouts     int
}

func (f *fakeAPI) SessionLogin(ctx context.Context, idToken string) (*platform.SessionStatus, error) {
	f.tokens = append(f.tokens, idToken)
	return f.loginStatus, f.loginErr
}

func (f *fakeAPI) SessionLogout(ctx context.Context) error {
	f.logouts++
	return f.logoutErr
}

type fakeIdentity struct {
	signOuts int
	err      error
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.signOuts++
	return f.err
}

func TestEstablishServerSession(t *testing.T) {
	tests := []struct {
		name    string
		status  *platform.SessionStatus
		err     error
		wantErr bool
	}{
		{"success", &platform.SessionStatus{Status: "success"}, nil, false},
		{"other status", &platform.SessionStatus{Status: "error"}, nil, true},
		{"empty body", &platform.SessionStatus{}, nil, true},
		{"non-2xx", nil, &platform.StatusError{StatusCode: http.StatusUnauthorized}, true},
		{"transport", nil, fmt.Errorf("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{loginStatus: tt.status, loginErr: tt.err}
			bridge := NewBridge(api, &fakeIdentity{}, nil)

			_, err := bridge.EstablishServerSession(context.Background(), "tok")
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeSessionEstablishmentFailed))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"tok"}, api.tokens, "exactly one attempt")
		})
	}
}

// signedInUser returns a user handle backed by a real identity client with
// an in-memory session.
func signedInUser(t *testing.T) (*identity.Client, SignInFunc) {
	t.Helper()
	client, user := newIdentityWithUser(t)
	return client, func(ctx context.Context) (*identity.User, error) { return user, nil }
}

func TestSignInEstablishesSession(t *testing.T) {
	api := &fakeAPI{loginStatus: &platform.SessionStatus{Status: "success"}}
	id := &fakeIdentity{}
	bridge := NewBridge(api, id, nil)
	_, signIn := signedInUser(t)

	user, err := bridge.SignIn(context.Background(), signIn)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.UID)
	assert.Equal(t, []string{"id-uid-1"}, api.tokens)
	assert.Zero(t, id.signOuts)
}

func TestSignInRollsBackOnBridgeFailure(t *testing.T) {
	api := &fakeAPI{loginStatus: &platform.SessionStatus{Status: "nope"}}
	id := &fakeIdentity{}
	bridge := NewBridge(api, id, nil)
	_, signIn := signedInUser(t)

	_, err := bridge.SignIn(context.Background(), signIn)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionEstablishmentFailed))
	assert.Equal(t, 1, id.signOuts)
}

func TestSignInProviderFailureSkipsBridge(t *testing.T) {
	api := &fakeAPI{}
	id := &fakeIdentity{}
	bridge := NewBridge(api, id, nil)

	_, err := bridge.SignIn(context.Background(), func(ctx context.Context) (*identity.User, error) {
		return nil, errors.NewInvalidCredentialsError(nil)
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCredentials))
	assert.Empty(t, api.tokens)
	assert.Zero(t, id.signOuts)
}

func TestSignOutIsBestEffort(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelDebug, Output: &buf})

	api := &fakeAPI{logoutErr: fmt.Errorf("server down")}
	id := &fakeIdentity{err: errors.NewProviderError("offline", nil)}
	bridge := NewBridge(api, id, logger)

	bridge.SignOut(context.Background())

	assert.Equal(t, 1, api.logouts)
	assert.Equal(t, 1, id.signOuts)
	assert.Contains(t, buf.String(), "SESSION-002")
	assert.Contains(t, buf.String(), "AUTH-003")
}

func TestNilLoggerUsesDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	log.SetDefaultLogger(log.New(log.Config{Level: log.LevelDebug, Output: &buf}))
	t.Cleanup(func() { log.SetDefaultLogger(nil) })

	bridge := NewBridge(&fakeAPI{logoutErr: fmt.Errorf("server down")}, &fakeIdentity{}, nil)
	bridge.SignOut(context.Background())

	assert.Contains(t, buf.String(), "component=session")
	assert.Contains(t, buf.String(), "SESSION-002")
}
