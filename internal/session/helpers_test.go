package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/identity/identitytest"
)

func newIdentityWithUser(t *testing.T) (*identity.Client, *identity.User) {
	t.Helper()
	_, server := identitytest.NewServer(t)
	client := identity.NewClient(identity.NewToolkit(identitytest.APIKey, server.URL, server.URL, server.Client()))
	user, err := client.SignInWithCredentials(context.Background(), "user@example.com", "secret1")
	require.NoError(t, err)
	return client, user
}
