package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state", "credentials.json"))

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)

	want := &Credentials{
		User:         User{UID: "uid-1", Email: "user@example.com", ProviderID: ProviderPassword},
		IDToken:      "id",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.UID, got.UID)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	got, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err := NewFileStore(path).Load()
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	creds := &Credentials{User: User{UID: "uid-1"}, RefreshToken: "r"}
	require.NoError(t, store.Save(creds))

	creds.UID = "mutated"
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		reason string
		code   errors.ErrorCode
	}{
		{ReasonInvalidPassword, errors.ErrCodeInvalidCredentials},
		{ReasonEmailNotFound, errors.ErrCodeInvalidCredentials},
		{ReasonInvalidLoginCredentials, errors.ErrCodeInvalidCredentials},
		{ReasonEmailExists, errors.ErrCodeEmailInUse},
		{ReasonWeakPassword, errors.ErrCodeWeakPassword},
		{ReasonInvalidEmail, errors.ErrCodeInvalidEmail},
		{"QUOTA_EXCEEDED", errors.ErrCodeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			err := classify("sign-in", &APIError{Status: 400, Reason: tt.reason})
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}

	assert.Equal(t, errors.ErrCodeProviderError, errors.CodeOf(classify("sign-in", os.ErrDeadlineExceeded)))
}
