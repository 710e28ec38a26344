package platform

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJarPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cookies.json")
	u, _ := url.Parse("https://api.example.com/api/auth/sessionLogin")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/", MaxAge: 3600}})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := OpenFileJar(path)
	require.NoError(t, err)
	cookies := reopened.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestFileJarDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, _ := url.Parse("https://api.example.com/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/", MaxAge: 60}})

	later := func() time.Time { return time.Now().Add(time.Hour) }
	reopened, err := openFileJar(path, later)
	require.NoError(t, err)
	assert.Empty(t, reopened.origins)
	assert.False(t, reopened.HasSession(u.String()))
}

func TestFileJarDeleteCookie(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, _ := url.Parse("https://api.example.com/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	require.True(t, jar.HasSession(u.String()))

	jar.SetCookies(u, []*http.Cookie{{Name: "session", Path: "/", MaxAge: -1}})
	assert.False(t, jar.HasSession(u.String()))

	reopened, err := OpenFileJar(path)
	require.NoError(t, err)
	assert.False(t, reopened.HasSession(u.String()))
}

func TestFileJarClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, _ := url.Parse("https://api.example.com/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})

	require.NoError(t, jar.Clear())
	assert.False(t, jar.HasSession(u.String()))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// clearing twice is fine
	assert.NoError(t, jar.Clear())
}

func TestOpenFileJarCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := OpenFileJar(path)
	assert.Error(t, err)
}
