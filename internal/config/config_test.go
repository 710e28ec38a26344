package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.rxaigc.com", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Dashboard.FetchDelay)
	assert.True(t, cfg.API.ValidateContract)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: http://localhost:8000
  timeout: 5s
  validate_contract: false
identity:
  api_key: file-key
dashboard:
  fetch_delay: 1500ms
locale: zh-CN
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("VIBESUB_IDENTITY_API_KEY", "env-key")
	t.Setenv("VIBESUB_DASHBOARD_FETCH_DELAY", "0s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.False(t, cfg.API.ValidateContract)
	assert.Equal(t, "env-key", cfg.Identity.APIKey)
	assert.Equal(t, time.Duration(0), cfg.Dashboard.FetchDelay)
	assert.Equal(t, "zh-CN", cfg.Locale)
	// untouched keys keep their defaults
	assert.Equal(t, "https://securetoken.googleapis.com", cfg.Identity.TokenURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("VIBESUB_API_TIMEOUT", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }, true},
		{"negative delay", func(c *Config) { c.Dashboard.FetchDelay = -time.Second }, true},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("dashboard.fetch_delay", "2s"))
	require.NoError(t, cfg.Set("api.validate_contract", "false"))
	require.NoError(t, cfg.Set("identity.google.client_id", "cid"))

	got, err := cfg.Get("dashboard.fetch_delay")
	require.NoError(t, err)
	assert.Equal(t, "2s", got)

	got, err = cfg.Get("api.validate_contract")
	require.NoError(t, err)
	assert.Equal(t, "false", got)

	got, err = cfg.Get("identity.google.client_id")
	require.NoError(t, err)
	assert.Equal(t, "cid", got)

	_, err = cfg.Get("nope")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigKey))

	err = cfg.Set("api.timeout", "forever")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestKeysAreGettable(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Locale = "en-US"
	cfg.Dashboard.FetchDelay = 250 * time.Millisecond

	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "en-US", loaded.Locale)
	assert.Equal(t, 250*time.Millisecond, loaded.Dashboard.FetchDelay)
}

func TestPathHonoursEnv(t *testing.T) {
	t.Setenv("VIBESUB_CONFIG", "/tmp/custom.yaml")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", p)
}

func TestResolveStateDir(t *testing.T) {
	cfg := Default()
	cfg.StateDir = "/var/lib/vibesub"
	dir, err := cfg.ResolveStateDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vibesub", dir)
}
