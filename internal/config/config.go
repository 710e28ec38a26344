// Package config loads the vibesub client configuration from
// ~/.vibesub/config.yaml and VIBESUB_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/rxaigc/vibesub/internal/errors"
)

// Config is the complete client configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Identity  IdentityConfig  `yaml:"identity"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Locale selects the message catalog (e.g. "zh-CN"). Empty means LANG.
	Locale string `yaml:"locale,omitempty" env:"VIBESUB_LOCALE"`

	// StateDir holds credentials and cookies. Empty means ~/.vibesub.
	StateDir string `yaml:"state_dir,omitempty" env:"VIBESUB_STATE_DIR"`
}

// APIConfig addresses the first-party VibeSub API.
type APIConfig struct {
	BaseURL          string        `yaml:"base_url" env:"VIBESUB_API_URL"`
	Timeout          time.Duration `yaml:"timeout" env:"VIBESUB_API_TIMEOUT"`
	ValidateContract bool          `yaml:"validate_contract" env:"VIBESUB_API_VALIDATE_CONTRACT"`
}

// IdentityConfig addresses the identity provider.
type IdentityConfig struct {
	APIKey     string       `yaml:"api_key" env:"VIBESUB_IDENTITY_API_KEY"`
	ToolkitURL string       `yaml:"toolkit_url" env:"VIBESUB_IDENTITY_TOOLKIT_URL"`
	TokenURL   string       `yaml:"token_url" env:"VIBESUB_IDENTITY_TOKEN_URL"`
	Google     GoogleConfig `yaml:"google"`
}

// GoogleConfig configures the browser consent sign-in.
type GoogleConfig struct {
	ClientID       string        `yaml:"client_id" env:"VIBESUB_GOOGLE_CLIENT_ID"`
	ClientSecret   string        `yaml:"client_secret,omitempty" env:"VIBESUB_GOOGLE_CLIENT_SECRET"`
	AuthURL        string        `yaml:"auth_url,omitempty" env:"VIBESUB_GOOGLE_AUTH_URL"`
	TokenURL       string        `yaml:"token_url,omitempty" env:"VIBESUB_GOOGLE_TOKEN_URL"`
	ConsentTimeout time.Duration `yaml:"consent_timeout" env:"VIBESUB_GOOGLE_CONSENT_TIMEOUT"`
}

// DashboardConfig tunes the dashboard screen.
type DashboardConfig struct {
	// FetchDelay is the pause before the first usage fetch after mount.
	FetchDelay time.Duration `yaml:"fetch_delay" env:"VIBESUB_DASHBOARD_FETCH_DELAY"`
}

// LoggingConfig mirrors log.ConfigFromStrings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"VIBESUB_LOG_LEVEL"`
	Format string `yaml:"format" env:"VIBESUB_LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:          "https://api.rxaigc.com",
			Timeout:          30 * time.Second,
			ValidateContract: true,
		},
		Identity: IdentityConfig{
			ToolkitURL: "https://identitytoolkit.googleapis.com",
			TokenURL:   "https://securetoken.googleapis.com",
			Google: GoogleConfig{
				ConsentTimeout: 5 * time.Minute,
			},
		},
		Dashboard: DashboardConfig{
			FetchDelay: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DefaultDir returns ~/.vibesub.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".vibesub"), nil
}

// Path returns the configuration file path, honouring VIBESUB_CONFIG.
func Path() (string, error) {
	if p := os.Getenv("VIBESUB_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path (a missing file yields defaults), overlays the
// environment and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "parse env", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path without the environment overlay. Used by
// `config set` so env values are not written back to disk.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read config: %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating the directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write config", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)).
			WithSuggestion("Run 'vibesub config set api.base_url https://api.rxaigc.com'")
	}
	if c.Dashboard.FetchDelay < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "dashboard.fetch_delay cannot be negative")
	}
	if c.API.Timeout < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "api.timeout cannot be negative")
	}
	return nil
}

// ResolveStateDir returns StateDir or ~/.vibesub.
func (c *Config) ResolveStateDir() (string, error) {
	if c.StateDir != "" {
		return c.StateDir, nil
	}
	return DefaultDir()
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error { *ptr(c) = v; return nil },
	}
}

func durationField(ptr func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return ptr(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*ptr(c) = d
			return nil
		},
	}
}

func boolField(ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*ptr(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"api.base_url":                  stringField(func(c *Config) *string { return &c.API.BaseURL }),
	"api.timeout":                   durationField(func(c *Config) *time.Duration { return &c.API.Timeout }),
	"api.validate_contract":         boolField(func(c *Config) *bool { return &c.API.ValidateContract }),
	"identity.api_key":              stringField(func(c *Config) *string { return &c.Identity.APIKey }),
	"identity.toolkit_url":          stringField(func(c *Config) *string { return &c.Identity.ToolkitURL }),
	"identity.token_url":            stringField(func(c *Config) *string { return &c.Identity.TokenURL }),
	"identity.google.client_id":     stringField(func(c *Config) *string { return &c.Identity.Google.ClientID }),
	"identity.google.client_secret": stringField(func(c *Config) *string { return &c.Identity.Google.ClientSecret }),
	"identity.google.auth_url":      stringField(func(c *Config) *string { return &c.Identity.Google.AuthURL }),
	"identity.google.token_url":     stringField(func(c *Config) *string { return &c.Identity.Google.TokenURL }),
	"identity.google.consent_timeout": durationField(func(c *Config) *time.Duration {
		return &c.Identity.Google.ConsentTimeout
	}),
	"dashboard.fetch_delay": durationField(func(c *Config) *time.Duration { return &c.Dashboard.FetchDelay }),
	"logging.level":         stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.format":        stringField(func(c *Config) *string { return &c.Logging.Format }),
	"locale":                stringField(func(c *Config) *string { return &c.Locale }),
	"state_dir":             stringField(func(c *Config) *string { return &c.StateDir }),
}

// Keys returns every settable dot-notation key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value at a dot-notation key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[strings.TrimSpace(key)]
	if !ok {
		return "", errors.NewConfigKeyError(key)
	}
	return f.get(c), nil
}

// Set parses value into the dot-notation key.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.TrimSpace(key)]
	if !ok {
		return errors.NewConfigKeyError(key)
	}
	if err := f.set(c, value); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid value for %s", key), err)
	}
	return nil
}
