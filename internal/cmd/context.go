package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/config"
)

// CommandContext holds the persistent flags of one invocation.
type CommandContext struct {
	// ConfigPath overrides the configuration file location
	ConfigPath string

	// LogLevel overrides logging.level when set
	LogLevel string

	// Locale overrides the configured locale when set
	Locale string

	// Format is the output format: text, json or yaml
	Format string
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	locale, err := cmd.Flags().GetString("locale")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Locale:     locale,
		Format:     format,
	}, nil
}

// ResolveConfigPath returns the --config value or the default path.
func (c *CommandContext) ResolveConfigPath() (string, error) {
	if c.ConfigPath != "" {
		return c.ConfigPath, nil
	}
	return config.Path()
}

// LoadConfig loads the configuration and applies flag overrides.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	path, err := c.ResolveConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.Locale != "" {
		cfg.Locale = c.Locale
	}
	return cfg, nil
}
