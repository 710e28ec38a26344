package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/config"
	"github.com/rxaigc/vibesub/internal/ux"
)

// secretKeys are masked by config view.
var secretKeys = map[string]bool{
	"identity.google.client_secret": true,
}

// configView is the output of config view.
type configView struct {
	cfg *config.Config
}

func (v configView) Fields() []ux.Field {
	fields := make([]ux.Field, 0, len(config.Keys()))
	for _, key := range config.Keys() {
		value, _ := v.cfg.Get(key)
		if secretKeys[key] && value != "" {
			value = "********"
		}
		fields = append(fields, ux.Field{Label: key, Value: value})
	}
	return fields
}

func (v configView) values() map[string]string {
	out := make(map[string]string)
	for _, f := range v.Fields() {
		out[f.Label] = f.Value
	}
	return out
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibesub configuration",
		Long: `View and edit the configuration file. Keys use dot notation, for example
api.base_url or dashboard.fetch_delay. Environment variables override the file
and are included by view and get.`,
	}
	cmd.AddCommand(newConfigViewCmd(), newConfigGetCmd(), newConfigSetCmd(), newConfigPathCmd())
	return cmd
}

func newConfigViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			formatter, err := ux.NewFormatter(cc.Format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
			if err != nil {
				return err
			}

			view := configView{cfg: cfg}
			if cc.Format == "json" || cc.Format == "yaml" {
				return formatter.Format(view.values())
			}
			return formatter.Format(view)
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Long:  "Print one configuration value.\n\nKeys:\n  " + strings.Join(config.Keys(), "\n  "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value and save the file. Environment overrides are
not written back.

Examples:
  vibesub config set api.base_url https://api.rxaigc.com
  vibesub config set dashboard.fetch_delay 1s
  vibesub config set locale zh-CN`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path, err := cc.ResolveConfigPath()
			if err != nil {
				return err
			}

			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", strings.TrimSpace(args[0]), path)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path, err := cc.ResolveConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
