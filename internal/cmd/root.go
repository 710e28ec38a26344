package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/app"
	"github.com/rxaigc/vibesub/internal/guard"
	"github.com/rxaigc/vibesub/internal/ux"
)

// NewRootCmd builds the vibesub command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vibesub",
		Short: "VibeSub account and usage client",
		Long: `vibesub signs you in to VibeSub and shows your account and daily usage.

Run without a subcommand to open the interactive client: sign in with email,
Google or a new account, then land on the dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, guard.RouteEntry)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.vibesub/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("locale", "", "message locale, e.g. en-US or zh-CN")
	flags.String("format", "text", "output format: "+strings.Join(ux.Formats, ", "))

	rootCmd.AddCommand(
		newDashboardCmd(),
		newLoginCmd(),
		newSignUpCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newTokenCmd(),
		newUsageCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the usage dashboard",
		Long: `Open the dashboard directly. Visitors who are not signed in are sent to
the sign-in screen.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, guard.RouteDashboard)
		},
	}
}

// runApp opens the interactive client at route.
func runApp(cmd *cobra.Command, route string) error {
	return withServices(cmd, func(ctx context.Context, s *services) error {
		router := app.NewRouter(app.Routes(app.Deps{
			Store:      s.store,
			Tracker:    s.tracker,
			Printer:    s.printer,
			FetchDelay: s.cfg.Dashboard.FetchDelay,
		}), app.WithLogger(s.logger.With("component", "app")))
		return router.Run(ctx, route)
	})
}
