package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/ux"
	"github.com/rxaigc/vibesub/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			format, _ := cmd.Flags().GetString("format")
			info := version.GetInfo()

			if format == "json" || format == "yaml" {
				formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
				if err != nil {
					return err
				}
				return formatter.Format(info)
			}

			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vibesub %s\n", info.Short())
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "include commit, build date and platform")
	return cmd
}
