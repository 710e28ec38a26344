package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/tui"
	"github.com/rxaigc/vibesub/internal/ux"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and create a server session",
		Long: `Sign in with email and password, or with Google in the browser.
Missing credentials are prompted for when running in a terminal.

Examples:
  vibesub login
  vibesub login --email user@example.com --password mypass
  vibesub login --google`,
		RunE: runLogin,
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().Bool("google", false, "sign in with Google in the browser")
	cmd.MarkFlagsMutuallyExclusive("google", "email")
	cmd.MarkFlagsMutuallyExclusive("google", "password")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	google, _ := cmd.Flags().GetBool("google")

	return withServices(cmd, func(ctx context.Context, s *services) error {
		var (
			user *identity.User
			err  error
		)
		if google {
			fmt.Fprintln(cmd.ErrOrStderr(), s.printer.T("google.connecting"))
			user, err = s.store.LoginWithGoogle(ctx)
		} else {
			creds := tui.Credentials{Email: email, Password: password}
			if err := completeCredentials(s, &creds, false); err != nil {
				return err
			}
			user, err = s.store.Login(ctx, strings.TrimSpace(creds.Email), creds.Password)
		}
		if err != nil {
			fallback := "login.failed"
			if google {
				fallback = "google.failed"
			}
			fmt.Fprintln(cmd.ErrOrStderr(), s.printer.Error(err, fallback))
			return ux.Reported(err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), s.printer.T("login.success", user.Email))
		return nil
	})
}

func newSignUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Long: `Create a VibeSub account with email and password. The password must be
entered twice; mismatches are rejected before contacting the server.

Examples:
  vibesub signup
  vibesub signup --email user@example.com --password mypass --confirm mypass`,
		RunE: runSignUp,
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().String("confirm", "", "password confirmation")
	return cmd
}

func runSignUp(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	confirm, _ := cmd.Flags().GetString("confirm")

	return withServices(cmd, func(ctx context.Context, s *services) error {
		creds := tui.Credentials{Email: email, Password: password, Confirm: confirm}
		if err := completeCredentials(s, &creds, true); err != nil {
			return err
		}

		if creds.Password != creds.Confirm {
			err := errors.NewPasswordMismatchError()
			fmt.Fprintln(cmd.ErrOrStderr(), s.printer.Error(err, "signup.failed"))
			return ux.Reported(err)
		}

		user, err := s.store.SignUp(ctx, strings.TrimSpace(creds.Email), creds.Password)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), s.printer.Error(err, "signup.failed"))
			return ux.Reported(err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), s.printer.T("signup.success"))
		fmt.Fprintln(cmd.OutOrStdout(), s.printer.T("login.success", user.Email))
		return nil
	})
}

// completeCredentials prompts for missing fields in a terminal and fails
// with a usage error otherwise.
func completeCredentials(s *services, creds *tui.Credentials, confirm bool) error {
	complete := creds.Email != "" && creds.Password != ""
	if confirm {
		complete = complete && creds.Confirm != ""
	}
	if complete {
		return nil
	}

	if !tui.ShouldPrompt() {
		if confirm {
			return fmt.Errorf("required flag(s) \"email\", \"password\", \"confirm\" not set")
		}
		return fmt.Errorf("required flag(s) \"email\", \"password\" not set")
	}
	if confirm {
		return tui.PromptForSignUp(s.printer, creds)
	}
	return tui.PromptForLogin(s.printer, creds)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the server session and sign out",
		Long: `End the server session and sign out. Sign-out always completes; server
and cookie cleanup failures are reported as warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *services) error {
				if !endSession(ctx, s.store, s.jar, s.logger) {
					fmt.Fprintln(cmd.ErrOrStderr(), s.printer.T("logout.cookies_kept"))
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.printer.T("logout.done"))
				return nil
			})
		},
	}
}

// endSession signs out and drops the saved cookies. It reports whether
// the cookies were removed; a failure is logged and does not undo the
// sign-out.
func endSession(ctx context.Context, store interface{ Logout(context.Context) }, jar interface{ Clear() error }, logger *log.Logger) bool {
	store.Logout(ctx)
	if err := jar.Clear(); err != nil {
		logger.WithError(err).WarnContext(ctx, "failed to clear cookies")
		return false
	}
	return true
}
