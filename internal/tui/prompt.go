package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/rxaigc/vibesub/internal/i18n"
)

// Credentials is the result of a credential prompt.
type Credentials struct {
	Email    string
	Password string
	Confirm  string
}

// PromptForLogin displays the email and password form outside the full
// screen flow, for the login command.
func PromptForLogin(printer *i18n.Printer, creds *Credentials) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(printer.T("login.email")).
				Value(&creds.Email).
				Validate(required),
			huh.NewInput().
				Title(printer.T("login.password")).
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(required),
		).Title(printer.T("entry.prompt")),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// PromptForSignUp displays the sign-up form. Fields already set in creds
// are used as defaults.
func PromptForSignUp(printer *i18n.Printer, creds *Credentials) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(printer.T("signup.email")).
				Value(&creds.Email).
				Validate(required),
			huh.NewInput().
				Title(printer.T("signup.password")).
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(required),
			huh.NewInput().
				Title(printer.T("signup.confirm")).
				EchoMode(huh.EchoModePassword).
				Value(&creds.Confirm).
				Validate(required),
		).Title(printer.T("entry.signup")),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
