package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rxaigc/vibesub/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError analyzes an error and adds contextual suggestions. Coded
// errors that already carry suggestions are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var coded *errors.VibeSubError
	if stderrors.As(err, &coded) && len(coded.Suggestions) > 0 {
		return err
	}

	errMsg := err.Error()

	if errors.HasCode(err, errors.ErrCodeFetchFailed) {
		return NewErrorWithSuggestion(err,
			"Your session may have expired. Run 'vibesub login' and try again")
	}

	// API key errors
	if strings.Contains(errMsg, "API_KEY_INVALID") || strings.Contains(errMsg, "API key not valid") {
		return NewErrorWithSuggestion(err,
			"Set identity.api_key with 'vibesub config set identity.api_key <key>' or VIBESUB_IDENTITY_API_KEY")
	}

	// Contract violations
	if strings.Contains(errMsg, "violates API contract") {
		return NewErrorWithSuggestion(err,
			"The server answered in an unexpected shape. Update vibesub, or run 'vibesub config set api.validate_contract false'")
	}

	// Permission errors
	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check permissions on the state directory ('vibesub config get state_dir', default ~/.vibesub)")
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no route to host") ||
		strings.Contains(errMsg, "no such host") {
		return NewErrorWithSuggestion(err,
			"Check your network connection and 'vibesub config get api.base_url'")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// ReportedError marks an error whose message was already shown to the user.
type ReportedError struct {
	Err error
}

// Error implements the error interface
func (e *ReportedError) Error() string {
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ReportedError) Unwrap() error {
	return e.Err
}

// Reported marks err as already shown, so the entry point prints nothing
// more than the exit code implies.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &ReportedError{Err: err}
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var reported *ReportedError
	return stderrors.As(err, &reported)
}
