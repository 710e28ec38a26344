package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Identity provider errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodePopupClosed        ErrorCode = "AUTH-002"
	ErrCodeProviderError      ErrorCode = "AUTH-003"
	ErrCodeEmailInUse         ErrorCode = "AUTH-004"
	ErrCodeWeakPassword       ErrorCode = "AUTH-005"
	ErrCodeInvalidEmail       ErrorCode = "AUTH-006"
	ErrCodePasswordMismatch   ErrorCode = "AUTH-007"

	// Server session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionEstablishmentFailed ErrorCode = "SESSION-001"
	ErrCodeSessionTeardownFailed      ErrorCode = "SESSION-002"

	// Usage API errors (USAGE-001 to USAGE-099)
	ErrCodeFetchFailed ErrorCode = "USAGE-001"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigKey     ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileReadFailed  ErrorCode = "IO-001"
	ErrCodeFileWriteFailed ErrorCode = "IO-002"
	ErrCodeFileUnmarshal   ErrorCode = "IO-003"
)

// Category returns the prefix of the code, e.g. "AUTH" for "AUTH-001".
func (c ErrorCode) Category() string {
	if i := strings.IndexByte(string(c), '-'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// VibeSubError represents an enhanced error with code, suggestions, and documentation
type VibeSubError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error

	// Status is the HTTP status that produced the error, when there was one.
	Status int
}

// Error implements the error interface
func (e *VibeSubError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *VibeSubError) Unwrap() error {
	return e.Cause
}

// Is matches another *VibeSubError by code, so a bare New(code, "") can be
// used as a sentinel with errors.Is.
func (e *VibeSubError) Is(target error) bool {
	t, ok := target.(*VibeSubError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new VibeSubError
func New(code ErrorCode, message string) *VibeSubError {
	return &VibeSubError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new VibeSubError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *VibeSubError {
	return &VibeSubError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *VibeSubError) WithSuggestion(suggestion string) *VibeSubError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *VibeSubError) WithSuggestions(suggestions ...string) *VibeSubError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *VibeSubError) WithDocs(url string) *VibeSubError {
	e.DocsURL = url
	return e
}

// WithStatus records the HTTP status that caused the error
func (e *VibeSubError) WithStatus(status int) *VibeSubError {
	e.Status = status
	return e
}

// CodeOf returns the code of the first VibeSubError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var vErr *VibeSubError
	if stderrors.As(err, &vErr) {
		return vErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a VibeSubError with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, New(code, ""))
}

// Common error constructors for frequently used errors

// NewInvalidCredentialsError is returned when the provider rejects an email/password pair
func NewInvalidCredentialsError(cause error) *VibeSubError {
	return Wrap(ErrCodeInvalidCredentials, "invalid email or password", cause).
		WithSuggestion("Check your email and password and try again").
		WithSuggestion("Run 'vibesub signup' if you do not have an account yet")
}

// NewPopupClosedError is returned when the consent flow was cancelled or timed out
func NewPopupClosedError(cause error) *VibeSubError {
	return Wrap(ErrCodePopupClosed, "sign-in window was closed before completing", cause).
		WithSuggestion("Run 'vibesub login --google' again and finish the consent in your browser")
}

// NewProviderError wraps an unexpected identity provider failure
func NewProviderError(message string, cause error) *VibeSubError {
	return Wrap(ErrCodeProviderError, message, cause).
		WithSuggestion("Check your network connection").
		WithSuggestion("Verify identity.api_key with 'vibesub config get identity.api_key'")
}

// NewPasswordMismatchError is the local sign-up validation failure
func NewPasswordMismatchError() *VibeSubError {
	return New(ErrCodePasswordMismatch, "passwords do not match")
}

// NewSessionEstablishmentError is returned when the server refused the token exchange
func NewSessionEstablishmentError(detail string, cause error) *VibeSubError {
	return Wrap(ErrCodeSessionEstablishmentFailed, fmt.Sprintf("failed to create server session: %s", detail), cause).
		WithSuggestion("Try signing in again").
		WithSuggestion("Check api.base_url with 'vibesub config get api.base_url'")
}

// NewFetchFailedError is returned when the usage endpoint answers with a non-2xx status
func NewFetchFailedError(status int) *VibeSubError {
	return New(ErrCodeFetchFailed, fmt.Sprintf("failed to fetch usage info: status %d", status)).
		WithStatus(status)
}

// NewConfigKeyError creates an unknown configuration key error
func NewConfigKeyError(key string) *VibeSubError {
	return New(ErrCodeConfigKey, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Run 'vibesub config view' to list available keys")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *VibeSubError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
