package identity

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rxaigc/vibesub/internal/errors"
)

// Toolkit speaks the Identity Toolkit and Secure Token REST APIs.
type Toolkit struct {
	APIKey     string
	BaseURL    string
	TokenURL   string
	HTTPClient *http.Client
}

// NewToolkit creates a provider REST client.
func NewToolkit(apiKey, baseURL, tokenURL string, hc *http.Client) *Toolkit {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Toolkit{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		TokenURL:   strings.TrimRight(tokenURL, "/"),
		HTTPClient: hc,
	}
}

// AuthResponse is shared by signInWithPassword, signUp and signInWithIdp.
type AuthResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	ProviderID   string `json:"providerId"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// LookupResponse is the accounts:lookup body.
type LookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
	} `json:"users"`
}

// RefreshResponse is the Secure Token refresh body.
type RefreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// providerErrorBody is the provider's error envelope.
type providerErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a provider rejection. Reason is the leading token of the
// provider message, e.g. "EMAIL_EXISTS".
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider: status %d: %s", e.Status, e.Message)
}

// Provider reasons with a dedicated mapping.
const (
	ReasonInvalidPassword         = "INVALID_PASSWORD"
	ReasonEmailNotFound           = "EMAIL_NOT_FOUND"
	ReasonInvalidLoginCredentials = "INVALID_LOGIN_CREDENTIALS"
	ReasonEmailExists             = "EMAIL_EXISTS"
	ReasonWeakPassword            = "WEAK_PASSWORD"
	ReasonInvalidEmail            = "INVALID_EMAIL"
	ReasonTokenExpired            = "TOKEN_EXPIRED"
	ReasonInvalidRefreshToken     = "INVALID_REFRESH_TOKEN"
	ReasonUserNotFound            = "USER_NOT_FOUND"
	ReasonUserDisabled            = "USER_DISABLED"
)

// classify turns a provider failure into a coded error.
func classify(op string, err error) error {
	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		return errors.NewProviderError(fmt.Sprintf("%s failed", op), err)
	}
	switch apiErr.Reason {
	case ReasonInvalidPassword, ReasonEmailNotFound, ReasonInvalidLoginCredentials:
		return errors.NewInvalidCredentialsError(apiErr)
	case ReasonEmailExists:
		return errors.Wrap(errors.ErrCodeEmailInUse, "email address is already registered", apiErr).
			WithSuggestion("Run 'vibesub login' to sign in instead")
	case ReasonWeakPassword:
		return errors.Wrap(errors.ErrCodeWeakPassword, "password is too weak", apiErr).
			WithSuggestion("Use at least 6 characters")
	case ReasonInvalidEmail:
		return errors.Wrap(errors.ErrCodeInvalidEmail, "email address is invalid", apiErr)
	default:
		return errors.NewProviderError(fmt.Sprintf("%s failed", op), apiErr)
	}
}

// sessionRevoked reports whether the refresh token can no longer be used.
func sessionRevoked(err error) bool {
	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Reason {
	case ReasonTokenExpired, ReasonInvalidRefreshToken, ReasonUserNotFound, ReasonUserDisabled:
		return true
	}
	return false
}

// SignInWithPassword calls accounts:signInWithPassword.
func (t *Toolkit) SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := t.postJSON(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignUp calls accounts:signUp.
func (t *Toolkit) SignUp(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := t.postJSON(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignInWithIdp exchanges a federated id_token for a provider session.
func (t *Toolkit) SignInWithIdp(ctx context.Context, providerID, idpToken, requestURI string) (*AuthResponse, error) {
	postBody := url.Values{}
	postBody.Set("id_token", idpToken)
	postBody.Set("providerId", providerID)

	var resp AuthResponse
	err := t.postJSON(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":          postBody.Encode(),
		"requestUri":        requestURI,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ProviderID == "" {
		resp.ProviderID = providerID
	}
	return &resp, nil
}

// Lookup returns the profile behind idToken.
func (t *Toolkit) Lookup(ctx context.Context, idToken string) (*LookupResponse, error) {
	var resp LookupResponse
	if err := t.postJSON(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh trades a refresh token for a fresh identity token.
func (t *Toolkit) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.TokenURL+"/v1/token?key="+url.QueryEscape(t.APIKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp RefreshResponse
	if err := t.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *Toolkit) postJSON(ctx context.Context, method string, body any, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s?key=%s", t.BaseURL, method, url.QueryEscape(t.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req, target)
}

func (t *Toolkit) do(req *http.Request, target any) error {
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope providerErrorBody
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		apiErr.Reason = strings.TrimSpace(strings.SplitN(apiErr.Message, ":", 2)[0])
		return apiErr
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// expiry converts an expiresIn seconds string into an absolute time.
func expiry(now time.Time, expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return now.Add(time.Duration(secs) * time.Second)
}
