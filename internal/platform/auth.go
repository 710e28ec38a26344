package platform

import (
	"context"
	"net/http"
)

// Server session endpoints.
const (
	PathSessionLogin  = "/api/auth/sessionLogin"
	PathSessionLogout = "/api/auth/sessionLogout"
)

// SessionStatusSuccess is the only status that means a session was created.
const SessionStatusSuccess = "success"

// SessionLoginRequest exchanges an identity token for a server session
type SessionLoginRequest struct {
	IDToken string `json:"idToken"`
}

// SessionStatus is the sessionLogin response body
type SessionStatus struct {
	Status string `json:"status"`
}

// OK reports whether the server confirmed the session.
func (s *SessionStatus) OK() bool {
	return s != nil && s.Status == SessionStatusSuccess
}

// SessionLogin posts the identity token. The response's Set-Cookie lands
// in the client's cookie jar.
func (c *Client) SessionLogin(ctx context.Context, idToken string) (*SessionStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, PathSessionLogin, SessionLoginRequest{IDToken: idToken}, "")
	if err != nil {
		return nil, err
	}

	var status SessionStatus
	if err := c.parseResponse(resp, http.MethodPost, PathSessionLogin, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// SessionLogout asks the server to clear the session cookie.
func (c *Client) SessionLogout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, PathSessionLogout, nil, "")
	if err != nil {
		return err
	}
	return c.parseResponse(resp, http.MethodPost, PathSessionLogout, nil)
}
