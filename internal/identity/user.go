// Package identity is the client side of the third-party identity provider:
// credential and federated sign-in, sign-up, sign-out, a persisted session
// and an observable "current user".
package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeebo/blake3"

	"github.com/rxaigc/vibesub/internal/errors"
)

// ProviderGoogle is the federated provider id used for consent sign-in.
const ProviderGoogle = "google.com"

// ProviderPassword identifies email/password accounts.
const ProviderPassword = "password"

// User is a read-only handle on the signed-in account. Only the Client
// that produced it mutates the underlying session.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`

	client *Client
}

// IDToken returns a valid identity token, refreshing it when it is about to
// expire or when forceRefresh is set.
func (u *User) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if u == nil || u.client == nil {
		return "", errors.NewProviderError("no signed-in user", nil)
	}
	return u.client.idToken(ctx, u.UID, forceRefresh)
}

// Claims are the identity token claims the client reads. They are parsed
// without verification; the provider and the platform API verify tokens.
type Claims struct {
	jwt.RegisteredClaims

	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// ParseClaims extracts the claims from an identity token.
func ParseClaims(token string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("unexpected identity token claims")
	}
	return claims, nil
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hasher := blake3.New()
	_, _ = hasher.Write([]byte(token))
	return fmt.Sprintf("%x", hasher.Sum(nil))[:16]
}
