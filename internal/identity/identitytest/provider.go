// Package identitytest provides an in-process Identity Toolkit fake for
// tests of packages built on the identity client.
package identitytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// APIKey is the key the fake accepts.
const APIKey = "test-key"

// GoogleIDToken is the federated token the fake accepts for signInWithIdp.
const GoogleIDToken = "google-id-token"

type account struct {
	uid      string
	password string
}

// Provider is a fake identity provider. Calls counts requests per method.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]account
	calls    map[string]int
	nextUID  int
}

// NewServer starts a fake provider with one account,
// user@example.com / secret1 (uid-1).
func NewServer(t testing.TB) (*Provider, *httptest.Server) {
	t.Helper()
	p := &Provider{
		accounts: map[string]account{
			"user@example.com": {uid: "uid-1", password: "secret1"},
		},
		calls:   make(map[string]int),
		nextUID: 2,
	}
	server := httptest.NewServer(p)
	t.Cleanup(server.Close)
	return p, server
}

// Calls returns how often method (e.g. "accounts:signUp") was called.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// TotalCalls returns the number of requests served.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/v1/")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++

	if r.URL.Query().Get("key") != APIKey {
		writeError(w, "API_KEY_INVALID")
		return
	}

	var body map[string]any
	if r.Header.Get("Content-Type") == "application/json" {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	str := func(key string) string {
		s, _ := body[key].(string)
		return s
	}

	switch method {
	case "accounts:signInWithPassword":
		acct, ok := p.accounts[str("email")]
		if !ok || acct.password != str("password") {
			writeError(w, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		writeAuth(w, acct.uid, str("email"), "")
	case "accounts:signUp":
		email, password := str("email"), str("password")
		switch {
		case !strings.Contains(email, "@"):
			writeError(w, "INVALID_EMAIL")
		case len(password) < 6:
			writeError(w, "WEAK_PASSWORD : Password should be at least 6 characters")
		default:
			if _, exists := p.accounts[email]; exists {
				writeError(w, "EMAIL_EXISTS")
				return
			}
			uid := fmt.Sprintf("uid-%d", p.nextUID)
			p.nextUID++
			p.accounts[email] = account{uid: uid, password: password}
			writeAuth(w, uid, email, "")
		}
	case "accounts:signInWithIdp":
		post, _ := url.ParseQuery(str("postBody"))
		if post.Get("id_token") != GoogleIDToken {
			writeError(w, "INVALID_IDP_RESPONSE")
			return
		}
		writeAuth(w, "uid-google", "google@example.com", post.Get("providerId"))
	case "accounts:lookup":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]string{{"localId": "uid-1", "email": "user@example.com"}},
		})
	case "token":
		_ = r.ParseForm()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":      fmt.Sprintf("refreshed-%d", p.calls[method]),
			"refresh_token": "refresh-rotated",
			"expires_in":    "3600",
		})
	default:
		http.NotFound(w, r)
	}
}

func writeAuth(w http.ResponseWriter, uid, email, providerID string) {
	_ = json.NewEncoder(w).Encode(map[string]string{
		"localId":      uid,
		"email":        email,
		"providerId":   providerID,
		"idToken":      "id-" + uid,
		"refreshToken": "refresh-" + uid,
		"expiresIn":    "3600",
	})
}

func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": http.StatusBadRequest, "message": message},
	})
}
