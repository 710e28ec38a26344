package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	contract, err := DefaultContract()
	require.NoError(t, err)

	opts = append([]Option{WithContract(contract)}, opts...)
	return NewClient(server.URL+"/", opts...), server
}

func TestSessionLogin(t *testing.T) {
	var got SessionLoginRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/sessionLogin", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	jar, err := OpenFileJar(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, err)
	client, server := newTestClient(t, mux, WithCookieJar(jar))

	status, err := client.SessionLogin(context.Background(), "id-token")
	require.NoError(t, err)
	assert.True(t, status.OK())
	assert.Equal(t, "id-token", got.IDToken)
	assert.True(t, jar.HasSession(server.URL))
}

func TestSessionLoginNotSuccess(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error"}`))
	})
	client, _ := newTestClient(t, handler)

	status, err := client.SessionLogin(context.Background(), "id-token")
	require.NoError(t, err)
	assert.False(t, status.OK())
}

func TestSessionLoginContractViolation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	client, _ := newTestClient(t, handler)

	_, err := client.SessionLogin(context.Background(), "id-token")
	var contractErr *ContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, PathSessionLogin, contractErr.Path)
}

func TestSessionLogoutSendsCookie(t *testing.T) {
	var sawCookie bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/sessionLogin", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("POST /api/auth/sessionLogout", func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("session")
		sawCookie = err == nil
		http.SetCookie(w, &http.Cookie{Name: "session", Path: "/", MaxAge: -1})
	})

	jar, err := OpenFileJar(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, err)
	client, server := newTestClient(t, mux, WithCookieJar(jar))

	_, err = client.SessionLogin(context.Background(), "id-token")
	require.NoError(t, err)
	require.NoError(t, client.SessionLogout(context.Background()))

	assert.True(t, sawCookie)
	assert.False(t, jar.HasSession(server.URL))
}

func TestLimitInfo(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathLimitInfo, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"daily_limit":10,"used_today":3}`))
	})
	client, _ := newTestClient(t, handler)

	info, err := client.LimitInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 10, info.DailyLimit)
	assert.Equal(t, 3, info.UsedToday)
	assert.InDelta(t, 30.0, info.Percentage(), 0.001)
}

func TestLimitInfoWithoutBearer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	})
	client, _ := newTestClient(t, handler)

	_, err := client.LimitInfo(context.Background(), "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "unauthorized", statusErr.Message)
}

func TestLimitInfoRejectsNegativeUsage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"daily_limit":10,"used_today":-1}`))
	})
	client, _ := newTestClient(t, handler)

	_, err := client.LimitInfo(context.Background(), "tok")
	var contractErr *ContractError
	assert.ErrorAs(t, err, &contractErr)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name string
		info LimitInfo
		want float64
	}{
		{"zero limit", LimitInfo{DailyLimit: 0, UsedToday: 5}, 0},
		{"half", LimitInfo{DailyLimit: 10, UsedToday: 5}, 50},
		{"over limit", LimitInfo{DailyLimit: 10, UsedToday: 15}, 150},
		{"unused", LimitInfo{DailyLimit: 20}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.info.Percentage(), 0.001)
		})
	}
}

func TestContractOperations(t *testing.T) {
	contract, err := DefaultContract()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET /api/tasks/limit/info",
		"POST /api/auth/sessionLogin",
		"POST /api/auth/sessionLogout",
	}, contract.Operations())
}

func TestLoadContractInvalid(t *testing.T) {
	_, err := LoadContract([]byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"))
	assert.Error(t, err)
}
