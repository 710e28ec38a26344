// Package consent runs the Google OAuth2 authorization code flow from a
// terminal: it opens the consent page in a browser, receives the redirect
// on a loopback listener and exchanges the code (with PKCE) for an
// id_token.
package consent

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/log"
)

// CallbackPath is where the provider redirects after consent.
const CallbackPath = "/callback"

// Config holds the OAuth2 client settings.
type Config struct {
	// ClientID of the Google OAuth client (desktop type).
	ClientID string

	// ClientSecret is optional for desktop clients using PKCE.
	ClientSecret string

	// AuthURL and TokenURL override google.Endpoint.
	AuthURL  string
	TokenURL string

	// Scopes default to openid, email and profile.
	Scopes []string

	// Timeout bounds the whole flow. Default: 5 minutes.
	Timeout time.Duration

	// ListenAddr for the loopback redirect. Default: 127.0.0.1:0.
	ListenAddr string
}

// Flow is a reusable consent flow.
type Flow struct {
	config Config
	oauth  oauth2.Config
	opener func(url string) error
	notify func(url string)
	logger *log.Logger
}

// Option configures a Flow.
type Option func(*Flow)

// WithOpener replaces the browser launcher.
func WithOpener(open func(url string) error) Option {
	return func(f *Flow) { f.opener = open }
}

// WithNotify is called with the consent URL before the browser opens, so
// it can be shown for manual use.
func WithNotify(notify func(url string)) Option {
	return func(f *Flow) { f.notify = notify }
}

// WithLogger sets the flow logger.
func WithLogger(logger *log.Logger) Option {
	return func(f *Flow) { f.logger = logger }
}

// New validates cfg and builds a Flow.
func New(cfg Config, opts ...Option) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Google client ID is required").
			WithSuggestion("Set identity.google.client_id with 'vibesub config set identity.google.client_id <id>'")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	f := &Flow{
		config: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       cfg.Scopes,
		},
		opener: OpenBrowser,
		notify: func(string) {},
		logger: log.Component("consent"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type callbackResult struct {
	code string
	err  error
}

// IDToken runs the flow and returns the Google id_token. A denied consent,
// a cancelled context or the timeout yield a PopupClosed error.
func (f *Flow) IDToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	ln, err := net.Listen("tcp", f.config.ListenAddr)
	if err != nil {
		return "", errors.NewProviderError("failed to start sign-in callback listener", err)
	}

	conf := f.oauth
	conf.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), CallbackPath)

	state, err := generateRandomString(32)
	if err != nil {
		_ = ln.Close()
		return "", errors.NewProviderError("failed to generate state", err)
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           f.router(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}

	authURL := conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			return errors.NewProviderError("sign-in callback listener failed", err)
		}
		return nil
	})

	var code string
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		select {
		case res := <-results:
			if res.err != nil {
				return res.err
			}
			code = res.code
			return nil
		case <-gctx.Done():
			return errors.NewPopupClosedError(gctx.Err())
		}
	})

	f.notify(authURL)
	if err := f.opener(authURL); err != nil {
		f.logger.WithError(err).WarnContext(ctx, "could not open browser; open the sign-in URL manually")
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", errors.NewProviderError("failed to exchange authorization code", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.NewProviderError("no id_token in token response", nil)
	}

	f.logger.DebugContext(ctx, "consent flow completed", "redirect", conf.RedirectURL)
	return rawIDToken, nil
}

func (f *Flow) router(state string, results chan<- callbackResult) http.Handler {
	r := chi.NewRouter()
	r.Get(CallbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		var res callbackResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		case q.Get("error") == "access_denied":
			res.err = errors.NewPopupClosedError(fmt.Errorf("consent denied"))
		case q.Get("error") != "":
			res.err = errors.NewProviderError(fmt.Sprintf("authorization failed: %s", q.Get("error")), nil)
		case q.Get("code") == "":
			res.err = errors.NewProviderError("missing authorization code", nil)
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
			http.Error(w, "sign-in already completed", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			_, _ = fmt.Fprint(w, pageFailed)
			return
		}
		_, _ = fmt.Fprint(w, pageDone)
	})
	return r
}

const pageDone = `<!doctype html><html><body><p>VibeSub sign-in complete. You can close this window.</p></body></html>`

const pageFailed = `<!doctype html><html><body><p>VibeSub sign-in failed. Return to the terminal.</p></body></html>`

// generateRandomString generates a cryptographically secure random string.
func generateRandomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
