package cmd

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/authstate"
	"github.com/rxaigc/vibesub/internal/config"
	"github.com/rxaigc/vibesub/internal/i18n"
	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/identity/consent"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/platform"
	"github.com/rxaigc/vibesub/internal/session"
	"github.com/rxaigc/vibesub/internal/usage"
	"github.com/rxaigc/vibesub/internal/ux"
	"github.com/rxaigc/vibesub/internal/version"
)

// State files inside the state directory.
const (
	credentialsFile = "credentials.json"
	cookiesFile     = "cookies.json"
)

// services is the object graph shared by the session commands.
type services struct {
	cc        *CommandContext
	cfg       *config.Config
	logger    *log.Logger
	printer   *i18n.Printer
	formatter ux.Formatter

	jar      *platform.FileJar
	platform *platform.Client
	identity *identity.Client
	bridge   *session.Bridge
	store    *authstate.Store
	tracker  *usage.Tracker
}

// newServices wires configuration, logging, the platform client, the
// identity client and the auth store for one invocation.
func newServices(cmd *cobra.Command) (*services, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := log.ConfigFromStrings(cfg.Logging.Level, cfg.Logging.Format)
	logCfg.Output = cmd.ErrOrStderr()
	logCfg.ServiceVersion = version.Version
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	formatter, err := ux.NewFormatter(cc.Format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return nil, err
	}

	stateDir, err := cfg.ResolveStateDir()
	if err != nil {
		return nil, err
	}

	jar, err := platform.OpenFileJar(filepath.Join(stateDir, cookiesFile))
	if err != nil {
		return nil, err
	}

	opts := []platform.Option{
		platform.WithCookieJar(jar),
		platform.WithTimeout(cfg.API.Timeout),
		platform.WithLogger(logger.With("component", "platform")),
	}
	if cfg.API.ValidateContract {
		contract, err := platform.DefaultContract()
		if err != nil {
			return nil, err
		}
		opts = append(opts, platform.WithContract(contract))
	}
	api := platform.NewClient(cfg.API.BaseURL, opts...)

	printer := i18n.New(cfg.Locale)

	toolkit := identity.NewToolkit(cfg.Identity.APIKey, cfg.Identity.ToolkitURL, cfg.Identity.TokenURL,
		&http.Client{Timeout: cfg.API.Timeout})
	idOpts := []identity.Option{
		identity.WithStore(identity.NewFileStore(filepath.Join(stateDir, credentialsFile))),
		identity.WithLogger(logger.With("component", "identity")),
	}
	if google := cfg.Identity.Google; google.ClientID != "" {
		flow, err := consent.New(consent.Config{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			AuthURL:      google.AuthURL,
			TokenURL:     google.TokenURL,
			Timeout:      google.ConsentTimeout,
		},
			consent.WithLogger(logger.With("component", "consent")),
			consent.WithNotify(func(url string) {
				fmt.Fprintln(cmd.ErrOrStderr(), printer.T("google.open_url", url))
			}),
		)
		if err != nil {
			return nil, err
		}
		idOpts = append(idOpts, identity.WithConsent(flow))
	}
	idClient := identity.NewClient(toolkit, idOpts...)

	bridge := session.NewBridge(api, idClient, nil)
	store := authstate.NewStore(idClient, bridge, nil)
	tracker := usage.NewTracker(usage.NewFetcher(api), store, nil)

	return &services{
		cc:        cc,
		cfg:       cfg,
		logger:    logger,
		printer:   printer,
		formatter: formatter,
		jar:       jar,
		platform:  api,
		identity:  idClient,
		bridge:    bridge,
		store:     store,
		tracker:   tracker,
	}, nil
}

// start restores the persisted session into the auth store.
func (s *services) start(ctx context.Context) error {
	return s.store.Start(ctx)
}

func (s *services) close() {
	s.store.Stop()
}

// withServices builds and starts the services around fn.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, s *services) error) error {
	s, err := newServices(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := s.start(ctx); err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}
