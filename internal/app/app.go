// Package app routes between the entry screen and the dashboard.
package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rxaigc/vibesub/internal/authstate"
	"github.com/rxaigc/vibesub/internal/guard"
	"github.com/rxaigc/vibesub/internal/i18n"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/tui"
	"github.com/rxaigc/vibesub/internal/usage"
)

// ScreenFactory builds the screen mounted at a route.
type ScreenFactory func(ctx context.Context) tui.Screen

// Runner runs a screen until it quits and returns its final model.
type Runner func(ctx context.Context, m tea.Model) (tea.Model, error)

// RunProgram is the default Runner.
func RunProgram(ctx context.Context, m tea.Model) (tea.Model, error) {
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("run screen: %w", err)
	}
	return final, nil
}

// Router mounts one screen at a time. A screen unmounts when it quits;
// the route it navigated to is mounted next, and an empty route ends the
// session.
type Router struct {
	routes map[string]ScreenFactory
	run    Runner
	logger *log.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithRunner replaces the bubbletea program runner.
func WithRunner(run Runner) Option {
	return func(r *Router) {
		r.run = run
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router over routes.
func NewRouter(routes map[string]ScreenFactory, opts ...Option) *Router {
	r := &Router{routes: routes, run: RunProgram, logger: log.Component("app")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run mounts start and follows navigation until a screen quits without
// navigating.
func (r *Router) Run(ctx context.Context, start string) error {
	route := start
	for route != "" {
		factory, ok := r.routes[route]
		if !ok {
			return fmt.Errorf("unknown route %q", route)
		}

		screen := factory(ctx)
		final, err := r.run(ctx, screen)
		if closer, ok := screen.(interface{ Close() }); ok {
			closer.Close()
		}
		if err != nil {
			return err
		}
		if s, ok := final.(tui.Screen); ok {
			screen = s
		}

		next := screen.Next()
		r.logger.DebugContext(ctx, "navigate", "from", route, "to", next)
		route = next

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Deps are the shared services the screens need.
type Deps struct {
	Store      *authstate.Store
	Tracker    *usage.Tracker
	Printer    *i18n.Printer
	FetchDelay time.Duration
}

// Routes returns the route table: the entry screen at "/" and the
// dashboard at "/dashboard".
func Routes(d Deps) map[string]ScreenFactory {
	return map[string]ScreenFactory{
		guard.RouteEntry: func(ctx context.Context) tui.Screen {
			return tui.NewEntryModel(ctx, d.Store, d.Printer)
		},
		guard.RouteDashboard: func(ctx context.Context) tui.Screen {
			return tui.NewDashboardModel(ctx, d.Store, d.Tracker, d.Printer, d.FetchDelay)
		},
	}
}
