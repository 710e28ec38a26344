// Package guard decides, per screen, what to render for an auth state and
// when to redirect.
package guard

import (
	"sync"

	"github.com/rxaigc/vibesub/internal/authstate"
)

// Routes addressed by the guards.
const (
	RouteEntry     = "/"
	RouteDashboard = "/dashboard"
)

// Phase is the guard's view of the auth state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// PhaseOf maps an auth state to a phase.
func PhaseOf(s authstate.State) Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.User != nil:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Polarity selects which phase a screen redirects away from.
type Polarity int

const (
	// Protected screens send unauthenticated visitors to the entry route.
	Protected Polarity = iota
	// Entry screens send authenticated visitors to the dashboard.
	Entry
)

// Render is what the screen should show for a state.
type Render int

const (
	// RenderPlaceholder is shown while loading.
	RenderPlaceholder Render = iota
	// RenderNothing is shown while a redirect is pending.
	RenderNothing
	// RenderContent is the screen itself.
	RenderContent
)

// Navigator performs a route change.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// Guard is a three-phase redirect machine for one mounted screen.
type Guard struct {
	polarity Polarity
	nav      Navigator

	mu   sync.Mutex
	seen bool
	last Phase
}

// New creates a guard for a screen of the given polarity.
func New(polarity Polarity, nav Navigator) *Guard {
	return &Guard{polarity: polarity, nav: nav}
}

// Target is where the guard redirects.
func (g *Guard) Target() string {
	if g.polarity == Protected {
		return RouteEntry
	}
	return RouteDashboard
}

func (g *Guard) redirectPhase() Phase {
	if g.polarity == Protected {
		return PhaseUnauthenticated
	}
	return PhaseAuthenticated
}

// Observe is called on every render with the current state. It navigates
// once when the state enters the redirecting phase; repeated observations
// of the same phase do not navigate again.
func (g *Guard) Observe(s authstate.State) Render {
	phase := PhaseOf(s)

	g.mu.Lock()
	entered := !g.seen || g.last != phase
	g.seen = true
	g.last = phase
	g.mu.Unlock()

	switch phase {
	case PhaseLoading:
		return RenderPlaceholder
	case g.redirectPhase():
		if entered {
			g.nav.Navigate(g.Target())
		}
		return RenderNothing
	default:
		return RenderContent
	}
}
