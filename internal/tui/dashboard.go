package tui

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rxaigc/vibesub/internal/authstate"
	"github.com/rxaigc/vibesub/internal/guard"
	"github.com/rxaigc/vibesub/internal/i18n"
	"github.com/rxaigc/vibesub/internal/usage"
)

// SessionStore is the auth store surface used by the dashboard.
type SessionStore interface {
	Snapshot() authstate.State
	Subscribe(fn func(authstate.State)) (cancel func())
	Logout(ctx context.Context)
}

// UsageTracker is the usage tracker surface used by the dashboard.
type UsageTracker interface {
	Snapshot() usage.Snapshot
	Reset(uid string) usage.Snapshot
	Begin() usage.Snapshot
	Complete(ctx context.Context) usage.Snapshot
}

// authStateMsg delivers a store update to the dashboard.
type authStateMsg struct {
	state authstate.State
}

// fetchTickMsg fires the delayed initial usage fetch.
type fetchTickMsg struct{}

// usageMsg carries the tracker state after a fetch.
type usageMsg struct {
	snap usage.Snapshot
}

// logoutDoneMsg reports that sign-out finished.
type logoutDoneMsg struct{}

type dashboardKeyMap struct {
	Quit    key.Binding
	Refresh key.Binding
	Menu    key.Binding
	Select  key.Binding
	Close   key.Binding
}

var dashboardKeys = dashboardKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Menu: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "menu"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "sign out"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
	),
}

// stateFeed turns a store subscription into bubbletea messages.
type stateFeed struct {
	ch     chan authstate.State
	done   chan struct{}
	cancel func()
	once   sync.Once
}

func subscribeFeed(store SessionStore) *stateFeed {
	f := &stateFeed{
		ch:   make(chan authstate.State, 8),
		done: make(chan struct{}),
	}
	f.cancel = store.Subscribe(func(s authstate.State) {
		select {
		case f.ch <- s:
		case <-f.done:
		}
	})
	return f
}

func (f *stateFeed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-f.ch:
			return authStateMsg{state: s}
		case <-f.done:
			return nil
		}
	}
}

func (f *stateFeed) close() {
	f.once.Do(func() {
		f.cancel()
		close(f.done)
	})
}

// DashboardModel is the protected dashboard screen. It follows the auth
// store for as long as it is mounted, so a sign-out from anywhere
// redirects it to the entry route.
type DashboardModel struct {
	ctx        context.Context
	store      SessionStore
	tracker    UsageTracker
	printer    *i18n.Printer
	styles     Styles
	guard      *guard.Guard
	feed       *stateFeed
	fetchDelay time.Duration

	spinner  spinner.Model
	progress progress.Model

	state          authstate.State
	render         guard.Render
	usage          usage.Snapshot
	fetchScheduled bool
	fetchPending   bool
	menuOpen       bool
	loggingOut     bool

	width    int
	next     string
	quitting bool
}

// NewDashboardModel creates the dashboard screen. The first usage fetch
// runs fetchDelay after a user is first observed.
func NewDashboardModel(ctx context.Context, store SessionStore, tracker UsageTracker, printer *i18n.Printer, fetchDelay time.Duration) *DashboardModel {
	m := &DashboardModel{
		ctx:        ctx,
		store:      store,
		tracker:    tracker,
		printer:    printer,
		styles:     DefaultStyles(),
		fetchDelay: fetchDelay,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		render:     guard.RenderPlaceholder,
	}
	m.guard = guard.New(guard.Protected, guard.NavigatorFunc(func(route string) {
		m.next = route
	}))
	return m
}

// Next returns the route navigated to, or "" if the user quit.
func (m *DashboardModel) Next() string {
	return m.next
}

// Close releases the store subscription. It is safe to call more than once.
func (m *DashboardModel) Close() {
	if m.feed != nil {
		m.feed.close()
	}
}

// Init subscribes to the auth store
func (m *DashboardModel) Init() tea.Cmd {
	m.feed = subscribeFeed(m.store)
	return m.feed.next()
}

// Update handles messages and updates the model
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(40, max(10, msg.Width-12))
		return m, nil

	case authStateMsg:
		return m.handleState(msg.state)

	case fetchTickMsg:
		m.fetchPending = false
		if !m.state.Authenticated() {
			return m, nil
		}
		return m, m.refresh()

	case usageMsg:
		m.usage = msg.snap
		return m, nil

	case logoutDoneMsg:
		m.loggingOut = false
		return m, nil

	case spinner.TickMsg:
		if !m.usageLoading() && !m.loggingOut {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *DashboardModel) handleState(s authstate.State) (tea.Model, tea.Cmd) {
	m.state = s
	if !s.Loading {
		uid := ""
		if s.User != nil {
			uid = s.User.UID
		}
		m.usage = m.tracker.Reset(uid)
	}
	m.render = m.guard.Observe(s)
	if m.next != "" {
		m.Close()
		return m, tea.Quit
	}

	cmds := []tea.Cmd{m.feed.next()}
	if s.Authenticated() && !m.fetchScheduled {
		m.fetchScheduled = true
		m.fetchPending = true
		cmds = append(cmds, m.spinner.Tick, tea.Tick(m.fetchDelay, func(time.Time) tea.Msg {
			return fetchTickMsg{}
		}))
	}
	return m, tea.Batch(cmds...)
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, dashboardKeys.Quit):
		m.quitting = true
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, dashboardKeys.Menu):
		m.menuOpen = !m.menuOpen

	case key.Matches(msg, dashboardKeys.Close):
		m.menuOpen = false

	case key.Matches(msg, dashboardKeys.Select):
		if m.menuOpen && !m.loggingOut {
			return m, m.logout()
		}

	case key.Matches(msg, dashboardKeys.Refresh):
		if m.state.Authenticated() && !m.loggingOut {
			return m, m.refresh()
		}
	}
	return m, nil
}

// refresh marks a fetch in flight so the spinner shows at once, then
// completes it off the update loop.
func (m *DashboardModel) refresh() tea.Cmd {
	m.usage = m.tracker.Begin()
	tracker, ctx := m.tracker, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return usageMsg{snap: tracker.Complete(ctx)}
	})
}

// usageLoading reports whether usage is being fetched or the initial
// fetch is still waiting for its delay.
func (m *DashboardModel) usageLoading() bool {
	return m.fetchPending || m.usage.Loading
}

func (m *DashboardModel) logout() tea.Cmd {
	m.menuOpen = false
	m.loggingOut = true
	store, ctx := m.store, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		store.Logout(ctx)
		return logoutDoneMsg{}
	})
}

// View renders the UI
func (m *DashboardModel) View() string {
	if m.quitting || m.next != "" {
		return ""
	}
	switch m.render {
	case guard.RenderPlaceholder:
		return m.styles.Muted.Render(m.printer.T("app.loading")) + "\n"
	case guard.RenderNothing:
		return ""
	}
	return m.renderDashboard()
}
