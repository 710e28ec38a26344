package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/rxaigc/vibesub/internal/authstate"
	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/guard"
	"github.com/rxaigc/vibesub/internal/i18n"
	"github.com/rxaigc/vibesub/internal/identity"
)

// AuthActions is the auth store surface used by the entry screen.
type AuthActions interface {
	Snapshot() authstate.State
	Login(ctx context.Context, email, password string) (*identity.User, error)
	LoginWithGoogle(ctx context.Context) (*identity.User, error)
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
}

type entryMode int

const (
	modeMenu entryMode = iota
	modeLogin
	modeSignUp
)

// Menu choices
const (
	choiceEmail  = "email"
	choiceGoogle = "google"
	choiceSignUp = "signup"
	choiceQuit   = "quit"
)

type action int

const (
	actionLogin action = iota
	actionGoogle
	actionSignUp
)

// fallbackKey is the generic failure message of each action.
func (a action) fallbackKey() string {
	switch a {
	case actionGoogle:
		return "google.failed"
	case actionSignUp:
		return "signup.failed"
	default:
		return "login.failed"
	}
}

func (a action) busyKey() string {
	switch a {
	case actionGoogle:
		return "google.connecting"
	case actionSignUp:
		return "signup.in_progress"
	default:
		return "app.loading"
	}
}

// authResultMsg carries the outcome of a sign-in or sign-up.
type authResultMsg struct {
	action action
	user   *identity.User
	err    error
}

// EntryModel is the sign-in screen. It observes the auth state when
// mounted and after each action completes, and redirects authenticated
// visitors to the dashboard.
type EntryModel struct {
	ctx     context.Context
	store   AuthActions
	printer *i18n.Printer
	styles  Styles
	guard   *guard.Guard
	spinner spinner.Model

	mode   entryMode
	form   *huh.Form
	render guard.Render

	busy     bool
	pending  action
	errMsg   string
	notice   string
	next     string
	quitting bool
}

// NewEntryModel creates the entry screen.
func NewEntryModel(ctx context.Context, store AuthActions, printer *i18n.Printer) *EntryModel {
	m := &EntryModel{
		ctx:     ctx,
		store:   store,
		printer: printer,
		styles:  DefaultStyles(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.guard = guard.New(guard.Entry, guard.NavigatorFunc(func(route string) {
		m.next = route
	}))
	return m
}

// Next returns the route navigated to, or "" if the user quit.
func (m *EntryModel) Next() string {
	return m.next
}

// Init initializes the model
func (m *EntryModel) Init() tea.Cmd {
	if m.observe() {
		return tea.Quit
	}
	return m.showMenu()
}

// observe runs the guard on the current auth state and reports whether it
// navigated away.
func (m *EntryModel) observe() bool {
	m.render = m.guard.Observe(m.store.Snapshot())
	return m.next != ""
}

// Update handles messages and updates the model
func (m *EntryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if !m.busy && m.mode != modeMenu {
				m.errMsg = ""
				return m, m.showMenu()
			}
		}
		if m.busy {
			return m, nil
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case authResultMsg:
		return m.handleResult(msg)
	}

	if m.form == nil || m.busy {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
		if m.form.State == huh.StateCompleted {
			return m, m.submitForm()
		}
	}
	return m, cmd
}

func (m *EntryModel) submitForm() tea.Cmd {
	switch m.mode {
	case modeLogin:
		return m.submitLogin(m.form.GetString("email"), m.form.GetString("password"))
	case modeSignUp:
		return m.submitSignUp(m.form.GetString("email"), m.form.GetString("password"), m.form.GetString("confirm"))
	}

	switch m.form.GetString("choice") {
	case choiceEmail:
		return m.showLogin()
	case choiceGoogle:
		return m.submitGoogle()
	case choiceSignUp:
		return m.showSignUp()
	default:
		m.quitting = true
		return tea.Quit
	}
}

func (m *EntryModel) submitLogin(email, password string) tea.Cmd {
	email = strings.TrimSpace(email)
	return m.start(actionLogin, func(ctx context.Context) (*identity.User, error) {
		return m.store.Login(ctx, email, password)
	})
}

func (m *EntryModel) submitGoogle() tea.Cmd {
	return m.start(actionGoogle, m.store.LoginWithGoogle)
}

// submitSignUp rejects mismatched passwords locally before any request.
func (m *EntryModel) submitSignUp(email, password, confirm string) tea.Cmd {
	if password != confirm {
		m.errMsg = m.printer.Error(errors.NewPasswordMismatchError(), actionSignUp.fallbackKey())
		return m.showSignUp()
	}
	email = strings.TrimSpace(email)
	return m.start(actionSignUp, func(ctx context.Context) (*identity.User, error) {
		return m.store.SignUp(ctx, email, password)
	})
}

func (m *EntryModel) start(a action, run func(ctx context.Context) (*identity.User, error)) tea.Cmd {
	m.busy = true
	m.pending = a
	m.errMsg = ""
	m.notice = ""
	ctx := m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		user, err := run(ctx)
		return authResultMsg{action: a, user: user, err: err}
	})
}

func (m *EntryModel) handleResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.errMsg = m.printer.Error(msg.err, msg.action.fallbackKey())
	} else if msg.action == actionSignUp {
		m.notice = m.printer.T("signup.success")
	}

	if m.observe() {
		return m, tea.Quit
	}

	switch msg.action {
	case actionLogin:
		return m, m.showLogin()
	case actionSignUp:
		return m, m.showSignUp()
	default:
		return m, m.showMenu()
	}
}

func (m *EntryModel) showMenu() tea.Cmd {
	m.mode = modeMenu
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("choice").
				Title(m.printer.T("entry.prompt")).
				Options(
					huh.NewOption(m.printer.T("entry.email"), choiceEmail),
					huh.NewOption(m.printer.T("entry.google"), choiceGoogle),
					huh.NewOption(m.printer.T("entry.signup"), choiceSignUp),
					huh.NewOption(m.printer.T("entry.quit"), choiceQuit),
				),
		),
	)
	return m.form.Init()
}

func (m *EntryModel) showLogin() tea.Cmd {
	m.mode = modeLogin
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("email").
				Title(m.printer.T("login.email")).
				Validate(required),
			huh.NewInput().
				Key("password").
				Title(m.printer.T("login.password")).
				EchoMode(huh.EchoModePassword).
				Validate(required),
		).Description(m.printer.T("entry.help")),
	)
	return m.form.Init()
}

func (m *EntryModel) showSignUp() tea.Cmd {
	m.mode = modeSignUp
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("email").
				Title(m.printer.T("signup.email")).
				Validate(required),
			huh.NewInput().
				Key("password").
				Title(m.printer.T("signup.password")).
				EchoMode(huh.EchoModePassword).
				Validate(required),
			huh.NewInput().
				Key("confirm").
				Title(m.printer.T("signup.confirm")).
				EchoMode(huh.EchoModePassword).
				Validate(required),
		).Description(m.printer.T("entry.help")),
	)
	return m.form.Init()
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

// View renders the UI
func (m *EntryModel) View() string {
	if m.quitting || m.next != "" {
		return ""
	}

	switch m.render {
	case guard.RenderPlaceholder:
		return m.styles.Muted.Render(m.printer.T("app.loading")) + "\n"
	case guard.RenderNothing:
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.printer.T("app.title")))
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString(m.styles.Error.Render(m.errMsg))
		b.WriteString("\n\n")
	}
	if m.notice != "" {
		b.WriteString(m.styles.Success.Render(m.notice))
		b.WriteString("\n\n")
	}

	if m.busy {
		b.WriteString(m.spinner.View() + " " + m.styles.Status.Render(m.printer.T(m.pending.busyKey())))
		b.WriteString("\n")
		return b.String()
	}

	if m.form != nil {
		b.WriteString(m.form.View())
	}
	return b.String()
}
