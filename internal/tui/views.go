package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// avatarInitial is the uppercased first letter of the email, or "U".
func avatarInitial(email string) string {
	r, _ := utf8.DecodeRuneInString(email)
	if r == utf8.RuneError {
		return "U"
	}
	return strings.ToUpper(string(r))
}

func (m *DashboardModel) email() string {
	if m.state.User == nil {
		return ""
	}
	return m.state.User.Email
}

// displayName is the account id shown on the dashboard.
func (m *DashboardModel) displayName() string {
	if email := m.email(); email != "" {
		return email
	}
	return m.printer.T("dashboard.default_name")
}

func (m *DashboardModel) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.menuOpen {
		b.WriteString(m.renderDropdown())
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Subtitle.Render(m.printer.T("dashboard.description")))
	b.WriteString("\n\n")

	b.WriteString(m.renderAccountCard())
	b.WriteString("\n")
	b.WriteString(m.renderUsageCard())
	b.WriteString("\n")
	b.WriteString(m.renderContactCard())
	b.WriteString("\n")

	if m.loggingOut {
		b.WriteString(m.spinner.View() + " " + m.styles.Status.Render(m.printer.T("dashboard.logging_out")))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Help.Render(m.printer.T("dashboard.help")))
	return b.String()
}

func (m *DashboardModel) renderHeader() string {
	title := m.styles.Title.Render(m.printer.T("app.title"))
	avatar := m.styles.Avatar.Render(avatarInitial(m.email()))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", avatar, " ", m.styles.Muted.Render(m.email()))
}

func (m *DashboardModel) renderDropdown() string {
	lines := []string{
		m.styles.Muted.Render(m.displayName()),
		m.styles.Highlighted.Render(m.printer.T("dashboard.logout")),
		m.styles.Muted.Render(m.printer.T("dashboard.menu_hint")),
	}
	return m.styles.Dropdown.Render(strings.Join(lines, "\n"))
}

func (m *DashboardModel) renderAccountCard() string {
	body := m.styles.Muted.Render(m.printer.T("dashboard.user_id")) + "\n" + m.displayName()
	return m.styles.Card.Render(body)
}

func (m *DashboardModel) renderUsageCard() string {
	info := m.usage.Info
	loading := m.usageLoading()

	var value string
	switch {
	case info != nil:
		value = m.styles.Status.Render(m.printer.T("dashboard.usage_value", info.UsedToday, info.DailyLimit))
	case loading:
		value = m.styles.Muted.Render(m.printer.T("app.loading"))
	default:
		value = m.styles.Muted.Render(m.printer.T("dashboard.usage_unavailable"))
	}
	if loading {
		value = m.spinner.View() + " " + value
	}

	lines := []string{
		m.styles.Muted.Render(m.printer.T("dashboard.usage")),
		value,
	}
	// the bar is hidden while a fetch is pending
	if info != nil && !loading {
		lines = append(lines, m.progress.ViewAs(min(info.Percentage()/100, 1)))
	}
	if !m.usage.UpdatedAt.IsZero() {
		lines = append(lines, m.styles.Muted.Render(m.printer.T("dashboard.updated", m.usage.UpdatedAt.Format("15:04:05"))))
	}
	return m.styles.Card.Render(strings.Join(lines, "\n"))
}

func (m *DashboardModel) renderContactCard() string {
	body := m.styles.Status.Render(m.printer.T("dashboard.contact")) + "\n" +
		m.styles.Muted.Render(m.printer.T("dashboard.contact_hint"))
	return m.styles.Card.Render(body)
}
