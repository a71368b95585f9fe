package tui

import (
	"fmt"
	"strings"
	"time"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/notify"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

func (m appModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	if m.view == viewLogin {
		return normalizePane(m.renderLogin(), m.width, m.height)
	}

	var body string
	switch m.view {
	case viewDetail:
		body = m.renderDetail()
	case viewUsers:
		body = m.userList.View()
	default:
		body = m.renderBoard()
	}

	screen := strings.Join([]string{
		normalizePane(m.renderHeader(), m.width, 1),
		"",
		normalizePane(body, m.width, m.bodyHeight()),
		normalizePane(m.renderMinibuffer(), m.width, 1),
		normalizePane(styleMuted().Render(m.helpText()), m.width, 1),
	}, "\n")

	if m.modal != modalNone {
		return overlayCenter(screen, m.width, m.height, m.renderModal())
	}
	return screen
}

func (m appModel) renderHeader() string {
	brand := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("taskboard")
	who := styleMuted().Render(fmt.Sprintf("%s (%s)", m.user.Username, m.user.Role.Label()))

	tab := func(label string, on bool) string {
		st := lipgloss.NewStyle().Padding(0, 1)
		if on {
			st = st.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
		} else {
			st = st.Foreground(colorMuted)
		}
		return st.Render(label)
	}
	tabs := tab("Board", m.view == viewBoard || m.view == viewDetail)
	if m.caps.ManageUsers {
		tabs += " " + tab("Users", m.view == viewUsers)
	}

	inbox := "Inbox"
	if b := notify.Badge(m.inbox.Unread); b != "" {
		inbox += " " + lipgloss.NewStyle().
			Foreground(colorBadgeFg).
			Background(colorBadgeBg).
			Bold(true).
			Padding(0, 1).
			Render(b)
	}
	if m.loading {
		inbox = styleMuted().Render("loading… ") + inbox
	}

	left := brand + "  " + tabs
	right := inbox + "  " + who
	pad := m.width - xansi.StringWidth(left) - xansi.StringWidth(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

func (m appModel) renderMinibuffer() string {
	if m.minibufferText == "" {
		return ""
	}
	if m.minibufferErr {
		return styleError().Render(m.minibufferText)
	}
	return m.minibufferText
}

func (m appModel) helpText() string {
	switch m.view {
	case viewDetail:
		return "esc: back  e: edit  s: status  d: delete  j/k: scroll  N: inbox  q: quit"
	case viewUsers:
		return "j/k: move  n: new  e/enter: edit  d: delete  r: refresh  b: board  N: inbox  L: logout  q: quit"
	}
	if _, dragging := m.drag.Active(); dragging {
		return "h/l: pick lane  space: drop  esc: cancel"
	}
	help := "h/l j/k: move  space: grab  enter: open  s: status  n: new  e: edit  d: delete  N: inbox  r: refresh"
	if m.caps.ManageUsers {
		help += "  u: users"
	}
	return help + "  L: logout  q: quit"
}

func (m appModel) renderLogin() string {
	bodyW := 40
	if m.width-8 < bodyW {
		bodyW = m.width - 8
	}
	label := func(s string, focused bool) string {
		st := lipgloss.NewStyle().Foreground(colorMuted)
		if focused {
			st = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
		}
		return st.Render(s)
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("taskboard"),
		styleMuted().Render("Sign in to continue"),
		"",
		label("Username", m.login.focus == 0),
		renderInputLine(bodyW, m.login.username.View()),
		"",
		label("Password", m.login.focus == 1),
		renderInputLine(bodyW, m.login.password.View()),
		"",
	}
	switch {
	case m.login.busy:
		lines = append(lines, styleMuted().Render("Logging in…"))
	case m.login.err != "":
		lines = append(lines, styleError().Width(bodyW).Render(m.login.err))
	default:
		lines = append(lines, "")
	}
	lines = append(lines, "", styleMuted().Render("tab: switch field  enter: log in  ctrl+c: quit"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m appModel) detailTask() (model.Task, bool) {
	return m.tasks.Get(m.detailID)
}

func (m appModel) renderDetail() string {
	t, ok := m.detailTask()
	if !ok {
		return styleMuted().Render("(task no longer exists)")
	}
	w := m.width
	if w > 100 {
		w = 100
	}

	created := "unknown"
	if t.CreatedAt != nil && !t.CreatedAt.Time.IsZero() {
		created = t.CreatedAt.Time.Local().Format("2006-01-02 15:04") +
			" (" + notify.Age(t.CreatedAt.Time, time.Now()) + ")"
	}
	meta := styleMuted().Render(fmt.Sprintf("#%d · %s · owner %s · created %s",
		t.ID, t.Status.Label(), ownerLabel(t), created))

	desc := renderMarkdown(t.Description, w)
	if desc == "" {
		desc = styleMuted().Render("(no description)")
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Width(w).Render(t.Title),
		meta,
		"",
	}
	lines = append(lines, strings.Split(desc, "\n")...)

	start := m.detailScroll
	if start > len(lines)-1 {
		start = len(lines) - 1
	}
	if start < 0 {
		start = 0
	}
	return strings.Join(lines[start:], "\n")
}
