package tui

import (
	"strings"
	"testing"

	"taskboard-cli/internal/model"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

func TestNormalizePane_PadsAndCuts(t *testing.T) {
	t.Parallel()

	out := normalizePane("short\nthis line is far too long", 10, 3)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, ln := range lines {
		if w := xansi.StringWidth(ln); w != 10 {
			t.Fatalf("line %d width=%d: %q", i, w, ln)
		}
	}
	if !strings.HasSuffix(lines[1], "…") {
		t.Fatalf("expected ellipsis on cut line: %q", lines[1])
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 4); xansi.StringWidth(got) != 4 || !strings.HasSuffix(got, "…") {
		t.Fatalf("truncate long = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("truncate zero = %q", got)
	}
}

func TestOverlayCenter_KeepsScreenSize(t *testing.T) {
	t.Parallel()

	screen := normalizePane("", 40, 10)
	out := overlayCenter(screen, 40, 10, "┌──┐\n│hi│\n└──┘")
	lines := strings.Split(out, "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[4], "hi") {
		t.Fatalf("expected modal in the middle row, got:\n%s", out)
	}
	for i, ln := range lines {
		if w := xansi.StringWidth(ln); w != 40 {
			t.Fatalf("line %d width=%d", i, w)
		}
	}
}

func TestRenderBoard_LanesCountsAndLock(t *testing.T) {
	m, srv := newTestModel(t)
	srv.AddTask(model.Task{Title: "Alpha", Status: model.StatusPending})
	srv.AddTask(model.Task{Title: "Beta", Status: model.StatusInReview})
	m = loggedIn(t, m, "viewer")

	out := m.View()
	for _, want := range []string{"Pending (1)", "In Progress (0)", "In Review (1)", "Done (0) [locked]", "Alpha", "Beta", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in board:\n%s", want, out)
		}
	}
	if got := len(strings.Split(out, "\n")); got != m.height {
		t.Fatalf("expected %d lines, got %d", m.height, got)
	}
}

func TestRenderBoard_AdminDoneLaneNotLocked(t *testing.T) {
	m, _ := newTestModel(t)
	m = loggedIn(t, m, "admin")

	out := m.View()
	if strings.Contains(out, "[locked]") {
		t.Fatalf("expected no locked lane for admin:\n%s", out)
	}
	if !strings.Contains(out, "Users") {
		t.Fatalf("expected users tab for admin")
	}
}

func TestCardAt_ScrollsWithSelection(t *testing.T) {
	m, srv := newTestModel(t)
	for i := 0; i < 20; i++ {
		srv.AddTask(model.Task{Title: "Card"})
	}
	m = loggedIn(t, m, "admin")

	v := m.visibleCards()
	m.sel.index = v + 2
	m.clampSelection()
	if off := m.laneOffset(0); off != 3 {
		t.Fatalf("expected offset 3, got %d", off)
	}
	_, idx, ok := m.cardAt(1, boardTop+laneHeaderLines)
	if !ok || idx != 3 {
		t.Fatalf("expected first visible card to be index 3, got %d %v", idx, ok)
	}
	if _, _, ok := m.cardAt(1, boardTop); ok {
		t.Fatalf("expected header row to miss")
	}
	if lane := m.laneAt(m.laneWidth()); lane != -1 {
		t.Fatalf("expected gap column to miss, got lane %d", lane)
	}
}

func TestRenderLogin(t *testing.T) {
	m, _ := newTestModel(t)
	m.login.err = sessionExpiredText

	out := m.View()
	for _, want := range []string{"Username", "Password", sessionExpiredText} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in login view:\n%s", want, out)
		}
	}
}

func TestDarkBackground(t *testing.T) {
	t.Parallel()

	tests := []struct {
		theme, colorfgbg string
		dark, ok         bool
	}{
		{theme: "dark", colorfgbg: "0;15", dark: true, ok: true},
		{theme: "Light", dark: false, ok: true},
		{theme: "auto", colorfgbg: "15;0", dark: true, ok: true},
		{theme: "", colorfgbg: "0;default;15", dark: false, ok: true},
		{theme: "auto", colorfgbg: "", ok: false},
	}
	for _, tt := range tests {
		dark, ok := darkBackground(tt.theme, tt.colorfgbg)
		if dark != tt.dark || ok != tt.ok {
			t.Fatalf("darkBackground(%q, %q) = %v, %v", tt.theme, tt.colorfgbg, dark, ok)
		}
	}
}

func TestColorProfile(t *testing.T) {
	t.Parallel()

	env := func(kv map[string]string) func(string) string {
		return func(k string) string { return kv[k] }
	}
	tests := []struct {
		name     string
		detected termenv.Profile
		env      map[string]string
		want     termenv.Profile
	}{
		{"no color", termenv.TrueColor, map[string]string{"NO_COLOR": "1"}, termenv.Ascii},
		{"truecolor", termenv.ANSI256, map[string]string{"COLORTERM": "truecolor"}, termenv.TrueColor},
		{"256 term", termenv.ANSI, map[string]string{"TERM": "xterm-256color"}, termenv.ANSI256},
		{"plain pipe", termenv.Ascii, map[string]string{"COLORTERM": "24bit"}, termenv.Ascii},
		{"untouched", termenv.ANSI, nil, termenv.ANSI},
	}
	for _, tt := range tests {
		if got := colorProfile(tt.detected, env(tt.env)); got != tt.want {
			t.Fatalf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}
