package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The board must stay readable on light and dark terminals, so every color is
// adaptive and "faint" is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted      = ac("240", "243")
	colorSelectedBg = ac("#e9e9e9", "#262626")
	colorSelectedFg = ac("235", "255")
	colorSurfaceBg  = ac("255", "235")
	colorSurfaceFg  = ac("235", "252")
	colorControlBg  = ac("252", "235")
	colorInputBg    = ac("254", "234")
	colorAccent     = ac("27", "62")
	colorAccentFg   = ac("255", "235")
	colorCardMetaFg = ac("238", "250")
	colorDragBg     = ac("153", "24")
	colorBadgeBg    = ac("160", "124")
	colorBadgeFg    = ac("255", "255")

	// Short-lived card flash when a move is denied.
	colorFlashErrorBg = ac("196", "160")

	colorModalSurfaceBg = colorSurfaceBg
	colorModalSurfaceFg = colorSurfaceFg
	colorModalHeaderBg  = colorControlBg
	colorModalHeaderFg  = colorSurfaceFg
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleError() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorFlashErrorBg).Bold(true)
}

// applyColorProfilePreference picks the color profile for the full-screen
// program. Only NO_COLOR disables color; CLICOLOR is left to piped output.
func applyColorProfilePreference() {
	lipgloss.SetColorProfile(colorProfile(termenv.ColorProfile(), os.Getenv))
}

func colorProfile(detected termenv.Profile, getenv func(string) string) termenv.Profile {
	env := func(k string) string { return strings.ToLower(strings.TrimSpace(getenv(k))) }
	switch ct := env("COLORTERM"); {
	case env("NO_COLOR") != "":
		return termenv.Ascii
	case detected == termenv.Ascii && !strings.Contains(env("TERM"), "256color"):
		return detected
	case strings.Contains(ct, "truecolor"), strings.Contains(ct, "24bit"):
		return termenv.TrueColor
	case strings.Contains(env("TERM"), "256color") && detected > termenv.ANSI256:
		return termenv.ANSI256
	}
	return detected
}

// applyThemePreference sets the background used by adaptive colors.
// TASKBOARD_TUI_THEME wins over the configured theme; with neither set to
// light or dark, COLORFGBG ("fg;bg") decides.
func applyThemePreference(theme string) {
	if v := strings.TrimSpace(os.Getenv("TASKBOARD_TUI_THEME")); v != "" {
		theme = v
	}
	if dark, ok := darkBackground(theme, os.Getenv("COLORFGBG")); ok {
		lipgloss.SetHasDarkBackground(dark)
	}
}

func darkBackground(theme, colorfgbg string) (dark, ok bool) {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case "light":
		return false, true
	case "dark":
		return true, true
	}
	fields := strings.Split(colorfgbg, ";")
	bg, err := strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
	if err != nil {
		return false, false
	}
	return bg < 7, true
}
