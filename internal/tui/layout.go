package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to be exactly width columns wide (ANSI-aware) and
// height lines tall, so panes join cleanly with lipgloss.JoinHorizontal.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}

	for i, ln := range lines {
		ln = truncate(ln, width)
		if w := xansi.StringWidth(ln); w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to width cells, ending in "…" when something was cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Truncate(s, width, "…")
}

// modalWidth is the outer width of a modal on a screen width columns wide.
func modalWidth(width int) int {
	w := width - 8
	if w > 72 {
		w = 72
	}
	if w < 24 {
		w = 24
	}
	return w
}

// modalBodyWidth is the usable content width inside a modal box.
func modalBodyWidth(width int) int {
	return modalWidth(width) - 4
}

// renderModalBox draws a bordered box with a header bar. Lines of content
// longer than the body are cut.
func renderModalBox(width int, title string, content string) string {
	w := modalWidth(width)
	bodyW := w - 4

	header := lipgloss.NewStyle().
		Width(bodyW).
		Bold(true).
		Foreground(colorModalHeaderFg).
		Background(colorModalHeaderBg).
		Padding(0, 1).
		Render(truncate(title, bodyW-2))

	var body []string
	for _, ln := range strings.Split(content, "\n") {
		body = append(body, truncate(ln, bodyW))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Foreground(colorModalSurfaceFg).
		Background(colorModalSurfaceBg).
		Padding(0, 1).
		Width(w - 2)
	return box.Render(header + "\n\n" + strings.Join(body, "\n"))
}

// overlayCenter draws modal over the middle of screen, which must already be
// normalized to width x height.
func overlayCenter(screen string, width, height int, modal string) string {
	bg := strings.Split(screen, "\n")
	fg := strings.Split(modal, "\n")
	mw := 0
	for _, ln := range fg {
		if w := xansi.StringWidth(ln); w > mw {
			mw = w
		}
	}
	x0 := (width - mw) / 2
	y0 := (height - len(fg)) / 2
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	for i, ln := range fg {
		y := y0 + i
		if y >= len(bg) {
			break
		}
		left := xansi.Cut(bg[y], 0, x0)
		right := xansi.Cut(bg[y], x0+mw, width)
		ln = normalizePane(ln, mw, 1)
		bg[y] = left + "\x1b[0m" + ln + "\x1b[0m" + right
	}
	return strings.Join(bg, "\n")
}
