package tui

import (
	"fmt"
	"strings"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"

	"github.com/charmbracelet/lipgloss"
)

const (
	laneGap = 2
	// Every card is two text lines plus one spacer line. A fixed height keeps
	// mouse hit-testing a matter of arithmetic.
	cardHeight = 3
	// Lane header and its underline.
	laneHeaderLines = 2
	// App header line plus a blank line above the board.
	boardTop = 2
	// Minibuffer and help lines.
	footerLines = 2
)

func (m appModel) bodyHeight() int {
	h := m.height - boardTop - footerLines
	if h < 1 {
		h = 1
	}
	return h
}

func (m appModel) laneWidth() int {
	n := len(m.lanes)
	if n == 0 {
		return m.width
	}
	w := (m.width - laneGap*(n-1)) / n
	if w < 8 {
		w = 8
	}
	return w
}

func (m appModel) visibleCards() int {
	v := (m.bodyHeight() - laneHeaderLines) / cardHeight
	if v < 1 {
		v = 1
	}
	return v
}

// laneOffset is the index of the first card shown in lane li. Only the
// focused lane scrolls, to keep its selection visible.
func (m appModel) laneOffset(li int) int {
	if li != m.sel.lane {
		return 0
	}
	if v := m.visibleCards(); m.sel.index >= v {
		return m.sel.index - v + 1
	}
	return 0
}

// laneAt maps a screen column to a lane index, or -1 for the gaps.
func (m appModel) laneAt(x int) int {
	colW := m.laneWidth()
	li := x / (colW + laneGap)
	if li < 0 || li >= len(m.lanes) {
		return -1
	}
	if x-li*(colW+laneGap) >= colW {
		return -1
	}
	return li
}

// cardAt maps a screen position to a lane and card index. ok is false when
// the position is on the lane header or below the last card.
func (m appModel) cardAt(x, y int) (lane int, index int, ok bool) {
	lane = m.laneAt(x)
	if lane < 0 {
		return -1, -1, false
	}
	row := y - boardTop - laneHeaderLines
	if row < 0 || y-boardTop >= m.bodyHeight() {
		return lane, -1, false
	}
	index = m.laneOffset(lane) + row/cardHeight
	if index >= len(m.lanes[lane].Tasks) {
		return lane, -1, false
	}
	return lane, index, true
}

func laneTitle(l board.Lane) string {
	s := fmt.Sprintf("%s (%d)", l.Label, len(l.Tasks))
	if !l.Droppable {
		s += " [locked]"
	}
	return s
}

func ownerLabel(t model.Task) string {
	if t.OwnerUsername != "" {
		return t.OwnerUsername
	}
	if t.OwnerID != 0 {
		return fmt.Sprintf("user %d", t.OwnerID)
	}
	return "unassigned"
}

func (m appModel) renderBoard() string {
	colW := m.laneWidth()
	h := m.bodyHeight()
	dragged, dragging := m.drag.Active()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg)
	selectedHeaderStyle := headerStyle.Foreground(colorAccent)
	lockedHeaderStyle := headerStyle.Foreground(colorFlashErrorBg)
	sepStyle := styleMuted()

	cardBase := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Foreground(colorSurfaceFg)
	metaStyle := faintIfDark(lipgloss.NewStyle().Foreground(colorCardMetaFg))

	cols := make([]string, 0, len(m.lanes))
	for li, lane := range m.lanes {
		hs := headerStyle
		if li == m.sel.lane {
			hs = selectedHeaderStyle
			if dragging && !lane.Droppable {
				hs = lockedHeaderStyle
			}
		}
		lines := []string{
			hs.Render(truncate(laneTitle(lane), colW)),
			sepStyle.Render(strings.Repeat("─", colW)),
		}

		if len(lane.Tasks) == 0 {
			lines = append(lines, styleMuted().Render("(empty)"))
		}
		off := m.laneOffset(li)
		end := off + m.visibleCards()
		if end > len(lane.Tasks) {
			end = len(lane.Tasks)
		}
		for ti := off; ti < end; ti++ {
			t := lane.Tasks[ti]
			st := cardBase
			ts, ms := titleStyle, metaStyle
			switch {
			case t.ID == m.flashTaskID:
				st = st.Background(colorFlashErrorBg)
				ts = ts.Background(colorFlashErrorBg).Foreground(colorAccentFg).Bold(true)
				ms = ms.Background(colorFlashErrorBg).Foreground(colorAccentFg)
			case dragging && t.ID == dragged.ID:
				st = st.Background(colorDragBg)
				ts = ts.Background(colorDragBg).Bold(true)
				ms = ms.Background(colorDragBg)
			case li == m.sel.lane && ti == m.sel.index:
				st = st.Background(colorSelectedBg)
				ts = ts.Background(colorSelectedBg).Foreground(colorSelectedFg).Bold(true)
				ms = ms.Background(colorSelectedBg)
			}
			inner := colW - 2
			card := st.Render(
				ts.Render(truncate(t.Title, inner)) + "\n" +
					ms.Render(truncate(fmt.Sprintf("#%d · %s", t.ID, ownerLabel(t)), inner)),
			)
			lines = append(lines, card, "")
		}
		if end < len(lane.Tasks) {
			lines = append(lines, styleMuted().Render(fmt.Sprintf("… %d more", len(lane.Tasks)-end)))
		}
		cols = append(cols, normalizePane(strings.Join(lines, "\n"), colW, h))
	}

	gap := strings.Repeat(" ", laneGap)
	parts := make([]string, 0, len(cols)*2)
	for i, c := range cols {
		if i > 0 {
			parts = append(parts, normalizePane(gap, laneGap, h))
		}
		parts = append(parts, c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
