package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Fixed rows around the body: header, status line, input box and help.
const (
	headerRows = 1
	statusRows = 1
	inputRows  = 5
	helpRows   = 1

	minSidebarWidth = 24
	maxSidebarWidth = 40
)

// Layout is the size of each console region for a terminal size.
type Layout struct {
	Width  int
	Height int

	SidebarWidth   int
	MainWidth      int
	BodyHeight     int
	TimelineHeight int
	ToolHeight     int
}

// ComputeLayout splits a width x height terminal. The sidebar is present
// only when the task list is visible.
func ComputeLayout(width, height int, tasksVisible bool) Layout {
	l := Layout{Width: width, Height: height}

	l.BodyHeight = height - headerRows - statusRows - inputRows - helpRows
	if l.BodyHeight < 4 {
		l.BodyHeight = 4
	}

	if tasksVisible {
		l.SidebarWidth = clamp(width/4, minSidebarWidth, maxSidebarWidth)
		if l.SidebarWidth > width/2 {
			l.SidebarWidth = width / 2
		}
	}
	l.MainWidth = width - l.SidebarWidth
	if l.MainWidth < 20 {
		l.MainWidth = 20
	}

	// Timeline gets three fifths; the tool viewer (tabs plus detail) the rest.
	l.TimelineHeight = l.BodyHeight * 3 / 5
	l.ToolHeight = l.BodyHeight - l.TimelineHeight
	return l
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Truncate shortens s to width display cells, marking the cut with "…".
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// ClipLines keeps at most n lines of s.
func ClipLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	lines = lines[:n]
	lines[n-1] = SubtleStyle.Render("…")
	return strings.Join(lines, "\n")
}

// Divider creates a horizontal divider.
func Divider(width int) string {
	if width <= 0 {
		return ""
	}
	return SubtleStyle.Render(strings.Repeat("─", width))
}
