package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	// PanelStyle frames the task list and the tool viewer.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	// Task list rows, one per view.StyleClass.
	ActiveTaskStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	RunningStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	CompletedStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	FailedStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	// ViewedTaskStyle marks the row whose timeline is on screen.
	ViewedTaskStyle = lipgloss.NewStyle().
			Background(ColorHighlight)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	ThinkingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	// ErrorBannerStyle is the one-line anomaly/submit error banner.
	ErrorBannerStyle = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	StatusLineStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	InputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)
)

// ClassStyle returns the row style for a task style class.
func ClassStyle(class view.StyleClass) lipgloss.Style {
	switch class {
	case view.ClassActive:
		return ActiveTaskStyle
	case view.ClassRunning:
		return RunningStyle
	case view.ClassCompleted:
		return CompletedStyle
	case view.ClassFailed:
		return FailedStyle
	default:
		return PendingStyle
	}
}

// AgentStyle returns the timeline header style for an agent, with a colored
// left border.
func AgentStyle(name string) lipgloss.Style {
	return lipgloss.NewStyle().
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(AgentColor(name)).
		PaddingLeft(1)
}

// KindBadge labels a tool tab with its kind.
func KindBadge(kind core.ToolKind) string {
	switch kind {
	case core.ToolKindSearch:
		return "⌕"
	case core.ToolKindTerminal:
		return "$"
	case core.ToolKindFile:
		return "≡"
	default:
		return "•"
	}
}
