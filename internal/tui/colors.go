// Package tui is the interactive terminal console: a chat input, the
// collapsible task list, the agent timeline and the tool results viewer,
// all drawn from the view projection.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorAccent    = lipgloss.Color("#F59E0B") // Amber

	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorInfo    = lipgloss.Color("#3B82F6") // Blue

	ColorText       = lipgloss.Color("#E5E7EB")
	ColorTextMuted  = lipgloss.Color("#9CA3AF")
	ColorBorder     = lipgloss.Color("#374151")
	ColorBackground = lipgloss.Color("#1F2937")
	ColorHighlight  = lipgloss.Color("#374151")
)

// agentPalette colors agent names in the timeline. Names hash onto it so a
// given agent keeps its color across turns and tasks.
var agentPalette = []lipgloss.Color{
	lipgloss.Color("#A78BFA"),
	lipgloss.Color("#22D3EE"),
	lipgloss.Color("#F472B6"),
	lipgloss.Color("#FBBF24"),
	lipgloss.Color("#34D399"),
	lipgloss.Color("#60A5FA"),
}

// AgentColor returns the stable color for an agent name.
func AgentColor(name string) lipgloss.Color {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return agentPalette[h%uint32(len(agentPalette))]
}
