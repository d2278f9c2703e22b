package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

// markdown renders agent responses. Rendered output is cached per text
// until the wrap width changes.
type markdown struct {
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdown() *markdown {
	return &markdown{cache: make(map[string]string)}
}

func stringPtr(s string) *string { return &s }

func (md *markdown) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == md.width && md.renderer != nil {
		return
	}
	style := styles.DraculaStyleConfig
	style.Document.Margin = nil
	style.Code = ansi.StyleBlock{
		StylePrimitive: ansi.StylePrimitive{
			Color:           stringPtr("229"),
			BackgroundColor: stringPtr(""),
		},
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	md.width = width
	md.renderer = r
	md.cache = make(map[string]string)
}

func (md *markdown) render(text string) string {
	if md.renderer == nil {
		return text
	}
	if out, ok := md.cache[text]; ok {
		return out
	}
	out, err := md.renderer.Render(text)
	if err != nil {
		out = text
	}
	out = strings.Trim(out, "\n")
	md.cache[text] = out
	return out
}

// renderTaskList draws the collapsible task list.
func renderTaskList(tasks []view.TaskItem, width int, now time.Time) string {
	if len(tasks) == 0 {
		return SubtleStyle.Render("no tasks yet")
	}
	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		age := view.RelativeAge(t.CreatedAt, now)
		title := Truncate(t.Title, width-lipgloss.Width(age)-4)
		row := fmt.Sprintf("%s %s", t.Icon, title)
		style := ClassStyle(t.Class)
		if t.Viewed {
			style = style.Inherit(ViewedTaskStyle)
		}
		pad := width - lipgloss.Width(row) - lipgloss.Width(age)
		if pad < 1 {
			pad = 1
		}
		b.WriteString(style.Render(row + strings.Repeat(" ", pad) + age))
		if t.Class == view.ClassFailed && t.Reason != "" {
			b.WriteString("\n  " + SubtleStyle.Render(Truncate(t.Reason, width-2)))
		}
	}
	return b.String()
}

// renderTimeline draws the turns of the viewed task. frame is the spinner
// frame shown next to open turns.
func renderTimeline(turns []view.TurnView, width int, md *markdown, frame string) string {
	if width <= 0 {
		width = 80
	}
	if len(turns) == 0 {
		return SubtleStyle.Render("waiting for agents…")
	}
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderTurn(turn, width, md, frame))
	}
	return b.String()
}

func renderTurn(turn view.TurnView, width int, md *markdown, frame string) string {
	var lines []string

	head := lipgloss.NewStyle().Bold(true).Foreground(AgentColor(turn.AgentName)).Render(turn.AgentName)
	if ts := view.FormatTimestamp(turn.Timestamp, nil); ts != "" {
		head += SubtleStyle.Render(" · " + ts)
	}
	if turn.Open {
		head += " " + SpinnerStyle.Render(frame)
	}
	lines = append(lines, head)

	if turn.Task != "" {
		lines = append(lines, SubtleStyle.Render("▸ "+Truncate(turn.Task, width-4)))
	}
	if turn.Thinking != "" {
		lines = append(lines, ThinkingStyle.Width(width-2).Render(turn.Thinking))
	}
	for _, ref := range turn.Tools {
		lines = append(lines, renderToolRef(ref))
	}
	if turn.Response != "" {
		lines = append(lines, md.render(turn.Response))
	}

	return AgentStyle(turn.AgentName).Width(width - 2).Render(strings.Join(lines, "\n"))
}

func renderToolRef(ref view.ToolRef) string {
	switch {
	case ref.Missing:
		return ErrorBannerStyle.Render(fmt.Sprintf("  ? %s (unknown invocation)", ref.ID))
	case ref.Pending:
		return RunningStyle.Render(fmt.Sprintf("  %s %s …", KindBadge(ref.Kind), ref.Name))
	default:
		return CompletedStyle.Render(fmt.Sprintf("  %s %s ✓", KindBadge(ref.Kind), ref.Name))
	}
}

// renderTabs draws the tool tabs on one line, keeping the highlighted tab
// visible when they do not all fit.
func renderTabs(tabs []view.ToolTab, width int) string {
	if len(tabs) == 0 {
		return SubtleStyle.Render("no tool calls")
	}
	rendered := make([]string, len(tabs))
	selected := 0
	for i, tab := range tabs {
		label := KindBadge(tab.Kind) + " " + Truncate(tab.Label, 24)
		if tab.Pending {
			label += " …"
		}
		if tab.Highlighted {
			selected = i
			rendered[i] = ActiveTabStyle.Render(label)
		} else {
			rendered[i] = TabStyle.Render(label)
		}
	}

	start := 0
	for start < selected && lipgloss.Width(strings.Join(rendered[start:selected+1], "")) > width {
		start++
	}
	line := ""
	for _, r := range rendered[start:] {
		if lipgloss.Width(line+r) > width {
			break
		}
		line += r
	}
	return line
}

// renderDetail draws the selected tool's payload.
func renderDetail(d *view.ToolDetail, width, height int) string {
	if d == nil {
		return ""
	}
	body := CopyText(d)
	if d.Pending {
		body = RunningStyle.Render("running "+d.Name) + "\n" + SubtleStyle.Render(d.Params)
	}
	return ClipLines(lipgloss.NewStyle().Width(width).Render(body), height)
}

// CopyText returns the plain-text form of a tool result, as copied to the
// clipboard.
func CopyText(d *view.ToolDetail) string {
	if d == nil {
		return ""
	}
	switch {
	case d.Search != nil:
		var b strings.Builder
		fmt.Fprintf(&b, "search: %s\n", d.Search.Query)
		for i, hit := range d.Search.Results {
			fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, hit.Title, hit.URL)
			if hit.Snippet != "" {
				fmt.Fprintf(&b, "   %s\n", hit.Snippet)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	case d.Terminal != nil:
		return "$ " + d.Terminal.Command + "\n" + d.Terminal.Output
	case d.File != nil:
		return d.File.Path + "\n\n" + d.File.Content
	case len(d.Other) > 0:
		var buf bytes.Buffer
		if err := json.Indent(&buf, d.Other, "", "  "); err != nil {
			return string(d.Other)
		}
		return buf.String()
	}
	return d.Params
}
