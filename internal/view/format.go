package view

import (
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// FormatTimestamp renders the time of day in loc, as shown next to each turn.
// A nil loc uses the local zone.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04:05")
}

// FormatDate renders a task creation time in loc, dropping the date when it
// falls on the same day as now.
func FormatDate(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	lt, ln := t.In(loc), now.In(loc)
	if lt.Year() == ln.Year() && lt.YearDay() == ln.YearDay() {
		return lt.Format("15:04")
	}
	return lt.Format("Jan 2 15:04")
}

// RelativeAge renders how long ago t was, relative to now.
func RelativeAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 10*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// FormatDuration renders an elapsed duration compactly.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// CycleTool returns the tab delta positions away from the selected one,
// wrapping around. It returns "" when there are no tabs.
func CycleTool(v View, delta int) core.InvocationID {
	n := len(v.Tabs)
	if n == 0 {
		return ""
	}
	cur := n - 1
	for i, tab := range v.Tabs {
		if tab.Highlighted {
			cur = i
			break
		}
	}
	next := ((cur+delta)%n + n) % n
	return v.Tabs[next].ID
}
