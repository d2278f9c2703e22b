package tui

import (
	"strings"
	"testing"
)

func TestComputeLayout(t *testing.T) {
	tests := []struct {
		name         string
		width        int
		height       int
		tasksVisible bool
		wantSidebar  int
	}{
		{"hidden", 120, 40, false, 0},
		{"visible", 120, 40, true, 30},
		{"visible narrow clamps up", 80, 40, true, 24},
		{"visible wide clamps down", 200, 40, true, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ComputeLayout(tt.width, tt.height, tt.tasksVisible)
			if l.SidebarWidth != tt.wantSidebar {
				t.Errorf("SidebarWidth = %d, want %d", l.SidebarWidth, tt.wantSidebar)
			}
			if l.SidebarWidth+l.MainWidth != tt.width {
				t.Errorf("widths %d+%d do not add up to %d", l.SidebarWidth, l.MainWidth, tt.width)
			}
			if l.TimelineHeight+l.ToolHeight != l.BodyHeight {
				t.Errorf("heights do not add up")
			}
		})
	}
}

func TestComputeLayout_TinyTerminal(t *testing.T) {
	l := ComputeLayout(10, 5, true)
	if l.BodyHeight < 4 {
		t.Errorf("BodyHeight = %d", l.BodyHeight)
	}
	if l.MainWidth < 20 {
		t.Errorf("MainWidth = %d", l.MainWidth)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 6, "hello…"},
		{"héllo wörld", 4, "hél…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestClipLines(t *testing.T) {
	in := "a\nb\nc\nd"
	if got := ClipLines(in, 10); got != in {
		t.Errorf("ClipLines() changed short input: %q", got)
	}
	got := ClipLines(in, 2)
	if lines := strings.Split(got, "\n"); len(lines) != 2 || lines[0] != "a" {
		t.Errorf("ClipLines(2) = %q", got)
	}
	if ClipLines(in, 0) != "" {
		t.Error("ClipLines(0) should be empty")
	}
}
