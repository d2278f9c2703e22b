package tui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// OutputMode represents the output mode.
type OutputMode int

const (
	// ModeTUI runs the interactive Bubble Tea console.
	ModeTUI OutputMode = iota

	// ModePlain prints one line per state change.
	ModePlain

	// ModeJSON prints one JSON object per state change.
	ModeJSON
)

// OutputEnv overrides the detected output mode.
const OutputEnv = "AGENTMESH_OUTPUT"

// String returns the string representation of the output mode.
func (m OutputMode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Detector determines the appropriate output mode.
type Detector struct {
	forceMode *OutputMode
	noColor   bool
	isTTY     func() bool
}

// NewDetector creates a new output mode detector.
func NewDetector() *Detector {
	return &Detector{isTTY: stdoutIsTTY}
}

// ForceMode forces a specific output mode.
func (d *Detector) ForceMode(mode OutputMode) *Detector {
	d.forceMode = &mode
	return d
}

// NoColor disables color output.
func (d *Detector) NoColor(disable bool) *Detector {
	d.noColor = disable
	return d
}

// Detect determines the appropriate output mode.
func (d *Detector) Detect() OutputMode {
	if d.forceMode != nil {
		return *d.forceMode
	}

	if v := os.Getenv(OutputEnv); v != "" {
		if mode, ok := ParseOutputMode(v); ok {
			return mode
		}
	}

	if os.Getenv("CI") != "" || !d.isTTY() {
		return ModePlain
	}
	return ModeTUI
}

// ShouldUseColor determines if color should be used.
func (d *Detector) ShouldUseColor() bool {
	if d.noColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return d.isTTY()
}

func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalSize returns terminal dimensions.
func TerminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80, 24
	}
	return w, h
}

// ParseOutputMode parses an output mode name.
func ParseOutputMode(s string) (OutputMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tui":
		return ModeTUI, true
	case "plain":
		return ModePlain, true
	case "json":
		return ModeJSON, true
	default:
		return ModeTUI, false
	}
}
