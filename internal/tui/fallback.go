package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

// Printer writes change notifications for non-interactive output.
type Printer interface {
	Handle(ev events.Event)
}

// NewPrinter returns the printer for a non-interactive mode.
func NewPrinter(mode OutputMode, w io.Writer, useColor bool) Printer {
	if mode == ModeJSON {
		return NewJSONOutput().WithWriter(w)
	}
	return NewFallbackOutput(useColor).WithWriter(w)
}

// Follow prints bus notifications until ctx is done or the bus closes.
func Follow(ctx context.Context, bus *events.EventBus, p Printer) error {
	// One subscription keeps notifications in publish order.
	ch := bus.Subscribe(events.TypeTaskChanged, events.TypeTurnChanged, events.TypeToolChanged, events.TypeAnomaly, events.TypeLog)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			p.Handle(ev)
		}
	}
}

// FallbackOutput prints a readable transcript: task transitions, agent
// turns as they open and respond, tool calls and anomalies.
type FallbackOutput struct {
	writer   io.Writer
	useColor bool
	mu       sync.Mutex

	turns   map[core.TurnID]bool
	printed map[core.TurnID]int // response bytes already printed
	tools   map[core.InvocationID]bool
}

// NewFallbackOutput creates a new fallback output handler.
func NewFallbackOutput(useColor bool) *FallbackOutput {
	return &FallbackOutput{
		writer:   os.Stdout,
		useColor: useColor,
		turns:    make(map[core.TurnID]bool),
		printed:  make(map[core.TurnID]int),
		tools:    make(map[core.InvocationID]bool),
	}
}

// WithWriter sets a custom writer.
func (f *FallbackOutput) WithWriter(w io.Writer) *FallbackOutput {
	f.writer = w
	return f
}

// Handle prints one notification.
func (f *FallbackOutput) Handle(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch e := ev.(type) {
	case events.TaskChangedEvent:
		f.taskChanged(e.Task)
	case events.TurnChangedEvent:
		f.turnChanged(e.Turn)
	case events.ToolChangedEvent:
		f.toolChanged(e.Invocation)
	case events.AnomalyEvent:
		f.printf("%s dropped %s: %s\n", f.colorize("!!!", "red"), e.Source, e.Message)
	case events.LogEvent:
		f.printf("%s %s\n", f.colorize("---", "yellow"), e.Message)
	}
}

func (f *FallbackOutput) taskChanged(t *core.Task) {
	switch t.Status {
	case core.TaskStatusRunning:
		f.printf("\n%s [RUNNING] %s\n", f.statusIcon(t.Status), t.Title)
	case core.TaskStatusCompleted:
		f.printf("%s [DONE] %s\n", f.statusIcon(t.Status), t.Title)
	case core.TaskStatusFailed:
		f.printf("%s [FAILED] %s: %s\n", f.statusIcon(t.Status), t.Title, t.Reason)
	}
}

func (f *FallbackOutput) turnChanged(turn *core.AgentTurn) {
	if !f.turns[turn.ID] {
		f.turns[turn.ID] = true
		line := "  → " + turn.AgentName
		if turn.Task != "" {
			line += ": " + turn.Task
		}
		f.printf("%s\n", f.colorize(line, "cyan"))
	}
	if n := f.printed[turn.ID]; len(turn.Response) > n {
		f.printed[turn.ID] = len(turn.Response)
		for _, l := range strings.Split(strings.TrimSpace(turn.Response[n:]), "\n") {
			f.printf("    %s\n", l)
		}
	}
}

func (f *FallbackOutput) toolChanged(inv *core.ToolInvocation) {
	if !inv.IsCompleted() {
		if !f.tools[inv.ID] {
			f.tools[inv.ID] = true
			f.printf("    %s %s %s\n", KindBadge(inv.Kind), inv.Name, f.colorize(inv.Params, "gray"))
		}
		return
	}
	f.printf("    %s %s: %s\n", f.colorize("✓", "green"), inv.Name, inv.Data.Summary())
}

func (f *FallbackOutput) printf(format string, args ...interface{}) {
	fmt.Fprintf(f.writer, format, args...)
}

func (f *FallbackOutput) statusIcon(status core.TaskStatus) string {
	colors := map[core.TaskStatus]string{
		core.TaskStatusRunning:   "cyan",
		core.TaskStatusCompleted: "green",
		core.TaskStatusFailed:    "red",
	}
	return f.colorize(view.StatusIcon(status), colors[status])
}

func (f *FallbackOutput) colorize(text, color string) string {
	if !f.useColor {
		return text
	}
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"gray":   "\033[90m",
	}
	code, ok := codes[color]
	if !ok {
		return text
	}
	return code + text + "\033[0m"
}

// JSONOutput prints each notification as one JSON line.
type JSONOutput struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONOutput creates a new JSON output handler.
func NewJSONOutput() *JSONOutput {
	return &JSONOutput{enc: json.NewEncoder(os.Stdout)}
}

// WithWriter sets a custom writer.
func (j *JSONOutput) WithWriter(w io.Writer) *JSONOutput {
	j.enc = json.NewEncoder(w)
	return j
}

// Handle encodes one notification.
func (j *JSONOutput) Handle(ev events.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(ev)
}
