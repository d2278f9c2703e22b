package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/ingest"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/testutil"
)

// syncBuffer guards a bytes.Buffer written by Follow's goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// notifications ingests a complete search task and returns the change
// notifications it produced, in order.
func notifications(t *testing.T) []events.Event {
	t.Helper()
	bus := events.New(64)
	defer bus.Close()
	ch := bus.Subscribe()
	a := ingest.New(ingest.WithBus(bus))
	for _, ev := range testutil.SearchTaskEvents("task-1", "Summarize AgentMesh") {
		if err := a.Ingest(ev); err != nil {
			t.Fatal(err)
		}
	}
	// An orphaned completion adds an anomaly.
	_ = a.Ingest(events.NewToolCompletedEvent("task-9", "inv-9", nil))

	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestFallbackOutput_Transcript(t *testing.T) {
	var buf bytes.Buffer
	out := NewFallbackOutput(false).WithWriter(&buf)
	for _, ev := range notifications(t) {
		out.Handle(ev)
	}

	got := buf.String()
	wantInOrder := []string{
		"● [RUNNING] Summarize AgentMesh",
		"→ Search Assistant: Summarize AgentMesh",
		`google_search {"query":"AgentMesh"}`,
		`✓ google_search: "AgentMesh": 1 results`,
		"AgentMesh coordinates agents.",
		"✓ [DONE] Summarize AgentMesh",
		"!!! dropped tool_completed",
	}
	pos := 0
	for _, want := range wantInOrder {
		i := strings.Index(got[pos:], want)
		if i < 0 {
			t.Fatalf("transcript missing %q after offset %d:\n%s", want, pos, got)
		}
		pos += i + len(want)
	}
	if strings.Count(got, "→ Search Assistant") != 1 {
		t.Errorf("turn header should print once:\n%s", got)
	}
	if strings.Count(got, "AgentMesh coordinates agents.") != 1 {
		t.Errorf("response should print once:\n%s", got)
	}
	if strings.Contains(got, "\033[") {
		t.Error("no escape codes expected without color")
	}
}

func TestFallbackOutput_Color(t *testing.T) {
	var buf bytes.Buffer
	out := NewFallbackOutput(true).WithWriter(&buf)
	task := testutil.NewTestTask()
	out.Handle(events.NewTaskChangedEvent(task, ""))

	if !strings.Contains(buf.String(), "\033[36m●\033[0m") {
		t.Errorf("expected colored running icon, got %q", buf.String())
	}
}

func TestFallbackOutput_Notice(t *testing.T) {
	var buf bytes.Buffer
	out := NewFallbackOutput(false).WithWriter(&buf)
	out.Handle(events.NewLogEvent("", "warn", "backend disconnected", nil))

	if got := buf.String(); got != "--- backend disconnected\n" {
		t.Errorf("got %q", got)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	out := NewJSONOutput().WithWriter(&buf)
	evs := notifications(t)
	for _, ev := range evs {
		out.Handle(ev)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(evs) {
		t.Fatalf("got %d lines, want %d", len(lines), len(evs))
	}
	var first struct {
		Type   string `json:"type"`
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Type != events.TypeTaskChanged || first.TaskID != "task-1" {
		t.Errorf("first line = %s", lines[0])
	}
}

func TestNewPrinter(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := NewPrinter(ModeJSON, &buf, false).(*JSONOutput); !ok {
		t.Error("json mode should use JSONOutput")
	}
	if _, ok := NewPrinter(ModePlain, &buf, false).(*FallbackOutput); !ok {
		t.Error("plain mode should use FallbackOutput")
	}
}

func TestFollow(t *testing.T) {
	bus := events.New(64)
	defer bus.Close()
	var buf syncBuffer
	printer := NewFallbackOutput(false).WithWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, bus, printer) }()

	a := ingest.New(ingest.WithBus(bus))
	// Follow may not have subscribed yet; resubmitting is rejected as a
	// duplicate id once it is known, so use fresh ids.
	testutil.WaitFor(t, 2*time.Second, func() bool {
		_ = a.Ingest(events.NewUserSubmittedEvent("task-"+time.Now().Format("150405.000000000"), "hello"))
		_ = a.Ingest(events.NewTaskTerminatedEvent(string(a.ActiveTask()), events.OutcomeCompleted, ""))
		return strings.Contains(buf.String(), "[RUNNING]")
	}, "Follow printed nothing")

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Follow() = %v, want context.Canceled", err)
	}
}
