package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/registry"
)

type memorySink struct {
	mu     sync.Mutex
	tasks  map[core.TaskID]*core.Task
	events []string
}

func newMemorySink() *memorySink {
	return &memorySink{tasks: make(map[core.TaskID]*core.Task)}
}

func (s *memorySink) SaveTask(_ context.Context, task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *memorySink) AppendEvent(_ context.Context, _ core.TaskID, ev events.Inbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev.EventType())
	return nil
}

func searchResult(query string) *core.ToolResult {
	return &core.ToolResult{Search: &core.SearchResult{Query: query, Results: []core.SearchHit{}}}
}

func mustIngest(t *testing.T, a *Adapter, ev events.Event) {
	t.Helper()
	if err := a.Ingest(ev); err != nil {
		t.Fatalf("Ingest(%s) error = %v", ev.EventType(), err)
	}
}

// startTask submits a task and starts one turn on it, returning the turn id.
func startTask(t *testing.T, a *Adapter, text string) (core.TaskID, core.TurnID) {
	t.Helper()
	mustIngest(t, a, events.NewUserSubmittedEvent("", text))
	mustIngest(t, a, events.NewTurnStartedEvent("", "", "Search Assistant", "search.png", ""))
	snap := a.Snapshot()
	return snap.ActiveTask, snap.Turns[len(snap.Turns)-1].ID
}

func TestIngest_Scenario(t *testing.T) {
	a := New()

	mustIngest(t, a, events.NewUserSubmittedEvent("", "Summarize AgentMesh"))
	snap := a.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Status != core.TaskStatusRunning {
		t.Fatalf("expected one running task, got %+v", snap.Tasks)
	}
	if snap.Tasks[0].Title != "Summarize AgentMesh" {
		t.Errorf("title = %q", snap.Tasks[0].Title)
	}
	taskID := snap.Tasks[0].ID

	mustIngest(t, a, events.NewTurnStartedEvent("", "", "Search Assistant", "search.png", ""))
	turns := a.Snapshot().TurnsFor(taskID)
	if len(turns) != 1 {
		t.Fatalf("expected one turn, got %d", len(turns))
	}
	turn := turns[0]
	if turn.HasThinking() || turn.HasResponse() || len(turn.Tools) != 0 {
		t.Errorf("new turn should be empty: %+v", turn)
	}

	mustIngest(t, a, events.NewToolInvokedEvent("", string(turn.ID), "inv-1", core.ToolKindSearch, "google_search", `{"q":"AgentMesh"}`))
	mustIngest(t, a, events.NewToolCompletedEvent("", "inv-1", searchResult("AgentMesh")))

	snap = a.Snapshot()
	if len(snap.Tools) != 1 {
		t.Fatalf("expected exactly one tool entry, got %d", len(snap.Tools))
	}
	inv := snap.Tools[0]
	if inv.ID != "inv-1" || inv.Kind != core.ToolKindSearch || inv.Data.Search.Query != "AgentMesh" || len(inv.Data.Search.Results) != 0 {
		t.Errorf("tool entry = %+v", inv)
	}

	mustIngest(t, a, events.NewTaskTerminatedEvent(string(taskID), events.OutcomeCompleted, ""))
	task, _ := a.Task(taskID)
	if task.Status != core.TaskStatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}

	// Terminal states are final.
	if err := a.Ingest(events.NewTaskTerminatedEvent(string(taskID), events.OutcomeFailed, "late")); !core.IsCategory(err, core.ErrCatTransition) {
		t.Errorf("re-terminating = %v, want invalid transition", err)
	}
	if err := a.Ingest(events.NewResponseAppendedEvent("", string(turn.ID), "late")); !core.IsCategory(err, core.ErrCatTransition) {
		t.Errorf("late response = %v, want invalid transition", err)
	}
	task, _ = a.Task(taskID)
	if task.Status != core.TaskStatusCompleted {
		t.Errorf("status changed to %s", task.Status)
	}
}

func TestIngest_NeverTwoRunning(t *testing.T) {
	a := New()
	for _, text := range []string{"one", "two", "three"} {
		mustIngest(t, a, events.NewUserSubmittedEvent("", text))
		if n := a.Snapshot().RunningCount(); n != 1 {
			t.Fatalf("after %q: %d running tasks", text, n)
		}
	}
	snap := a.Snapshot()
	if snap.Tasks[1].Status != core.TaskStatusFailed || snap.Tasks[1].Reason != registry.SupersededReason {
		t.Errorf("superseded task = %s/%q", snap.Tasks[1].Status, snap.Tasks[1].Reason)
	}
}

func TestIngest_ConcurrentPolicy(t *testing.T) {
	a := New(WithRegistry(registry.New(registry.WithPolicy(registry.PolicyConcurrent))))
	mustIngest(t, a, events.NewUserSubmittedEvent("a", "first"))
	mustIngest(t, a, events.NewUserSubmittedEvent("b", "second"))

	if n := a.Snapshot().RunningCount(); n != 2 {
		t.Fatalf("running = %d, want 2", n)
	}
	// Explicit routing reaches the older task.
	mustIngest(t, a, events.NewTurnStartedEvent("a", "", "Planner", "", ""))
	if turns := a.Snapshot().TurnsFor("a"); len(turns) != 1 {
		t.Errorf("turns for a = %d, want 1", len(turns))
	}
}

func TestIngest_SupersededTaskClosesTimeline(t *testing.T) {
	a := New()
	first, turnID := startTask(t, a, "first")
	mustIngest(t, a, events.NewUserSubmittedEvent("", "second"))

	err := a.Ingest(events.NewThinkingUpdatedEvent("", string(turnID), "late"))
	if !core.IsCategory(err, core.ErrCatTransition) {
		t.Fatalf("update on superseded task = %v", err)
	}
	if turns := a.Snapshot().TurnsFor(first); !turns[0].Closed {
		t.Error("superseded task's turn should be closed")
	}
}

func TestIngest_ToolOrderPerTurn(t *testing.T) {
	a := New()
	_, turnID := startTask(t, a, "order")

	ids := []string{"c", "a", "d", "b"}
	for _, id := range ids {
		mustIngest(t, a, events.NewToolInvokedEvent("", string(turnID), id, core.ToolKindTerminal, "shell", "ls"))
	}
	// Completions in a different order do not change the turn's order.
	for _, id := range []string{"b", "a", "d", "c"} {
		mustIngest(t, a, events.NewToolCompletedEvent("", id, &core.ToolResult{Terminal: &core.TerminalResult{Command: "ls"}}))
	}

	snap := a.Snapshot()
	turn := snap.Turns[0]
	for i, id := range ids {
		if string(turn.Tools[i]) != id {
			t.Fatalf("Tools = %v, want %v", turn.Tools, ids)
		}
		if string(snap.Tools[i].ID) != id {
			t.Fatalf("index order = %s at %d, want %s", snap.Tools[i].ID, i, id)
		}
	}
	// Every referenced invocation resolves after completion.
	for _, id := range turn.Tools {
		inv, ok := a.Tool(id)
		if !ok || !inv.IsCompleted() {
			t.Errorf("invocation %s not resolvable: %+v", id, inv)
		}
	}
}

func TestIngest_ToolCompletedIdempotent(t *testing.T) {
	a := New()
	_, turnID := startTask(t, a, "replay")
	mustIngest(t, a, events.NewToolInvokedEvent("", string(turnID), "inv-1", core.ToolKindSearch, "google_search", ""))

	completion := events.NewToolCompletedEvent("", "inv-1", searchResult("AgentMesh"))
	mustIngest(t, a, completion)
	before, _ := a.Tool("inv-1")

	mustIngest(t, a, completion)
	after, _ := a.Tool("inv-1")
	if !after.CompletedAt.Equal(*before.CompletedAt) || !after.Data.Equal(before.Data) {
		t.Error("identical replay changed the invocation")
	}

	err := a.Ingest(events.NewToolCompletedEvent("", "inv-1", searchResult("something else")))
	if !core.IsCategory(err, core.ErrCatTransition) {
		t.Fatalf("different payload = %v, want invalid transition", err)
	}
	after, _ = a.Tool("inv-1")
	if after.Data.Search.Query != "AgentMesh" {
		t.Errorf("result was overwritten: %q", after.Data.Search.Query)
	}
}

func TestIngest_OrphanedToolCompletion(t *testing.T) {
	a := New()
	startTask(t, a, "orphan")
	before := a.Snapshot()

	err := a.Ingest(events.NewToolCompletedEvent("", "never-issued", searchResult("x")))
	if !core.IsCategory(err, core.ErrCatOrphaned) {
		t.Fatalf("error = %v, want orphaned", err)
	}
	if after := a.Snapshot(); len(after.Tools) != len(before.Tools) {
		t.Errorf("index size changed: %d -> %d", len(before.Tools), len(after.Tools))
	}
}

func TestIngest_KindMismatchIsMalformed(t *testing.T) {
	a := New()
	_, turnID := startTask(t, a, "mismatch")
	mustIngest(t, a, events.NewToolInvokedEvent("", string(turnID), "inv-1", core.ToolKindFile, "read_file", "a.txt"))

	err := a.Ingest(events.NewToolCompletedEvent("", "inv-1", searchResult("x")))
	if !core.IsCategory(err, core.ErrCatMalformed) {
		t.Fatalf("error = %v, want malformed", err)
	}
	if inv, _ := a.Tool("inv-1"); inv.IsCompleted() {
		t.Error("malformed completion was applied")
	}
}

func TestIngest_Anomalies(t *testing.T) {
	tests := []struct {
		name  string
		setup bool
		event events.Event
		want  core.ErrorCategory
	}{
		{"blank submission", false, events.NewUserSubmittedEvent("", "   "), core.ErrCatMalformed},
		{"turn without task", false, events.NewTurnStartedEvent("", "", "A", "", ""), core.ErrCatOrphaned},
		{"turn for unknown task", true, events.NewTurnStartedEvent("ghost", "", "A", "", ""), core.ErrCatOrphaned},
		{"thinking unknown turn", true, events.NewThinkingUpdatedEvent("", "ghost", "x"), core.ErrCatOrphaned},
		{"tool unknown turn", true, events.NewToolInvokedEvent("", "ghost", "i", core.ToolKindOther, "x", ""), core.ErrCatOrphaned},
		{"response unknown turn", true, events.NewResponseAppendedEvent("", "ghost", "x"), core.ErrCatOrphaned},
		{"terminate unknown task", true, events.NewTaskTerminatedEvent("ghost", events.OutcomeCompleted, ""), core.ErrCatOrphaned},
		{"bad outcome", true, events.NewTaskTerminatedEvent("task-1", "paused", ""), core.ErrCatMalformed},
		{"nil event", false, nil, core.ErrCatMalformed},
		{"outbound event", false, events.NewLogEvent("", "info", "x", nil), core.ErrCatMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.New(10)
			defer bus.Close()
			anomalies := bus.Subscribe(events.TypeAnomaly)

			a := New(WithBus(bus))
			if tt.setup {
				mustIngest(t, a, events.NewUserSubmittedEvent("", "setup"))
			}
			before := a.Snapshot()

			err := a.Ingest(tt.event)
			if got := core.GetCategory(err); got != tt.want {
				t.Fatalf("category = %s (%v), want %s", got, err, tt.want)
			}
			after := a.Snapshot()
			if len(after.Tasks) != len(before.Tasks) || len(after.Turns) != len(before.Turns) || len(after.Tools) != len(before.Tools) {
				t.Error("anomaly mutated state")
			}

			select {
			case ev := <-anomalies:
				if an := ev.(events.AnomalyEvent); an.Category != tt.want {
					t.Errorf("published category = %s", an.Category)
				}
			case <-time.After(100 * time.Millisecond):
				t.Error("anomaly was not published")
			}
		})
	}
}

func TestIngest_DuplicateInvocation(t *testing.T) {
	a := New()
	_, turnID := startTask(t, a, "dup")
	mustIngest(t, a, events.NewToolInvokedEvent("", string(turnID), "inv-1", core.ToolKindOther, "x", ""))

	err := a.Ingest(events.NewToolInvokedEvent("", string(turnID), "inv-1", core.ToolKindOther, "x", ""))
	if !core.IsCategory(err, core.ErrCatTransition) {
		t.Fatalf("error = %v, want invalid transition", err)
	}
	if turns := a.Snapshot().Turns; len(turns[0].Tools) != 1 {
		t.Errorf("Tools = %v", turns[0].Tools)
	}
}

func TestIngest_PublishesChanges(t *testing.T) {
	bus := events.New(50)
	defer bus.Close()
	ch := bus.Subscribe(events.TypeTaskChanged, events.TypeTurnChanged, events.TypeToolChanged)
	priority := bus.SubscribePriority(events.TypeTaskChanged)

	a := New(WithBus(bus))
	taskID, turnID := startTask(t, a, "notify")
	mustIngest(t, a, events.NewToolInvokedEvent("", string(turnID), "inv-1", core.ToolKindOther, "x", ""))
	mustIngest(t, a, events.NewTaskTerminatedEvent(string(taskID), events.OutcomeFailed, "boom"))

	var types []string
	for len(types) < 6 {
		select {
		case ev := <-ch:
			types = append(types, ev.EventType())
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("missing notifications, got %v", types)
		}
	}
	want := []string{
		events.TypeTaskChanged, // created
		events.TypeTurnChanged, // started
		events.TypeTurnChanged, // tool appended
		events.TypeToolChanged,
		events.TypeTaskChanged, // failed
		events.TypeTurnChanged, // closed
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", types, want)
		}
	}

	select {
	case ev := <-priority:
		tc := ev.(events.TaskChangedEvent)
		if tc.Task.Status != core.TaskStatusFailed || tc.Task.Reason != "boom" || tc.Previous != core.TaskStatusRunning {
			t.Errorf("priority notification = %+v", tc.Task)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("terminal change not delivered to priority subscriber")
	}
}

func TestIngest_SinkAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	sink := newMemorySink()
	a := New(WithSink(sink), WithMetrics(metrics))

	taskID, _ := startTask(t, a, "persist")
	_ = a.Ingest(events.NewThinkingUpdatedEvent("", "ghost", "x"))

	if got := testutil.ToFloat64(metrics.events.WithLabelValues(events.TypeUserSubmitted, OutcomeApplied)); got != 1 {
		t.Errorf("applied submissions = %v", got)
	}
	if got := testutil.ToFloat64(metrics.events.WithLabelValues(events.TypeThinkingUpdated, string(core.ErrCatOrphaned))); got != 1 {
		t.Errorf("orphaned thinking = %v", got)
	}
	if got := testutil.ToFloat64(metrics.tasksRunning); got != 1 {
		t.Errorf("tasks_running = %v", got)
	}

	mustIngest(t, a, events.NewTaskTerminatedEvent(string(taskID), events.OutcomeCompleted, ""))
	if got := testutil.ToFloat64(metrics.tasksRunning); got != 0 {
		t.Errorf("tasks_running after completion = %v", got)
	}

	if sink.tasks[taskID].Status != core.TaskStatusCompleted {
		t.Errorf("sink task status = %s", sink.tasks[taskID].Status)
	}
	want := []string{events.TypeUserSubmitted, events.TypeTurnStarted, events.TypeTaskTerminated}
	if len(sink.events) != len(want) {
		t.Fatalf("journal = %v, want %v", sink.events, want)
	}

	// Registering twice reuses the collectors.
	again, err := NewMetrics(reg)
	if err != nil || again.events != metrics.events {
		t.Errorf("NewMetrics() second registration = %v", err)
	}
}

func TestRestore(t *testing.T) {
	sink := newMemorySink()
	a := New(WithSink(sink))

	a.Restore(context.Background(), []*core.Task{
		{ID: "old", Seq: 4, Title: "old", Status: core.TaskStatusRunning},
	})
	if sink.tasks["old"].Status != core.TaskStatusFailed {
		t.Errorf("interrupted task not persisted as failed")
	}

	mustIngest(t, a, events.NewUserSubmittedEvent("", "new"))
	if active := a.ActiveTask(); active != "task-5" {
		t.Errorf("ActiveTask() = %s, want task-5", active)
	}
}

func TestRun_ConsumesUntilClosed(t *testing.T) {
	a := New()
	ch := make(chan events.Event, 4)
	ch <- events.NewUserSubmittedEvent("", "Summarize AgentMesh")
	ch <- events.NewTurnStartedEvent("", "", "Search Assistant", "", "")
	ch <- events.NewThinkingUpdatedEvent("", "ghost", "dropped")
	ch <- events.NewTaskTerminatedEvent("task-1", events.OutcomeCompleted, "")
	close(ch)

	if err := a.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	snap := a.Snapshot()
	if snap.Tasks[0].Status != core.TaskStatusCompleted || len(snap.Turns) != 1 {
		t.Errorf("unexpected state: %+v", snap.Tasks[0])
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, make(chan events.Event)) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop")
	}
}

func TestSnapshot_ConcurrentReaders(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				snap := a.Snapshot()
				if snap.RunningCount() > 1 {
					t.Error("observed two running tasks")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_ = a.Ingest(events.NewUserSubmittedEvent("", "load"))
	}
	cancel()
	wg.Wait()
}
