package state

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

func newTestStore(t *testing.T) *TaskStore {
	t.Helper()
	store, err := NewTaskStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewTaskStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTask(id string, seq int64, text string, created time.Time) *core.Task {
	task := core.NewTask(core.TaskID(id), seq, text, 0)
	// SQLite keeps second precision in these tests.
	task.CreatedAt = created.Truncate(time.Second)
	task.UpdatedAt = task.CreatedAt
	return task
}

func TestTaskStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	first := testTask("task-1", 1, "Summarize AgentMesh", base)
	second := testTask("task-2", 2, "List files", base.Add(time.Minute))
	for _, task := range []*core.Task{second, first} {
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask() error = %v", err)
		}
	}

	if err := first.MarkFailed("superseded by a new submission"); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveTask(ctx, first); err != nil {
		t.Fatalf("SaveTask() update error = %v", err)
	}

	tasks, err := store.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("LoadTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "task-1" || tasks[1].ID != "task-2" {
		t.Errorf("expected creation order, got %s, %s", tasks[0].ID, tasks[1].ID)
	}
	if tasks[0].Status != core.TaskStatusFailed || tasks[0].Reason == "" {
		t.Errorf("update not persisted: %+v", tasks[0])
	}
	if tasks[0].Title != "Summarize AgentMesh" || tasks[0].Description != "Summarize AgentMesh" {
		t.Errorf("unexpected task fields: %+v", tasks[0])
	}
	if !tasks[1].CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", tasks[1].CreatedAt, second.CreatedAt)
	}
}

func TestTaskStore_GetTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveTask(ctx, testTask("task-1", 1, "hello", time.Now())); err != nil {
		t.Fatal(err)
	}
	task, err := store.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if task.Status != core.TaskStatusRunning {
		t.Errorf("Status = %s", task.Status)
	}
	if _, err := store.GetTask(ctx, "task-9"); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func seedHistory(t *testing.T, store *TaskStore, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Add(-24 * time.Hour)
	for i := 1; i <= n; i++ {
		task := testTask(fmt.Sprintf("task-%d", i), int64(i), fmt.Sprintf("report %d", i), base.Add(time.Duration(i)*time.Minute))
		if i%3 == 0 {
			_ = task.MarkCompleted()
		}
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
}

func TestTaskStore_Query(t *testing.T) {
	store := newTestStore(t)
	seedHistory(t, store, 25)
	ctx := context.Background()

	page, err := store.Query(ctx, TaskQuery{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.Total != 25 || len(page.Tasks) != 10 {
		t.Fatalf("expected 10 of 25, got %d of %d", len(page.Tasks), page.Total)
	}
	if page.Tasks[0].ID != "task-25" {
		t.Errorf("expected newest first, got %s", page.Tasks[0].ID)
	}

	last, err := store.Query(ctx, TaskQuery{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(last.Tasks) != 5 || last.Tasks[4].ID != "task-1" {
		t.Errorf("unexpected last page: %d tasks", len(last.Tasks))
	}

	beyond, err := store.Query(ctx, TaskQuery{Page: 9, PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if beyond.Tasks == nil || len(beyond.Tasks) != 0 {
		t.Errorf("expected empty non-nil page, got %v", beyond.Tasks)
	}
}

func TestTaskStore_QueryFilters(t *testing.T) {
	store := newTestStore(t)
	seedHistory(t, store, 12)
	ctx := context.Background()

	done, err := store.Query(ctx, TaskQuery{Status: "success"})
	if err != nil {
		t.Fatalf("Query(status) error = %v", err)
	}
	if done.Total != 4 {
		t.Errorf("expected 4 completed tasks, got %d", done.Total)
	}
	for _, task := range done.Tasks {
		if task.Status != core.TaskStatusCompleted {
			t.Errorf("unexpected status %s", task.Status)
		}
	}

	named, err := store.Query(ctx, TaskQuery{Name: "report 1"})
	if err != nil {
		t.Fatal(err)
	}
	// report 1, report 10, report 11, report 12
	if named.Total != 4 {
		t.Errorf("expected 4 name matches, got %d", named.Total)
	}

	literal, err := store.Query(ctx, TaskQuery{Name: "%"})
	if err != nil {
		t.Fatal(err)
	}
	if literal.Total != 0 {
		t.Errorf("expected %% to match literally, got %d", literal.Total)
	}
}

func TestTaskQuery_Normalize(t *testing.T) {
	tests := []struct {
		name string
		q    TaskQuery
		code string
	}{
		{"negative page", TaskQuery{Page: -1}, core.CodeInvalidPage},
		{"page too large", TaskQuery{Page: MaxPage + 1}, core.CodeInvalidPage},
		{"page overflows offset", TaskQuery{Page: math.MaxInt}, core.CodeInvalidPage},
		{"page size too large", TaskQuery{Page: 1, PageSize: 101}, core.CodeInvalidPageSize},
		{"negative page size", TaskQuery{PageSize: -5}, core.CodeInvalidPageSize},
		{"unknown status", TaskQuery{Status: "paused"}, core.CodeInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.q.Normalize()
			de, ok := err.(*core.DomainError)
			if !ok || de.Code != tt.code {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}

	q, err := TaskQuery{}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if q.Page != 1 || q.PageSize != DefaultPageSize {
		t.Errorf("defaults not applied: %+v", q)
	}
}

func TestTaskStore_Journal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	journal := []events.Inbound{
		events.NewUserSubmittedEvent("", "Summarize AgentMesh"),
		events.NewTurnStartedEvent("", "turn-1", "Search Assistant", "", ""),
		events.NewToolInvokedEvent("", "turn-1", "inv-1", core.ToolKindSearch, "google_search", `{"query":"AgentMesh"}`),
		events.NewToolCompletedEvent("", "inv-1", &core.ToolResult{
			Kind:   core.ToolKindSearch,
			Search: &core.SearchResult{Query: "AgentMesh", Results: []core.SearchHit{}},
		}),
		events.NewTaskTerminatedEvent("task-1", events.OutcomeCompleted, ""),
	}
	for _, ev := range journal {
		if err := store.AppendEvent(ctx, "task-1", ev); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", ev.EventType(), err)
		}
	}
	if err := store.AppendEvent(ctx, "task-2", events.NewUserSubmittedEvent("", "other")); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Journal(ctx, "task-1")
	if err != nil {
		t.Fatalf("Journal() error = %v", err)
	}
	if len(entries) != len(journal) {
		t.Fatalf("expected %d entries, got %d", len(journal), len(entries))
	}
	for i, entry := range entries {
		if entry.Type != journal[i].EventType() {
			t.Errorf("entry %d type = %s, want %s", i, entry.Type, journal[i].EventType())
		}
	}
	if entries[1].TurnID != "turn-1" || entries[0].TurnID != "" {
		t.Errorf("unexpected turn ids: %q %q", entries[0].TurnID, entries[1].TurnID)
	}
	completed, ok := entries[3].Event.(events.ToolCompletedEvent)
	if !ok || completed.Data.Search == nil || completed.Data.Search.Query != "AgentMesh" {
		t.Errorf("tool result not preserved: %+v", entries[3].Event)
	}
}

func TestTaskStore_Purge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	done := testTask("task-1", 1, "old done", old)
	_ = done.MarkCompleted()
	done.UpdatedAt = old
	running := testTask("task-2", 2, "old running", old)
	fresh := testTask("task-3", 3, "fresh", time.Now())
	_ = fresh.MarkFailed("boom")

	for _, task := range []*core.Task{done, running, fresh} {
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.AppendEvent(ctx, "task-1", events.NewUserSubmittedEvent("", "old done")); err != nil {
		t.Fatal(err)
	}

	n, err := store.Purge(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged task, got %d", n)
	}
	tasks, _ := store.LoadTasks(ctx)
	if len(tasks) != 2 {
		t.Errorf("expected 2 remaining tasks, got %d", len(tasks))
	}
	entries, _ := store.Journal(ctx, "task-1")
	if len(entries) != 0 {
		t.Errorf("expected journal purged, got %d entries", len(entries))
	}
}

func TestTaskStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history")
	store, err := OpenTaskStore(path)
	if err != nil {
		t.Fatalf("OpenTaskStore() error = %v", err)
	}
	if filepath.Ext(store.Path()) != ".db" {
		t.Errorf("expected .db extension, got %s", store.Path())
	}
	if err := store.SaveTask(context.Background(), testTask("task-1", 1, "persisted", time.Now())); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := OpenTaskStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()
	tasks, err := reopened.LoadTasks(context.Background())
	if err != nil || len(tasks) != 1 {
		t.Fatalf("expected persisted task, got %v (%v)", tasks, err)
	}
}
