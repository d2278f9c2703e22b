package testutil_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/testutil"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"CRLF to LF", "line1\r\nline2\r\n", "line1\nline2"},
		{"trailing whitespace", "line1   \nline2\t\n", "line1\nline2"},
		{"trailing newlines", "line1\nline2\n\n\n", "line1\nline2"},
		{"empty string", "", ""},
		{"mixed line endings", "a\r\nb  \nc\t\r\n", "a\nb\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, testutil.Normalize(tt.input), tt.want)
		})
	}
}

func TestScrubbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"iso timestamp", `"created_at":"2025-03-01T10:20:30.123456Z"`, `"created_at":"[TIMESTAMP]"`},
		{"clock time", "[10:20:30] Search Assistant", "[[TIMESTAMP]] Search Assistant"},
		{"uuid task id", "task 0f8e4a1c-2b3d-4e5f-8a9b-0c1d2e3f4a5b running", "task [UUID] running"},
		{"nothing to scrub", "google_search", "google_search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, testutil.ScrubAll(tt.input), tt.want)
		})
	}
}

func TestGolden_Assert(t *testing.T) {
	dir := t.TempDir()
	testutil.TempFile(t, dir, "view.golden", "hello")

	testutil.NewGolden(t, dir).AssertString("view", "hello")
}

func TestNewTestTask(t *testing.T) {
	task := testutil.NewTestTask()
	testutil.AssertEqual(t, task.ID, core.TaskID("task-1"))
	testutil.AssertEqual(t, task.Status, core.TaskStatusRunning)

	custom := testutil.NewTestTask(func(tk *core.Task) { tk.Status = core.TaskStatusFailed })
	testutil.AssertEqual(t, custom.Status, core.TaskStatusFailed)
}

func TestSearchTaskEvents(t *testing.T) {
	evs := testutil.SearchTaskEvents("task-7", "Summarize AgentMesh")
	testutil.AssertLen(t, evs, 7)

	for _, ev := range evs {
		testutil.AssertEqual(t, ev.TaskID(), "task-7")
		in, ok := ev.(events.Inbound)
		if !ok {
			t.Fatalf("%s is not inbound", ev.EventType())
		}
		testutil.AssertNoError(t, in.Validate())
	}
	testutil.AssertEqual(t, evs[len(evs)-1].EventType(), events.TypeTaskTerminated)
}

func TestMockSubmitter(t *testing.T) {
	m := testutil.NewMockSubmitter()
	var hooked []string
	m.OnSubmit = func(text string) { hooked = append(hooked, text) }

	testutil.AssertNoError(t, m.Submit(t.Context(), "first"))
	m.SetError(testutil.ErrTest)
	err := m.Submit(t.Context(), "second")
	if !errors.Is(err, testutil.ErrTest) {
		t.Fatalf("Submit() error = %v, want ErrTest", err)
	}

	testutil.AssertLen(t, m.Submitted(), 1)
	testutil.AssertLen(t, hooked, 1)
	testutil.AssertEqual(t, m.Submitted()[0], "first")
}

func TestWaitFor(t *testing.T) {
	calls := 0
	testutil.WaitFor(t, time.Second, func() bool {
		calls++
		return calls == 3
	}, "condition never held")
	testutil.AssertEqual(t, calls, 3)
}
