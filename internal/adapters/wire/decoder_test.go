package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

func frame(t *testing.T, event, taskID string, data any) Message {
	t.Helper()
	msg, err := NewMessage(event, taskID, data, time.Date(2025, 5, 1, 10, 0, 0, 0, time.Local))
	require.NoError(t, err)
	return msg
}

func TestDecoder_FullTask(t *testing.T) {
	d := NewDecoder()
	d.Expect("Summarize AgentMesh")

	ev, err := d.Decode(frame(t, EventUserTaskSubmit, "t1", TaskSubmit{Status: StatusSuccess, TaskID: "t1", Msg: "ok"}))
	require.NoError(t, err)
	submitted := ev.(events.UserSubmittedEvent)
	assert.Equal(t, "t1", submitted.TaskID())
	assert.Equal(t, "Summarize AgentMesh", submitted.Text)

	ev, err = d.Decode(frame(t, EventAgentDecision, "t1", AgentDecision{AgentID: "search_agent", AgentName: "Search Assistant", SubTask: "find sources"}))
	require.NoError(t, err)
	started := ev.(events.TurnStartedEvent)
	assert.Equal(t, "t1:search_agent:1", started.TurnID)
	assert.Equal(t, "Search Assistant", started.AgentName)
	assert.Equal(t, "find sources", started.TaskText)

	ev, err = d.Decode(frame(t, EventAgentThinking, "t1", AgentThinking{AgentID: "search_agent", Thought: "searching"}))
	require.NoError(t, err)
	assert.Equal(t, "t1:search_agent:1", ev.(events.ThinkingUpdatedEvent).TurnID)

	ev, err = d.Decode(frame(t, EventToolDecision, "t1", map[string]any{
		"agent_id": "search_agent", "tool_id": "google_search", "tool_name": "Google Search",
		"parameters": map[string]any{"query": "AgentMesh"},
	}))
	require.NoError(t, err)
	invoked := ev.(events.ToolInvokedEvent)
	assert.Equal(t, "t1:google_search:1", invoked.InvocationID)
	assert.Equal(t, core.ToolKindSearch, invoked.Kind)
	assert.Equal(t, `{"query":"AgentMesh"}`, invoked.Params)
	assert.Equal(t, "t1:search_agent:1", invoked.TurnID)

	ev, err = d.Decode(frame(t, EventToolExecute, "t1", map[string]any{
		"agent_id": "search_agent", "tool_id": "google_search", "tool_name": "Google Search", "status": "success",
		"tool_result": map[string]any{"results": []map[string]string{{"title": "AgentMesh", "url": "https://example.com"}}},
	}))
	require.NoError(t, err)
	completed := ev.(events.ToolCompletedEvent)
	assert.Equal(t, "t1:google_search:1", completed.InvocationID)
	require.NoError(t, completed.Data.Validate(core.ToolKindSearch))
	assert.Equal(t, "AgentMesh", completed.Data.Search.Query)
	assert.Len(t, completed.Data.Search.Results, 1)

	ev, err = d.Decode(frame(t, EventAgentResult, "t1", AgentResult{AgentID: "search_agent", Result: "done"}))
	require.NoError(t, err)
	assert.Equal(t, "t1:search_agent:1", ev.(events.ResponseAppendedEvent).TurnID)

	ev, err = d.Decode(frame(t, EventTaskResult, "t1", TaskResult{TaskID: "t1", Status: StatusSuccess}))
	require.NoError(t, err)
	assert.Equal(t, events.OutcomeCompleted, ev.(events.TaskTerminatedEvent).Outcome)
}

func TestDecoder_CountersPerTask(t *testing.T) {
	d := NewDecoder()
	for i := 0; i < 2; i++ {
		_, err := d.Decode(frame(t, EventAgentDecision, "t1", AgentDecision{AgentID: "a", AgentName: "A"}))
		require.NoError(t, err)
	}
	ev, err := d.Decode(frame(t, EventAgentDecision, "t2", AgentDecision{AgentID: "a", AgentName: "A"}))
	require.NoError(t, err)
	assert.Equal(t, "t2:a:1", ev.(events.TurnStartedEvent).TurnID)

	ev, err = d.Decode(frame(t, EventAgentThinking, "t1", AgentThinking{AgentID: "a", Thought: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "t1:a:2", ev.(events.ThinkingUpdatedEvent).TurnID)
}

func TestDecoder_UnknownAgentYieldsUnknownTurn(t *testing.T) {
	d := NewDecoder()
	ev, err := d.Decode(frame(t, EventAgentThinking, "t1", AgentThinking{AgentID: "ghost", Thought: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "t1:ghost:0", ev.(events.ThinkingUpdatedEvent).TurnID)
}

func TestDecoder_ToolKinds(t *testing.T) {
	tests := []struct {
		tool   string
		result any
		kind   core.ToolKind
		check  func(t *testing.T, r *core.ToolResult)
	}{
		{"bash", map[string]any{"command": "ls", "output": "go.mod"}, core.ToolKindTerminal, func(t *testing.T, r *core.ToolResult) {
			assert.Equal(t, "go.mod", r.Terminal.Output)
		}},
		{"read_file", "package main", core.ToolKindFile, func(t *testing.T, r *core.ToolResult) {
			assert.Equal(t, "package main", r.File.Content)
			assert.Equal(t, "main.go", r.File.Path)
		}},
		{"calculator", map[string]any{"value": 42}, core.ToolKindOther, func(t *testing.T, r *core.ToolResult) {
			assert.JSONEq(t, `{"value":42}`, string(r.Other))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			d := NewDecoder()
			ev, err := d.Decode(frame(t, EventToolDecision, "t1", map[string]any{
				"agent_id": "a", "tool_id": tt.tool, "tool_name": tt.tool,
				"parameters": map[string]any{"path": "main.go"},
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.(events.ToolInvokedEvent).Kind)

			ev, err = d.Decode(frame(t, EventToolExecute, "t1", map[string]any{
				"agent_id": "a", "tool_id": tt.tool, "tool_name": tt.tool, "status": "success", "tool_result": tt.result,
			}))
			require.NoError(t, err)
			data := ev.(events.ToolCompletedEvent).Data
			require.NoError(t, data.Validate(tt.kind))
			tt.check(t, data)
		})
	}
}

func TestDecoder_Errors(t *testing.T) {
	d := NewDecoder()

	_, err := d.DecodeFrame([]byte(`{not json`))
	assert.True(t, core.IsCategory(err, core.ErrCatMalformed))

	_, err = d.DecodeFrame([]byte(`{"event":"agent_dance","data":{}}`))
	assert.True(t, core.IsCategory(err, core.ErrCatMalformed))

	_, err = d.DecodeFrame([]byte(`{"event":"agent_thinking"}`))
	assert.True(t, core.IsCategory(err, core.ErrCatMalformed))

	_, err = d.Decode(frame(t, EventTaskResult, "t1", TaskResult{Status: "maybe"}))
	assert.True(t, core.IsCategory(err, core.ErrCatMalformed))

	_, err = d.Decode(frame(t, EventUserTaskSubmit, "", TaskSubmit{Status: StatusFailed, Msg: "Failed to process task"}))
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestDecoder_FailedTask(t *testing.T) {
	d := NewDecoder()
	ev, err := d.DecodeFrame([]byte(`{"event":"task_result","data":{"task_id":"t9","status":"failed"}}`))
	require.NoError(t, err)
	term := ev.(events.TaskTerminatedEvent)
	assert.Equal(t, "t9", term.TaskID())
	assert.Equal(t, events.OutcomeFailed, term.Outcome)
	assert.Equal(t, FailedReason, term.Reason)
}

func TestMessage_Time(t *testing.T) {
	msg := Message{Timestamp: "2025-05-01T10:00:00.123456"}
	assert.Equal(t, 2025, msg.Time().Year())
	assert.True(t, Message{Timestamp: "yesterday"}.Time().IsZero())
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, core.ToolKindSearch, InferKind("google_search", "Google Search"))
	assert.Equal(t, core.ToolKindTerminal, InferKind("Bash"))
	assert.Equal(t, core.ToolKindFile, InferKind("file_reader"))
	assert.Equal(t, core.ToolKindOther, InferKind("calculator"))
}

func TestDecoder_ForgetDropsUnsentSubmission(t *testing.T) {
	d := NewDecoder()
	d.Expect("first")
	d.Expect("unsent")
	d.Forget("unsent")
	d.Forget("never expected")

	ev, err := d.Decode(frame(t, EventUserTaskSubmit, "t1", TaskSubmit{Status: StatusSuccess, TaskID: "t1"}))
	require.NoError(t, err)
	assert.Equal(t, "first", ev.(events.UserSubmittedEvent).Text)

	ev, err = d.Decode(frame(t, EventUserTaskSubmit, "t2", TaskSubmit{Status: StatusSuccess, TaskID: "t2"}))
	require.NoError(t, err)
	assert.Equal(t, "t2", ev.(events.UserSubmittedEvent).Text)
}
