package testutil

import (
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

// NewTestTask creates a running task with sensible defaults for tests.
// Use functional options to override specific fields.
func NewTestTask(opts ...func(*core.Task)) *core.Task {
	t := core.NewTask("task-1", 1, "Summarize AgentMesh", core.DefaultTitleLength)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Identifiers used by SearchTaskEvents.
const (
	SearchTurnID       = "turn-1"
	SearchInvocationID = "inv-1"
)

// SearchTaskEvents returns the inbound events of one complete search task:
// submission, a Search Assistant turn with thinking, a google_search call
// and its result, a response, then completion.
func SearchTaskEvents(taskID, text string) []events.Event {
	return []events.Event{
		events.NewUserSubmittedEvent(taskID, text),
		events.NewTurnStartedEvent(taskID, SearchTurnID, "Search Assistant", "search.png", text),
		events.NewThinkingUpdatedEvent(taskID, SearchTurnID, "I should look this up."),
		events.NewToolInvokedEvent(taskID, SearchTurnID, SearchInvocationID, core.ToolKindSearch, "google_search", `{"query":"AgentMesh"}`),
		events.NewToolCompletedEvent(taskID, SearchInvocationID, &core.ToolResult{
			Search: &core.SearchResult{
				Query: "AgentMesh",
				Results: []core.SearchHit{
					{ID: "1", Title: "AgentMesh", Snippet: "Multi-agent console", URL: "https://example.com/agentmesh"},
				},
			},
		}),
		events.NewResponseAppendedEvent(taskID, SearchTurnID, "AgentMesh coordinates agents."),
		events.NewTaskTerminatedEvent(taskID, events.OutcomeCompleted, ""),
	}
}
