package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

func TestInbound_Validate(t *testing.T) {
	result := &core.ToolResult{Search: &core.SearchResult{Query: "AgentMesh"}}

	tests := []struct {
		name     string
		event    Inbound
		wantCode string
	}{
		{"submission", NewUserSubmittedEvent("", "Summarize AgentMesh"), ""},
		{"blank submission", NewUserSubmittedEvent("", " \n\t"), core.CodeEmptyText},
		{"turn", NewTurnStartedEvent("", "", "Search Assistant", "", ""), ""},
		{"turn without agent", NewTurnStartedEvent("", "", " ", "a.png", ""), core.CodeMissingField},
		{"thinking", NewThinkingUpdatedEvent("", "turn-1", ""), ""},
		{"thinking without turn", NewThinkingUpdatedEvent("", "", "x"), core.CodeMissingField},
		{"tool", NewToolInvokedEvent("", "turn-1", "inv-1", core.ToolKindSearch, "google_search", "{}"), ""},
		{"tool without id", NewToolInvokedEvent("", "turn-1", "", core.ToolKindSearch, "google_search", ""), core.CodeMissingField},
		{"tool without name", NewToolInvokedEvent("", "turn-1", "inv-1", core.ToolKindFile, "", ""), core.CodeMissingField},
		{"tool unknown kind", NewToolInvokedEvent("", "turn-1", "inv-1", "video", "x", ""), core.CodeUnknownKind},
		{"completion", NewToolCompletedEvent("", "inv-1", result), ""},
		{"completion without data", NewToolCompletedEvent("", "inv-1", nil), core.CodeMissingField},
		{"response", NewResponseAppendedEvent("", "turn-1", "done"), ""},
		{"response without turn", NewResponseAppendedEvent("", "", "done"), core.CodeMissingField},
		{"terminated", NewTaskTerminatedEvent("task-1", OutcomeCompleted, ""), ""},
		{"terminated without task", NewTaskTerminatedEvent("", OutcomeFailed, ""), core.CodeMissingField},
		{"terminated bad outcome", NewTaskTerminatedEvent("task-1", "cancelled", ""), core.CodeUnknownOutcome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			var domErr *core.DomainError
			if !errors.As(err, &domErr) {
				t.Fatalf("Validate() = %v, want domain error", err)
			}
			if domErr.Category != core.ErrCatMalformed || domErr.Code != tt.wantCode {
				t.Errorf("Validate() = %s/%s, want malformed/%s", domErr.Category, domErr.Code, tt.wantCode)
			}
		})
	}
}

func TestDecodeInbound(t *testing.T) {
	orig := NewToolCompletedEvent("task-1", "inv-1", &core.ToolResult{
		Kind:     core.ToolKindTerminal,
		Terminal: &core.TerminalResult{Command: "ls", Output: "a\nb"},
	})
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	ev, err := DecodeInbound(TypeToolCompleted, data)
	if err != nil {
		t.Fatalf("DecodeInbound() error = %v", err)
	}
	got, ok := ev.(ToolCompletedEvent)
	if !ok {
		t.Fatalf("DecodeInbound() returned %T", ev)
	}
	if got.TaskID() != "task-1" || got.InvocationID != "inv-1" || !got.Data.Equal(orig.Data) {
		t.Errorf("DecodeInbound() = %+v", got)
	}
}

func TestDecodeInbound_Errors(t *testing.T) {
	if _, err := DecodeInbound("agent_dance", []byte(`{}`)); !core.IsCategory(err, core.ErrCatMalformed) {
		t.Errorf("unknown type: got %v, want malformed", err)
	}
	if _, err := DecodeInbound(TypeUserSubmitted, []byte(`{"text":`)); !core.IsCategory(err, core.ErrCatMalformed) {
		t.Errorf("bad json: got %v, want malformed", err)
	}
}

func TestNewAnomalyEvent(t *testing.T) {
	ev := NewAnomalyEvent("task-1", TypeToolCompleted, core.ErrOrphaned("invocation", "inv-9"))
	if ev.Category != core.ErrCatOrphaned || ev.Code != "UNKNOWN_INVOCATION" {
		t.Errorf("anomaly = %+v", ev)
	}
	if ev.Source != TypeToolCompleted || ev.EventType() != TypeAnomaly {
		t.Errorf("anomaly source/type = %s/%s", ev.Source, ev.EventType())
	}

	plain := NewAnomalyEvent("", TypeLog, errors.New("boom"))
	if plain.Category != core.ErrCatInternal || plain.Message != "boom" {
		t.Errorf("plain anomaly = %+v", plain)
	}
}
