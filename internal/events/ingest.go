package events

import (
	"encoding/json"
	"fmt"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// Event type constants for inbound activity.
const (
	TypeUserSubmitted    = "user_submitted"
	TypeTurnStarted      = "turn_started"
	TypeThinkingUpdated  = "thinking_updated"
	TypeToolInvoked      = "tool_invoked"
	TypeToolCompleted    = "tool_completed"
	TypeResponseAppended = "response_appended"
	TypeTaskTerminated   = "task_terminated"
	TypeDecodeFailed     = "decode_failed"
)

// Outcome is the terminal result carried by TaskTerminated.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Inbound is the tagged variant consumed by the ingest adapter. Only the
// types in this file implement it.
type Inbound interface {
	Event
	// Validate reports structural problems as malformed domain errors.
	Validate() error
	inbound()
}

// UserSubmittedEvent is a user request that creates a task. The task id is
// optional; when the backend assigns one it travels in BaseEvent.Task.
type UserSubmittedEvent struct {
	BaseEvent
	Text string `json:"text"`
}

// NewUserSubmittedEvent creates a new user submission event.
func NewUserSubmittedEvent(taskID, text string) UserSubmittedEvent {
	return UserSubmittedEvent{
		BaseEvent: NewBaseEvent(TypeUserSubmitted, taskID),
		Text:      text,
	}
}

func (e UserSubmittedEvent) Validate() error {
	if core.IsBlank(e.Text) {
		return core.ErrMalformed(core.CodeEmptyText, "submission text is empty")
	}
	return nil
}

// TurnStartedEvent begins an agent turn. TurnID is optional; the timeline
// assigns one when the backend does not.
type TurnStartedEvent struct {
	BaseEvent
	TurnID    string `json:"turn_id,omitempty"`
	AgentName string `json:"agent_name"`
	AvatarRef string `json:"avatar_ref"`
	TaskText  string `json:"task_text,omitempty"`
}

// NewTurnStartedEvent creates a new turn started event.
func NewTurnStartedEvent(taskID, turnID, agentName, avatarRef, taskText string) TurnStartedEvent {
	return TurnStartedEvent{
		BaseEvent: NewBaseEvent(TypeTurnStarted, taskID),
		TurnID:    turnID,
		AgentName: agentName,
		AvatarRef: avatarRef,
		TaskText:  taskText,
	}
}

func (e TurnStartedEvent) Validate() error {
	if core.IsBlank(e.AgentName) {
		return missing("agent_name")
	}
	return nil
}

// ThinkingUpdatedEvent replaces a turn's rationale.
type ThinkingUpdatedEvent struct {
	BaseEvent
	TurnID string `json:"turn_id"`
	Text   string `json:"text"`
}

// NewThinkingUpdatedEvent creates a new thinking event.
func NewThinkingUpdatedEvent(taskID, turnID, text string) ThinkingUpdatedEvent {
	return ThinkingUpdatedEvent{
		BaseEvent: NewBaseEvent(TypeThinkingUpdated, taskID),
		TurnID:    turnID,
		Text:      text,
	}
}

func (e ThinkingUpdatedEvent) Validate() error {
	if e.TurnID == "" {
		return missing("turn_id")
	}
	return nil
}

// ToolInvokedEvent records a tool call made during a turn.
type ToolInvokedEvent struct {
	BaseEvent
	TurnID       string        `json:"turn_id"`
	InvocationID string        `json:"invocation_id"`
	Kind         core.ToolKind `json:"kind"`
	Name         string        `json:"name"`
	Params       string        `json:"params"`
}

// NewToolInvokedEvent creates a new tool invocation event.
func NewToolInvokedEvent(taskID, turnID, invocationID string, kind core.ToolKind, name, params string) ToolInvokedEvent {
	return ToolInvokedEvent{
		BaseEvent:    NewBaseEvent(TypeToolInvoked, taskID),
		TurnID:       turnID,
		InvocationID: invocationID,
		Kind:         kind,
		Name:         name,
		Params:       params,
	}
}

func (e ToolInvokedEvent) Validate() error {
	switch {
	case e.TurnID == "":
		return missing("turn_id")
	case e.InvocationID == "":
		return missing("invocation_id")
	case core.IsBlank(e.Name):
		return missing("name")
	}
	if _, err := core.ParseToolKind(string(e.Kind)); err != nil {
		return err
	}
	return nil
}

// ToolCompletedEvent delivers the result of an earlier invocation.
type ToolCompletedEvent struct {
	BaseEvent
	InvocationID string           `json:"invocation_id"`
	Data         *core.ToolResult `json:"data"`
}

// NewToolCompletedEvent creates a new tool completion event.
func NewToolCompletedEvent(taskID, invocationID string, data *core.ToolResult) ToolCompletedEvent {
	return ToolCompletedEvent{
		BaseEvent:    NewBaseEvent(TypeToolCompleted, taskID),
		InvocationID: invocationID,
		Data:         data,
	}
}

func (e ToolCompletedEvent) Validate() error {
	if e.InvocationID == "" {
		return missing("invocation_id")
	}
	if e.Data == nil {
		return missing("data")
	}
	return nil
}

// ResponseAppendedEvent adds response text to a turn.
type ResponseAppendedEvent struct {
	BaseEvent
	TurnID string `json:"turn_id"`
	Text   string `json:"text"`
}

// NewResponseAppendedEvent creates a new response event.
func NewResponseAppendedEvent(taskID, turnID, text string) ResponseAppendedEvent {
	return ResponseAppendedEvent{
		BaseEvent: NewBaseEvent(TypeResponseAppended, taskID),
		TurnID:    turnID,
		Text:      text,
	}
}

func (e ResponseAppendedEvent) Validate() error {
	if e.TurnID == "" {
		return missing("turn_id")
	}
	return nil
}

// TaskTerminatedEvent ends a task.
type TaskTerminatedEvent struct {
	BaseEvent
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// NewTaskTerminatedEvent creates a new task termination event.
func NewTaskTerminatedEvent(taskID string, outcome Outcome, reason string) TaskTerminatedEvent {
	return TaskTerminatedEvent{
		BaseEvent: NewBaseEvent(TypeTaskTerminated, taskID),
		Outcome:   outcome,
		Reason:    reason,
	}
}

func (e TaskTerminatedEvent) Validate() error {
	if e.Task == "" {
		return missing("task_id")
	}
	switch e.Outcome {
	case OutcomeCompleted, OutcomeFailed:
		return nil
	}
	return core.ErrMalformed(core.CodeUnknownOutcome, fmt.Sprintf("unknown outcome %q", e.Outcome))
}

// DecodeFailedEvent stands in for a transport frame that could not be
// turned into an inbound event. The ingest adapter records it as an anomaly
// carrying Err.
type DecodeFailedEvent struct {
	BaseEvent
	Err error  `json:"-"`
	Raw string `json:"raw,omitempty"`
}

// NewDecodeFailedEvent wraps a decoding error.
func NewDecodeFailedEvent(taskID string, raw []byte, err error) DecodeFailedEvent {
	return DecodeFailedEvent{
		BaseEvent: NewBaseEvent(TypeDecodeFailed, taskID),
		Err:       err,
		Raw:       string(raw),
	}
}

func (UserSubmittedEvent) inbound()    {}
func (TurnStartedEvent) inbound()      {}
func (ThinkingUpdatedEvent) inbound()  {}
func (ToolInvokedEvent) inbound()      {}
func (ToolCompletedEvent) inbound()    {}
func (ResponseAppendedEvent) inbound() {}
func (TaskTerminatedEvent) inbound()   {}

func missing(field string) error {
	return core.ErrMalformed(core.CodeMissingField, fmt.Sprintf("%s is required", field)).
		WithDetail("field", field)
}

// DecodeInbound rebuilds an inbound event from its type tag and JSON body,
// as written to the event journal.
func DecodeInbound(eventType string, data []byte) (Inbound, error) {
	var (
		ev  Inbound
		err error
	)
	switch eventType {
	case TypeUserSubmitted:
		var e UserSubmittedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeTurnStarted:
		var e TurnStartedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeThinkingUpdated:
		var e ThinkingUpdatedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeToolInvoked:
		var e ToolInvokedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeToolCompleted:
		var e ToolCompletedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeResponseAppended:
		var e ResponseAppendedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeTaskTerminated:
		var e TaskTerminatedEvent
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, core.ErrMalformed(core.CodeUnknownEvent, fmt.Sprintf("unknown event type %q", eventType))
	}
	if err != nil {
		return nil, core.ErrMalformed(core.CodeInvalidJSON, "decoding "+eventType).WithCause(err)
	}
	return ev, nil
}
