package events

import (
	"errors"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// Change notification types published after a mutation is applied.
const (
	TypeTaskChanged = "task_changed"
	TypeTurnChanged = "turn_changed"
	TypeToolChanged = "tool_changed"
	TypeAnomaly     = "anomaly"
)

// TaskChangedEvent carries a copy of a task after it was created or moved
// to a new status.
type TaskChangedEvent struct {
	BaseEvent
	Task     *core.Task      `json:"task"`
	Previous core.TaskStatus `json:"previous,omitempty"`
}

// NewTaskChangedEvent creates a new task change notification.
func NewTaskChangedEvent(task *core.Task, previous core.TaskStatus) TaskChangedEvent {
	return TaskChangedEvent{
		BaseEvent: NewBaseEvent(TypeTaskChanged, string(task.ID)),
		Task:      task.Clone(),
		Previous:  previous,
	}
}

// TurnChangedEvent carries a copy of a turn after any field changed.
type TurnChangedEvent struct {
	BaseEvent
	Turn *core.AgentTurn `json:"turn"`
}

// NewTurnChangedEvent creates a new turn change notification.
func NewTurnChangedEvent(turn *core.AgentTurn) TurnChangedEvent {
	return TurnChangedEvent{
		BaseEvent: NewBaseEvent(TypeTurnChanged, string(turn.TaskID)),
		Turn:      turn.Clone(),
	}
}

// ToolChangedEvent carries a copy of an invocation after it was recorded
// or completed.
type ToolChangedEvent struct {
	BaseEvent
	Invocation *core.ToolInvocation `json:"invocation"`
}

// NewToolChangedEvent creates a new tool change notification.
func NewToolChangedEvent(taskID core.TaskID, inv *core.ToolInvocation) ToolChangedEvent {
	return ToolChangedEvent{
		BaseEvent:  NewBaseEvent(TypeToolChanged, string(taskID)),
		Invocation: inv.Clone(),
	}
}

// AnomalyEvent reports an inbound event that was dropped.
type AnomalyEvent struct {
	BaseEvent
	Source   string             `json:"source"`
	Category core.ErrorCategory `json:"category"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
}

// NewAnomalyEvent creates a new anomaly notification for a dropped event of
// type source.
func NewAnomalyEvent(taskID, source string, err error) AnomalyEvent {
	ev := AnomalyEvent{
		BaseEvent: NewBaseEvent(TypeAnomaly, taskID),
		Source:    source,
		Category:  core.GetCategory(err),
		Message:   err.Error(),
	}
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		ev.Code = domErr.Code
		ev.Message = domErr.Message
	}
	return ev
}
