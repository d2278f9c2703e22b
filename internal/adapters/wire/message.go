// Package wire converts between the AgentMesh WebSocket protocol and the
// typed events consumed by the ingest adapter.
//
// Every frame is a JSON text message:
//
//	{"event":"agent_decision","task_id":"...","timestamp":"2025-05-01T10:00:00.000000","data":{...}}
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// Wire event names.
const (
	EventUserInput      = "user_input"
	EventUserTaskSubmit = "user_task_submit"
	EventAgentDecision  = "agent_decision"
	EventAgentThinking  = "agent_thinking"
	EventToolDecision   = "tool_decision"
	EventToolExecute    = "tool_execute"
	EventAgentResult    = "agent_result"
	EventTaskResult     = "task_result"
)

// Status values used by user_task_submit, tool_execute and task_result.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TimestampLayout is the ISO-8601 layout the backend stamps frames with. It
// carries no zone.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Message is one protocol frame.
type Message struct {
	Event     string          `json:"event"`
	TaskID    string          `json:"task_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Time parses the frame timestamp. Frames without a parseable timestamp
// report the zero time.
func (m Message) Time() time.Time {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, m.Timestamp, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// UserInput is sent by the client to submit a request.
type UserInput struct {
	Text string `json:"text"`
}

// TaskSubmit acknowledges a submission.
type TaskSubmit struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
	Msg    string `json:"msg,omitempty"`
}

// AgentDecision announces that an agent takes over a sub task.
type AgentDecision struct {
	TaskID      string `json:"task_id,omitempty"`
	AgentID     string `json:"agent_id"`
	AgentName   string `json:"agent_name"`
	AgentAvatar string `json:"agent_avatar"`
	SubTask     string `json:"sub_task,omitempty"`
}

// AgentThinking carries the agent's current reasoning.
type AgentThinking struct {
	TaskID  string `json:"task_id,omitempty"`
	AgentID string `json:"agent_id"`
	Thought string `json:"thought"`
}

// ToolDecision announces a tool call.
type ToolDecision struct {
	TaskID     string          `json:"task_id,omitempty"`
	AgentID    string          `json:"agent_id"`
	ToolID     string          `json:"tool_id,omitempty"`
	ToolName   string          `json:"tool_name"`
	Thought    string          `json:"thought,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ToolExecute reports a tool call's result.
type ToolExecute struct {
	TaskID        string          `json:"task_id,omitempty"`
	AgentID       string          `json:"agent_id"`
	ToolID        string          `json:"tool_id,omitempty"`
	ToolName      string          `json:"tool_name"`
	Status        string          `json:"status"`
	ExecutionTime int64           `json:"execution_time"`
	ToolResult    json.RawMessage `json:"tool_result,omitempty"`
}

// AgentResult carries an agent's answer.
type AgentResult struct {
	AgentID string `json:"agent_id"`
	Result  string `json:"result"`
}

// TaskResult ends a task.
type TaskResult struct {
	TaskID string `json:"task_id,omitempty"`
	Status string `json:"status"`
}

// NewMessage builds a frame stamped with now.
func NewMessage(event, taskID string, data any, now time.Time) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return Message{
		Event:     event,
		TaskID:    taskID,
		Timestamp: now.Format(TimestampLayout),
		Data:      raw,
	}, nil
}

// Encode serializes a frame.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Parse decodes one frame. Invalid JSON and frames without an event name
// are malformed.
func Parse(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, core.ErrMalformed(core.CodeInvalidJSON, fmt.Sprintf("invalid frame: %v", err)).WithCause(err)
	}
	if msg.Event == "" {
		return Message{}, core.ErrMalformed(core.CodeMissingField, "frame has no event name")
	}
	return msg, nil
}

// Payload unmarshals the frame's data into v.
func (m Message) Payload(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return core.ErrMalformed(core.CodeMissingField, fmt.Sprintf("%s frame has no data", m.Event))
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return core.ErrMalformed(core.CodeInvalidJSON, fmt.Sprintf("invalid %s payload: %v", m.Event, err)).WithCause(err)
	}
	return nil
}
