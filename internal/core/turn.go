package core

import "time"

// TurnID uniquely identifies an agent turn.
type TurnID string

// AgentTurn is one agent's contribution (thinking, tool calls, response)
// within a task's timeline. Fields are filled in as events arrive and are
// never retracted.
type AgentTurn struct {
	ID              TurnID         `json:"id"`
	TaskID          TaskID         `json:"task_id"`
	AgentName       string         `json:"agent_name"`
	AvatarRef       string         `json:"avatar_ref,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	Task            string         `json:"task,omitempty"`
	Thinking        string         `json:"thinking,omitempty"`
	ThinkingVersion int            `json:"thinking_version"`
	Tools           []InvocationID `json:"tools"`
	Response        string         `json:"response,omitempty"`
	ResponseVersion int            `json:"response_version"`
	Closed          bool           `json:"closed"`
}

// HasThinking reports whether a rationale has been recorded.
func (t *AgentTurn) HasThinking() bool {
	return t.ThinkingVersion > 0
}

// HasResponse reports whether any response text has arrived.
func (t *AgentTurn) HasResponse() bool {
	return t.ResponseVersion > 0
}

// Clone returns a deep copy.
func (t *AgentTurn) Clone() *AgentTurn {
	if t == nil {
		return nil
	}
	c := *t
	c.Tools = append([]InvocationID(nil), t.Tools...)
	return &c
}
