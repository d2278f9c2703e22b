package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

// FailedReason is recorded on tasks the backend reports as failed.
const FailedReason = "backend reported failure"

// Decoder maps backend frames to inbound events. The protocol identifies
// agents and tools by name only, so the decoder derives stable turn ids
// (<task>:<agent_id>:<n>) and invocation ids (<task>:<tool_id>:<n>) from
// per-task counters. It is safe for concurrent use.
type Decoder struct {
	mu sync.Mutex
	// pending holds submitted texts awaiting their user_task_submit ack.
	pending []string
	turns   map[string]int
	tools   map[string]int
	calls   map[string]toolCall
}

type toolCall struct {
	kind   core.ToolKind
	params map[string]any
}

// NewDecoder creates a decoder with no history.
func NewDecoder() *Decoder {
	return &Decoder{
		turns: make(map[string]int),
		tools: make(map[string]int),
		calls: make(map[string]toolCall),
	}
}

// Expect records the text of a submission so the backend's acknowledgement
// can be turned into a UserSubmitted event carrying it.
func (d *Decoder) Expect(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, text)
}

// Forget drops the most recent pending copy of text, for a submission that
// never reached the backend.
func (d *Decoder) Forget(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.pending) - 1; i >= 0; i-- {
		if d.pending[i] == text {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
}

// DecodeFrame parses and decodes one raw frame.
func (d *Decoder) DecodeFrame(raw []byte) (events.Inbound, error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return d.Decode(msg)
}

// Decode maps one frame to an inbound event. Unknown events are malformed;
// a rejected submission is a validation error.
func (d *Decoder) Decode(msg Message) (events.Inbound, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch msg.Event {
	case EventUserTaskSubmit:
		return d.decodeSubmit(msg)
	case EventAgentDecision:
		return d.decodeDecision(msg)
	case EventAgentThinking:
		return d.decodeThinking(msg)
	case EventToolDecision:
		return d.decodeToolDecision(msg)
	case EventToolExecute:
		return d.decodeToolExecute(msg)
	case EventAgentResult:
		return d.decodeResult(msg)
	case EventTaskResult:
		return d.decodeTaskResult(msg)
	case EventUserInput:
		var in UserInput
		if err := msg.Payload(&in); err != nil {
			return nil, err
		}
		return events.NewUserSubmittedEvent(msg.TaskID, in.Text), nil
	}
	return nil, core.ErrMalformed(core.CodeUnknownEvent, fmt.Sprintf("unknown wire event %q", msg.Event))
}

func (d *Decoder) decodeSubmit(msg Message) (events.Inbound, error) {
	var p TaskSubmit
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	text := d.popPending()
	if p.Status != StatusSuccess {
		reason := p.Msg
		if reason == "" {
			reason = "submission rejected by backend"
		}
		return nil, core.ErrValidation(core.CodeSubmitRejected, reason)
	}
	taskID := firstNonEmpty(p.TaskID, msg.TaskID)
	if taskID == "" {
		return nil, core.ErrMalformed(core.CodeMissingField, "user_task_submit has no task_id")
	}
	if text == "" {
		text = taskID
	}
	return events.NewUserSubmittedEvent(taskID, text), nil
}

func (d *Decoder) decodeDecision(msg Message) (events.Inbound, error) {
	var p AgentDecision
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	taskID := firstNonEmpty(msg.TaskID, p.TaskID)
	agent := firstNonEmpty(p.AgentID, p.AgentName)
	key := taskID + ":" + agent
	d.turns[key]++
	turnID := fmt.Sprintf("%s:%d", key, d.turns[key])
	return events.NewTurnStartedEvent(taskID, turnID, firstNonEmpty(p.AgentName, p.AgentID), p.AgentAvatar, p.SubTask), nil
}

func (d *Decoder) decodeThinking(msg Message) (events.Inbound, error) {
	var p AgentThinking
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	taskID := firstNonEmpty(msg.TaskID, p.TaskID)
	return events.NewThinkingUpdatedEvent(taskID, d.currentTurn(taskID, p.AgentID), p.Thought), nil
}

func (d *Decoder) decodeResult(msg Message) (events.Inbound, error) {
	var p AgentResult
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	return events.NewResponseAppendedEvent(msg.TaskID, d.currentTurn(msg.TaskID, p.AgentID), p.Result), nil
}

func (d *Decoder) decodeToolDecision(msg Message) (events.Inbound, error) {
	var p ToolDecision
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	taskID := firstNonEmpty(msg.TaskID, p.TaskID)
	tool := firstNonEmpty(p.ToolID, p.ToolName)
	key := taskID + ":" + tool
	d.tools[key]++
	invID := fmt.Sprintf("%s:%d", key, d.tools[key])

	var params map[string]any
	if len(p.Parameters) > 0 {
		// Non-object parameters stay opaque.
		_ = json.Unmarshal(p.Parameters, &params)
	}
	kind := InferKind(tool, p.ToolName)
	d.calls[invID] = toolCall{kind: kind, params: params}

	return events.NewToolInvokedEvent(taskID, d.currentTurn(taskID, p.AgentID), invID, kind,
		firstNonEmpty(p.ToolName, p.ToolID), compact(p.Parameters)), nil
}

func (d *Decoder) decodeToolExecute(msg Message) (events.Inbound, error) {
	var p ToolExecute
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	taskID := firstNonEmpty(msg.TaskID, p.TaskID)
	tool := firstNonEmpty(p.ToolID, p.ToolName)
	key := taskID + ":" + tool
	invID := fmt.Sprintf("%s:%d", key, d.tools[key])

	call, ok := d.calls[invID]
	if !ok {
		call = toolCall{kind: InferKind(tool, p.ToolName)}
	}
	return events.NewToolCompletedEvent(taskID, invID, shapeResult(call, p)), nil
}

func (d *Decoder) decodeTaskResult(msg Message) (events.Inbound, error) {
	var p TaskResult
	if err := msg.Payload(&p); err != nil {
		return nil, err
	}
	taskID := firstNonEmpty(msg.TaskID, p.TaskID)
	switch p.Status {
	case StatusSuccess:
		return events.NewTaskTerminatedEvent(taskID, events.OutcomeCompleted, ""), nil
	case StatusFailed:
		return events.NewTaskTerminatedEvent(taskID, events.OutcomeFailed, FailedReason), nil
	}
	return nil, core.ErrMalformed(core.CodeUnknownOutcome, fmt.Sprintf("unknown task_result status %q", p.Status))
}

// currentTurn returns the id of the agent's latest turn in a task. An agent
// that never started a turn yields an id the timeline will not know.
func (d *Decoder) currentTurn(taskID, agent string) string {
	key := taskID + ":" + agent
	return fmt.Sprintf("%s:%d", key, d.turns[key])
}

func (d *Decoder) popPending() string {
	if len(d.pending) == 0 {
		return ""
	}
	text := d.pending[0]
	d.pending = d.pending[1:]
	return text
}

// InferKind classifies a tool by its id and display name.
func InferKind(names ...string) core.ToolKind {
	joined := strings.ToLower(strings.Join(names, " "))
	switch {
	case strings.Contains(joined, "search"):
		return core.ToolKindSearch
	case containsAny(joined, "terminal", "bash", "shell", "command", "exec"):
		return core.ToolKindTerminal
	case containsAny(joined, "file", "read", "write"):
		return core.ToolKindFile
	default:
		return core.ToolKindOther
	}
}

// shapeResult fits a backend tool_result into the payload shape of the
// invocation's kind, filling gaps from the call parameters.
func shapeResult(call toolCall, p ToolExecute) *core.ToolResult {
	var obj map[string]json.RawMessage
	_ = json.Unmarshal(p.ToolResult, &obj)

	switch call.kind {
	case core.ToolKindSearch:
		res := &core.SearchResult{
			Query:   firstNonEmpty(str(obj, "query"), param(call.params, "query")),
			Results: []core.SearchHit{},
		}
		if raw, ok := obj["results"]; ok {
			_ = json.Unmarshal(raw, &res.Results)
			if res.Results == nil {
				res.Results = []core.SearchHit{}
			}
		}
		return &core.ToolResult{Kind: call.kind, Search: res}
	case core.ToolKindTerminal:
		out := str(obj, "output")
		if obj == nil {
			out = plain(p.ToolResult)
		}
		return &core.ToolResult{Kind: call.kind, Terminal: &core.TerminalResult{
			Command: firstNonEmpty(str(obj, "command"), param(call.params, "command")),
			Output:  out,
		}}
	case core.ToolKindFile:
		content := str(obj, "content")
		if obj == nil {
			content = plain(p.ToolResult)
		}
		return &core.ToolResult{Kind: call.kind, File: &core.FileResult{
			Path:    firstNonEmpty(str(obj, "path"), param(call.params, "path")),
			Content: content,
		}}
	}
	other := p.ToolResult
	if len(other) == 0 {
		other = json.RawMessage(`{"status":` + quote(p.Status) + `}`)
	}
	return &core.ToolResult{Kind: core.ToolKindOther, Other: other}
}

func str(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func param(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// plain renders a non-object result as text.
func plain(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Event decodes one raw frame into an event for the ingest adapter. Frames
// that fail to decode become DecodeFailedEvent so the failure is recorded as
// an anomaly instead of vanishing.
func (d *Decoder) Event(raw []byte) events.Event {
	ev, err := d.DecodeFrame(raw)
	if err != nil {
		return events.NewDecodeFailedEvent(taskIDOf(raw), raw, err)
	}
	return ev
}

func taskIDOf(raw []byte) string {
	var head struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.TaskID
}
