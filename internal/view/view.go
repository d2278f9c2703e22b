// Package view derives presentation state from a snapshot of the task
// registry, agent timeline and tool result index. Project is a pure
// function: the same snapshot and toggles always produce the same View.
package view

import (
	"encoding/json"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// StyleClass selects how a task row is drawn.
type StyleClass string

const (
	ClassActive    StyleClass = "active"
	ClassPending   StyleClass = "pending"
	ClassRunning   StyleClass = "running"
	ClassCompleted StyleClass = "completed"
	ClassFailed    StyleClass = "failed"
)

// Toggles is the UI state a projection depends on.
type Toggles struct {
	// TasksVisible shows the collapsible task list.
	TasksVisible bool `json:"tasks_visible"`
	// Task selects the task whose timeline is shown. Empty follows the
	// active task, then the newest task.
	Task core.TaskID `json:"task,omitempty"`
	// Tool is the explicitly selected tool tab.
	Tool core.InvocationID `json:"tool,omitempty"`
}

// View is the derived display state.
type View struct {
	TasksVisible bool              `json:"tasks_visible"`
	Tasks        []TaskItem        `json:"tasks"`
	Current      *TaskItem         `json:"current,omitempty"`
	Timeline     []TurnView        `json:"timeline"`
	Tabs         []ToolTab         `json:"tabs"`
	Selected     core.InvocationID `json:"selected,omitempty"`
	Detail       *ToolDetail       `json:"detail,omitempty"`
	Running      int               `json:"running"`
}

// TaskItem is one row of the task list.
type TaskItem struct {
	ID          core.TaskID     `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      core.TaskStatus `json:"status"`
	Class       StyleClass      `json:"class"`
	Icon        string          `json:"icon"`
	Reason      string          `json:"reason,omitempty"`
	Viewed      bool            `json:"viewed"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TurnView is one agent turn in the process timeline.
type TurnView struct {
	ID        core.TurnID `json:"id"`
	AgentName string      `json:"agent_name"`
	AvatarRef string      `json:"avatar_ref"`
	Timestamp time.Time   `json:"timestamp"`
	Task      string      `json:"task,omitempty"`
	Thinking  string      `json:"thinking,omitempty"`
	Response  string      `json:"response,omitempty"`
	Tools     []ToolRef   `json:"tools"`
	Open      bool        `json:"open"`
}

// ToolRef is a tool call as listed inside a turn.
type ToolRef struct {
	ID      core.InvocationID `json:"id"`
	Name    string            `json:"name"`
	Kind    core.ToolKind     `json:"kind"`
	Pending bool              `json:"pending"`
	// Missing marks a reference the tool index cannot resolve.
	Missing bool `json:"missing,omitempty"`
}

// ToolTab is one tab of the tool results viewer.
type ToolTab struct {
	ID          core.InvocationID `json:"id"`
	Label       string            `json:"label"`
	Kind        core.ToolKind     `json:"kind"`
	Pending     bool              `json:"pending"`
	Highlighted bool              `json:"highlighted"`
}

// ToolDetail is the payload of the selected tool.
type ToolDetail struct {
	ID       core.InvocationID    `json:"id"`
	Name     string               `json:"name"`
	Kind     core.ToolKind        `json:"kind"`
	Params   string               `json:"params"`
	Pending  bool                 `json:"pending"`
	Summary  string               `json:"summary,omitempty"`
	Search   *core.SearchResult   `json:"search,omitempty"`
	Terminal *core.TerminalResult `json:"terminal,omitempty"`
	File     *core.FileResult     `json:"file,omitempty"`
	Other    json.RawMessage      `json:"other,omitempty"`
}

// Project derives the view for snap under toggles.
func Project(snap core.Snapshot, toggles Toggles) View {
	v := View{
		TasksVisible: toggles.TasksVisible,
		Tasks:        make([]TaskItem, 0, len(snap.Tasks)),
		Timeline:     []TurnView{},
		Tabs:         []ToolTab{},
		Running:      snap.RunningCount(),
	}

	viewed := viewedTask(snap, toggles.Task)
	for _, t := range snap.Tasks {
		item := taskItem(t, t.ID == viewed, t.ID == snap.ActiveTask)
		v.Tasks = append(v.Tasks, item)
		if item.Viewed {
			cur := item
			v.Current = &cur
		}
	}

	tools := make(map[core.InvocationID]*core.ToolInvocation, len(snap.Tools))
	for _, inv := range snap.Tools {
		tools[inv.ID] = inv
	}

	var scoped []*core.ToolInvocation
	if viewed != "" {
		for _, turn := range snap.TurnsFor(viewed) {
			v.Timeline = append(v.Timeline, turnView(turn, tools))
		}
		scoped = snap.ToolsFor(viewed)
	} else {
		scoped = snap.Tools
	}

	v.Selected = selectTool(scoped, toggles.Tool)
	for _, inv := range scoped {
		v.Tabs = append(v.Tabs, ToolTab{
			ID:          inv.ID,
			Label:       inv.Name,
			Kind:        inv.Kind,
			Pending:     !inv.IsCompleted(),
			Highlighted: inv.ID == v.Selected,
		})
	}
	if v.Selected != "" {
		v.Detail = Detail(tools[v.Selected])
	}
	return v
}

// viewedTask picks the requested task when it exists, then the active
// task, then the newest.
func viewedTask(snap core.Snapshot, requested core.TaskID) core.TaskID {
	if requested != "" {
		if _, ok := snap.Task(requested); ok {
			return requested
		}
	}
	if snap.ActiveTask != "" {
		return snap.ActiveTask
	}
	if len(snap.Tasks) > 0 {
		return snap.Tasks[0].ID
	}
	return ""
}

// selectTool keeps an explicit selection that still exists, and otherwise
// falls back to the most recently recorded invocation.
func selectTool(tools []*core.ToolInvocation, requested core.InvocationID) core.InvocationID {
	if len(tools) == 0 {
		return ""
	}
	if requested != "" {
		for _, inv := range tools {
			if inv.ID == requested {
				return requested
			}
		}
	}
	return tools[len(tools)-1].ID
}

func taskItem(t *core.Task, viewed, active bool) TaskItem {
	return TaskItem{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Class:       styleClass(t.Status, active),
		Icon:        StatusIcon(t.Status),
		Reason:      t.Reason,
		Viewed:      viewed,
		CreatedAt:   t.CreatedAt,
	}
}

func styleClass(status core.TaskStatus, active bool) StyleClass {
	switch status {
	case core.TaskStatusRunning:
		if active {
			return ClassActive
		}
		return ClassRunning
	case core.TaskStatusCompleted:
		return ClassCompleted
	case core.TaskStatusFailed:
		return ClassFailed
	default:
		return ClassPending
	}
}

// StatusIcon returns the glyph drawn next to a task.
func StatusIcon(status core.TaskStatus) string {
	switch status {
	case core.TaskStatusRunning:
		return "●"
	case core.TaskStatusCompleted:
		return "✓"
	case core.TaskStatusFailed:
		return "✗"
	default:
		return "○"
	}
}

func turnView(turn *core.AgentTurn, tools map[core.InvocationID]*core.ToolInvocation) TurnView {
	tv := TurnView{
		ID:        turn.ID,
		AgentName: turn.AgentName,
		AvatarRef: turn.AvatarRef,
		Timestamp: turn.Timestamp,
		Task:      turn.Task,
		Thinking:  turn.Thinking,
		Response:  turn.Response,
		Tools:     make([]ToolRef, 0, len(turn.Tools)),
		Open:      !turn.Closed,
	}
	for _, id := range turn.Tools {
		ref := ToolRef{ID: id}
		if inv, ok := tools[id]; ok {
			ref.Name = inv.Name
			ref.Kind = inv.Kind
			ref.Pending = !inv.IsCompleted()
		} else {
			ref.Missing = true
		}
		tv.Tools = append(tv.Tools, ref)
	}
	return tv
}

// Detail renders one invocation for the tool viewer. A nil invocation yields nil.
func Detail(inv *core.ToolInvocation) *ToolDetail {
	if inv == nil {
		return nil
	}
	d := &ToolDetail{
		ID:      inv.ID,
		Name:    inv.Name,
		Kind:    inv.Kind,
		Params:  inv.Params,
		Pending: !inv.IsCompleted(),
	}
	if inv.Data != nil {
		d.Summary = inv.Data.Summary()
		d.Search = inv.Data.Search
		d.Terminal = inv.Data.Terminal
		d.File = inv.Data.File
		d.Other = inv.Data.Other
	}
	return d
}
