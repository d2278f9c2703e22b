package ingest

import (
	"fmt"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

type taskChange struct {
	task     *core.Task
	previous core.TaskStatus
}

type toolChange struct {
	taskID core.TaskID
	inv    *core.ToolInvocation
}

// changes lists the entities touched by one applied event, as copies.
type changes struct {
	tasks []taskChange
	turns []*core.AgentTurn
	tools []toolChange
}

// taskID returns the task the event resolved to. For a submission that is
// the created task, listed last.
func (c changes) taskID() core.TaskID {
	switch {
	case len(c.tasks) > 0:
		return c.tasks[len(c.tasks)-1].task.ID
	case len(c.turns) > 0:
		return c.turns[0].TaskID
	case len(c.tools) > 0:
		return c.tools[0].taskID
	}
	return ""
}

func (c changes) empty() bool {
	return len(c.tasks) == 0 && len(c.turns) == 0 && len(c.tools) == 0
}

// apply performs exactly one transition. Every guard runs before the first
// write, so a returned error means nothing changed.
func (a *Adapter) apply(in events.Inbound) (changes, error) {
	switch ev := in.(type) {
	case events.UserSubmittedEvent:
		return a.applySubmitted(ev)
	case events.TurnStartedEvent:
		return a.applyTurnStarted(ev)
	case events.ThinkingUpdatedEvent:
		return a.applyThinking(ev)
	case events.ToolInvokedEvent:
		return a.applyToolInvoked(ev)
	case events.ToolCompletedEvent:
		return a.applyToolCompleted(ev)
	case events.ResponseAppendedEvent:
		return a.applyResponse(ev)
	case events.TaskTerminatedEvent:
		return a.applyTerminated(ev)
	}
	return changes{}, core.ErrMalformed(core.CodeUnknownEvent, fmt.Sprintf("unhandled event type %q", in.EventType()))
}

func (a *Adapter) applySubmitted(ev events.UserSubmittedEvent) (changes, error) {
	created, superseded, err := a.tasks.Create(ev.Text, core.TaskID(ev.TaskID()))
	if err != nil {
		return changes{}, err
	}
	var ch changes
	if superseded != nil {
		ch.turns = a.closeTask(superseded.ID)
		ch.tasks = append(ch.tasks, taskChange{task: superseded, previous: core.TaskStatusRunning})
	}
	ch.tasks = append(ch.tasks, taskChange{task: created})
	return ch, nil
}

// routeTask resolves the task an event targets: its own task id when set,
// otherwise the active task. The task must be running.
func (a *Adapter) routeTask(taskID string) (core.TaskID, error) {
	id := core.TaskID(taskID)
	if id == "" {
		id = a.tasks.ActiveID()
		if id == "" {
			return "", &core.DomainError{
				Category: core.ErrCatOrphaned,
				Code:     core.CodeNoActiveTask,
				Message:  "no active task to attach the event to",
			}
		}
	}
	status, ok := a.tasks.Status(id)
	if !ok {
		return "", core.ErrOrphaned("task", string(id))
	}
	if status != core.TaskStatusRunning {
		return "", core.ErrTransition(core.CodeNotRunning, fmt.Sprintf("task %s is %s", id, status))
	}
	return id, nil
}

func (a *Adapter) applyTurnStarted(ev events.TurnStartedEvent) (changes, error) {
	taskID, err := a.routeTask(ev.TaskID())
	if err != nil {
		return changes{}, err
	}
	before := a.turns.Turns(taskID)
	turnID, err := a.turns.StartTurn(taskID, ev.AgentName, ev.AvatarRef, ev.TaskText, core.TurnID(ev.TurnID))
	if err != nil {
		return changes{}, err
	}

	var ch changes
	if n := len(before); n > 0 && !before[n-1].Closed {
		if prev, ok := a.turns.Get(before[n-1].ID); ok {
			ch.turns = append(ch.turns, prev)
		}
	}
	turn, _ := a.turns.Get(turnID)
	ch.turns = append(ch.turns, turn)
	return ch, nil
}

func (a *Adapter) applyThinking(ev events.ThinkingUpdatedEvent) (changes, error) {
	id := core.TurnID(ev.TurnID)
	if err := a.turns.UpdateThinking(id, ev.Text); err != nil {
		return changes{}, err
	}
	return a.turnChanged(id), nil
}

func (a *Adapter) applyResponse(ev events.ResponseAppendedEvent) (changes, error) {
	id := core.TurnID(ev.TurnID)
	if err := a.turns.AppendResponse(id, ev.Text); err != nil {
		return changes{}, err
	}
	return a.turnChanged(id), nil
}

func (a *Adapter) applyToolInvoked(ev events.ToolInvokedEvent) (changes, error) {
	invID := core.InvocationID(ev.InvocationID)
	turnID := core.TurnID(ev.TurnID)
	if a.tools.Has(invID) {
		return changes{}, core.ErrTransition(core.CodeDuplicateTool,
			fmt.Sprintf("invocation %s already recorded", invID))
	}
	kind, err := core.ParseToolKind(string(ev.Kind))
	if err != nil {
		return changes{}, err
	}
	// Validates the turn and its task before anything is written.
	if err := a.turns.AddToolInvocation(turnID, invID); err != nil {
		return changes{}, err
	}

	inv := &core.ToolInvocation{
		ID:        invID,
		TurnID:    turnID,
		Kind:      kind,
		Name:      ev.Name,
		Params:    ev.Params,
		InvokedAt: a.now(),
	}
	a.tools.Record(inv)

	ch := a.turnChanged(turnID)
	taskID, _ := a.turns.TaskOf(turnID)
	ch.tools = append(ch.tools, toolChange{taskID: taskID, inv: inv.Clone()})
	return ch, nil
}

func (a *Adapter) applyToolCompleted(ev events.ToolCompletedEvent) (changes, error) {
	invID := core.InvocationID(ev.InvocationID)
	inv, ok := a.tools.Get(invID)
	if !ok {
		return changes{}, core.ErrOrphaned("invocation", string(invID))
	}
	if err := ev.Data.Validate(inv.Kind); err != nil {
		return changes{}, err
	}
	data := ev.Data.Clone()
	data.Kind = inv.Kind

	if inv.IsCompleted() {
		if inv.Data.Equal(data) {
			// Identical replay.
			return changes{}, nil
		}
		return changes{}, core.ErrTransition(core.CodeResultImmutable,
			fmt.Sprintf("invocation %s already has a different result", invID))
	}

	taskID, _ := a.turns.TaskOf(inv.TurnID)
	if status, ok := a.tasks.Status(taskID); ok && status.IsTerminal() {
		return changes{}, core.ErrTransition(core.CodeNotRunning,
			fmt.Sprintf("task %s is %s", taskID, status))
	}

	completedAt := a.now()
	inv.Data = data
	inv.CompletedAt = &completedAt
	a.tools.Record(inv)

	return changes{tools: []toolChange{{taskID: taskID, inv: inv}}}, nil
}

func (a *Adapter) applyTerminated(ev events.TaskTerminatedEvent) (changes, error) {
	id := core.TaskID(ev.TaskID())
	var (
		task *core.Task
		err  error
	)
	switch ev.Outcome {
	case events.OutcomeCompleted:
		task, err = a.tasks.Complete(id)
	default:
		task, err = a.tasks.Fail(id, ev.Reason)
	}
	if err != nil {
		return changes{}, err
	}
	return changes{
		tasks: []taskChange{{task: task, previous: core.TaskStatusRunning}},
		turns: a.closeTask(id),
	}, nil
}

// closeTask closes the task's turns and returns the turn that was open.
func (a *Adapter) closeTask(id core.TaskID) []*core.AgentTurn {
	turns := a.turns.Turns(id)
	a.turns.CloseTask(id)
	for _, t := range turns {
		if !t.Closed {
			if closed, ok := a.turns.Get(t.ID); ok {
				return []*core.AgentTurn{closed}
			}
		}
	}
	return nil
}

func (a *Adapter) turnChanged(id core.TurnID) changes {
	turn, ok := a.turns.Get(id)
	if !ok {
		return changes{}
	}
	return changes{turns: []*core.AgentTurn{turn}}
}
