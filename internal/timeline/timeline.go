// Package timeline owns the agent turns of every task. Turns live in an
// arena indexed by turn id and are only ever appended to.
//
// A Timeline is not safe for concurrent use.
package timeline

import (
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// Timeline is the append-only table of agent turns.
type Timeline struct {
	turns  []*core.AgentTurn
	byID   map[core.TurnID]int
	open   map[core.TaskID]core.TurnID
	closed map[core.TaskID]bool
	seq    int
	now    func() time.Time
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithClock overrides the clock used to stamp new turns.
func WithClock(now func() time.Time) Option {
	return func(t *Timeline) {
		t.now = now
	}
}

// New creates an empty timeline.
func New(opts ...Option) *Timeline {
	t := &Timeline{
		byID:   make(map[core.TurnID]int),
		open:   make(map[core.TaskID]core.TurnID),
		closed: make(map[core.TaskID]bool),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartTurn appends a turn for taskID and closes the task's previous turn.
// When turnID is empty one is assigned.
func (t *Timeline) StartTurn(taskID core.TaskID, agentName, avatarRef, taskText string, turnID core.TurnID) (core.TurnID, error) {
	if t.closed[taskID] {
		return "", core.ErrTransition(core.CodeNotRunning, fmt.Sprintf("task %s is closed", taskID))
	}
	if turnID != "" {
		if _, exists := t.byID[turnID]; exists {
			return "", core.ErrTransition(core.CodeDuplicateTurn, fmt.Sprintf("turn %s already exists", turnID))
		}
	}

	t.seq++
	if turnID == "" {
		turnID = t.nextID()
	}
	if prev, ok := t.open[taskID]; ok {
		t.turns[t.byID[prev]].Closed = true
	}
	turn := &core.AgentTurn{
		ID:        turnID,
		TaskID:    taskID,
		AgentName: agentName,
		AvatarRef: avatarRef,
		Timestamp: t.now(),
		Task:      taskText,
		Tools:     []core.InvocationID{},
	}
	t.byID[turnID] = len(t.turns)
	t.turns = append(t.turns, turn)
	t.open[taskID] = turnID
	return turnID, nil
}

func (t *Timeline) nextID() core.TurnID {
	for {
		id := core.TurnID(fmt.Sprintf("turn-%d", t.seq))
		if _, exists := t.byID[id]; !exists {
			return id
		}
		t.seq++
	}
}

// lookup returns the turn with id, refusing turns whose task has terminated.
func (t *Timeline) lookup(id core.TurnID) (*core.AgentTurn, error) {
	idx, ok := t.byID[id]
	if !ok {
		return nil, core.ErrOrphaned("turn", string(id))
	}
	turn := t.turns[idx]
	if t.closed[turn.TaskID] {
		return nil, core.ErrTransition(core.CodeTurnClosed,
			fmt.Sprintf("turn %s belongs to terminated task %s", id, turn.TaskID))
	}
	return turn, nil
}

// UpdateThinking replaces the turn's rationale; the latest update wins.
func (t *Timeline) UpdateThinking(id core.TurnID, text string) error {
	turn, err := t.lookup(id)
	if err != nil {
		return err
	}
	turn.Thinking = text
	turn.ThinkingVersion++
	return nil
}

// AddToolInvocation appends an invocation id to the turn in call order.
func (t *Timeline) AddToolInvocation(id core.TurnID, invocationID core.InvocationID) error {
	turn, err := t.lookup(id)
	if err != nil {
		return err
	}
	for _, existing := range turn.Tools {
		if existing == invocationID {
			return core.ErrTransition(core.CodeDuplicateTool,
				fmt.Sprintf("invocation %s already recorded on turn %s", invocationID, id))
		}
	}
	turn.Tools = append(turn.Tools, invocationID)
	return nil
}

// AppendResponse concatenates text to the turn's response.
func (t *Timeline) AppendResponse(id core.TurnID, text string) error {
	turn, err := t.lookup(id)
	if err != nil {
		return err
	}
	turn.Response += text
	turn.ResponseVersion++
	return nil
}

// CloseTask closes the task's open turn and refuses further updates to any
// of its turns.
func (t *Timeline) CloseTask(taskID core.TaskID) {
	if prev, ok := t.open[taskID]; ok {
		t.turns[t.byID[prev]].Closed = true
		delete(t.open, taskID)
	}
	t.closed[taskID] = true
}

// Get returns a copy of the turn with id.
func (t *Timeline) Get(id core.TurnID) (*core.AgentTurn, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.turns[idx].Clone(), true
}

// TaskOf returns the task that owns turn id.
func (t *Timeline) TaskOf(id core.TurnID) (core.TaskID, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return t.turns[idx].TaskID, true
}

// Turns returns copies of the task's turns in creation order.
func (t *Timeline) Turns(taskID core.TaskID) []*core.AgentTurn {
	var out []*core.AgentTurn
	for _, turn := range t.turns {
		if turn.TaskID == taskID {
			out = append(out, turn.Clone())
		}
	}
	return out
}

// All returns copies of every turn in creation order.
func (t *Timeline) All() []*core.AgentTurn {
	out := make([]*core.AgentTurn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.Clone()
	}
	return out
}

// Len returns the number of turns.
func (t *Timeline) Len() int {
	return len(t.turns)
}
