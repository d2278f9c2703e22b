package core

// Snapshot is a point-in-time copy of the three state owners. Readers on
// other goroutines get a Snapshot instead of touching live state.
type Snapshot struct {
	// Tasks ordered newest-first.
	Tasks []*Task `json:"tasks"`
	// ActiveTask is the most recently created running task, if any.
	ActiveTask TaskID `json:"active_task,omitempty"`
	// Turns in creation order across all tasks.
	Turns []*AgentTurn `json:"turns"`
	// Tools in recording order.
	Tools []*ToolInvocation `json:"tools"`
}

// Task returns the task with the given id.
func (s Snapshot) Task(id TaskID) (*Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// TurnsFor returns the turns of one task in creation order.
func (s Snapshot) TurnsFor(id TaskID) []*AgentTurn {
	var turns []*AgentTurn
	for _, t := range s.Turns {
		if t.TaskID == id {
			turns = append(turns, t)
		}
	}
	return turns
}

// Tool returns the invocation with the given id.
func (s Snapshot) Tool(id InvocationID) (*ToolInvocation, bool) {
	for _, inv := range s.Tools {
		if inv.ID == id {
			return inv, true
		}
	}
	return nil, false
}

// ToolsFor returns the invocations referenced by a task's turns, in
// recording order.
func (s Snapshot) ToolsFor(id TaskID) []*ToolInvocation {
	turns := make(map[TurnID]bool)
	for _, t := range s.Turns {
		if t.TaskID == id {
			turns[t.ID] = true
		}
	}
	var tools []*ToolInvocation
	for _, inv := range s.Tools {
		if turns[inv.TurnID] {
			tools = append(tools, inv)
		}
	}
	return tools
}

// RunningCount returns how many tasks are running.
func (s Snapshot) RunningCount() int {
	n := 0
	for _, t := range s.Tasks {
		if t.Status == TaskStatusRunning {
			n++
		}
	}
	return n
}
