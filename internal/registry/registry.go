// Package registry owns the ordered collection of tasks and their lifecycle.
//
// A Registry is not safe for concurrent use. The ingest adapter serializes
// every mutation and hands readers deep-copied snapshots.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// Policy decides what happens to a running task when a new submission
// arrives.
type Policy string

const (
	// PolicyFail fails the running task before the new one is created.
	PolicyFail Policy = "fail"
	// PolicyComplete completes the running task before the new one is created.
	PolicyComplete Policy = "complete"
	// PolicyReject refuses new submissions while a task is running.
	PolicyReject Policy = "reject"
	// PolicyConcurrent leaves the running task alone; several tasks may run.
	PolicyConcurrent Policy = "concurrent"
)

// SupersededReason is recorded on tasks failed by PolicyFail.
const SupersededReason = "superseded by a new submission"

// InterruptedReason is recorded on restored tasks that were still running
// when history was persisted.
const InterruptedReason = "interrupted"

// ParsePolicy parses a submission policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFail, PolicyComplete, PolicyReject, PolicyConcurrent:
		return p, nil
	case "":
		return PolicyFail, nil
	}
	return "", core.ErrValidation(core.CodeInvalidPolicy, fmt.Sprintf("unknown submission policy %q", s))
}

// Registry holds tasks in creation order with an explicit active pointer.
type Registry struct {
	tasks    []*core.Task
	byID     map[core.TaskID]*core.Task
	active   *core.Task
	seq      int64
	policy   Policy
	titleLen int
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the submission policy.
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithTitleLength sets how many characters of the request become the title.
func WithTitleLength(n int) Option {
	return func(r *Registry) {
		r.titleLen = n
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:     make(map[core.TaskID]*core.Task),
		policy:   PolicyFail,
		titleLen: core.DefaultTitleLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured submission policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Create inserts a running task for text and makes it active. When id is
// empty one is derived from the creation sequence. Under PolicyFail and
// PolicyComplete the previously active task is terminated first and
// returned as superseded.
func (r *Registry) Create(text string, id core.TaskID) (created, superseded *core.Task, err error) {
	if core.IsBlank(text) {
		return nil, nil, core.ErrValidation(core.CodeEmptyText, "task text is empty")
	}
	if id != "" {
		if _, exists := r.byID[id]; exists {
			return nil, nil, core.ErrTransition(core.CodeDuplicateTask, fmt.Sprintf("task %s already exists", id))
		}
	}
	prev := r.active
	if prev != nil && r.policy == PolicyReject {
		return nil, nil, core.ErrTransition(core.CodeTaskBusy,
			fmt.Sprintf("task %s is still running", prev.ID)).WithDetail("task_id", string(prev.ID))
	}

	// Guards passed; mutate.
	if prev != nil {
		switch r.policy {
		case PolicyFail, "":
			if err := prev.MarkFailed(SupersededReason); err != nil {
				return nil, nil, err
			}
			superseded = prev
		case PolicyComplete:
			if err := prev.MarkCompleted(); err != nil {
				return nil, nil, err
			}
			superseded = prev
		}
	}

	r.seq++
	if id == "" {
		id = r.nextID()
	}
	task := core.NewTask(id, r.seq, text, r.titleLen)
	r.tasks = append(r.tasks, task)
	r.byID[id] = task
	r.active = task
	return task.Clone(), superseded.Clone(), nil
}

func (r *Registry) nextID() core.TaskID {
	for {
		id := core.TaskID(fmt.Sprintf("task-%d", r.seq))
		if _, exists := r.byID[id]; !exists {
			return id
		}
		r.seq++
	}
}

// Complete moves a running task to completed.
func (r *Registry) Complete(id core.TaskID) (*core.Task, error) {
	task, ok := r.byID[id]
	if !ok {
		return nil, core.ErrOrphaned("task", string(id))
	}
	if err := task.MarkCompleted(); err != nil {
		return nil, err
	}
	r.release(task)
	return task.Clone(), nil
}

// Fail moves a running task to failed with reason.
func (r *Registry) Fail(id core.TaskID, reason string) (*core.Task, error) {
	task, ok := r.byID[id]
	if !ok {
		return nil, core.ErrOrphaned("task", string(id))
	}
	if err := task.MarkFailed(reason); err != nil {
		return nil, err
	}
	r.release(task)
	return task.Clone(), nil
}

// release moves the active pointer off a terminated task, to the most
// recently created task still running.
func (r *Registry) release(task *core.Task) {
	if r.active != task {
		return
	}
	r.active = nil
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].IsRunning() {
			r.active = r.tasks[i]
			return
		}
	}
}

// Get returns a copy of the task with id.
func (r *Registry) Get(id core.TaskID) (*core.Task, bool) {
	task, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// Status returns the status of task id.
func (r *Registry) Status(id core.TaskID) (core.TaskStatus, bool) {
	task, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return task.Status, true
}

// Active returns a copy of the active task.
func (r *Registry) Active() (*core.Task, bool) {
	if r.active == nil {
		return nil, false
	}
	return r.active.Clone(), true
}

// ActiveID returns the active task id, or "" when no task is running.
func (r *Registry) ActiveID() core.TaskID {
	if r.active == nil {
		return ""
	}
	return r.active.ID
}

// List returns copies of all tasks, newest first.
func (r *Registry) List() []*core.Task {
	out := make([]*core.Task, 0, len(r.tasks))
	for i := len(r.tasks) - 1; i >= 0; i-- {
		out = append(out, r.tasks[i].Clone())
	}
	return out
}

// Running returns copies of the running tasks, newest first.
func (r *Registry) Running() []*core.Task {
	var out []*core.Task
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].IsRunning() {
			out = append(out, r.tasks[i].Clone())
		}
	}
	return out
}

// Len returns the number of tasks.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// Restore loads persisted history. Tasks already present are skipped.
// Restored tasks that were still running are failed as interrupted and
// returned so the caller can persist the change. The sequence continues
// after the highest restored one.
func (r *Registry) Restore(tasks []*core.Task) []*core.Task {
	sorted := make([]*core.Task, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if _, exists := r.byID[t.ID]; exists {
			continue
		}
		sorted = append(sorted, t.Clone())
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	var interrupted []*core.Task
	restored := make([]*core.Task, 0, len(r.tasks)+len(sorted))
	restored = append(restored, sorted...)
	restored = append(restored, r.tasks...)
	for _, t := range sorted {
		if t.Status == core.TaskStatusRunning || t.Status == core.TaskStatusPending {
			t.Status = core.TaskStatusFailed
			t.Reason = InterruptedReason
			t.UpdatedAt = time.Now()
			interrupted = append(interrupted, t.Clone())
		}
		r.byID[t.ID] = t
		if t.Seq > r.seq {
			r.seq = t.Seq
		}
	}
	r.tasks = restored
	return interrupted
}
