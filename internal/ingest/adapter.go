// Package ingest turns inbound agent activity into state mutations.
//
// The Adapter owns the task registry, the agent timeline and the tool result
// index. Each event is applied in arrival order as exactly one transition,
// or dropped as a classified anomaly without touching state. Readers on
// other goroutines use Snapshot.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/registry"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/timeline"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/toolindex"
)

// TaskSink persists task changes and the journal of applied events.
type TaskSink interface {
	SaveTask(ctx context.Context, task *core.Task) error
	// AppendEvent journals an applied event under the task it resolved to.
	AppendEvent(ctx context.Context, taskID core.TaskID, ev events.Inbound) error
}

// Adapter applies inbound events to the three state owners.
type Adapter struct {
	// serial orders whole Ingest calls so notifications leave in arrival order.
	serial sync.Mutex
	// mu guards the owners; held for writing during one mutation only.
	mu sync.RWMutex

	tasks *registry.Registry
	turns *timeline.Timeline
	tools *toolindex.Index

	bus     *events.EventBus
	sink    TaskSink
	metrics *Metrics
	logger  *logging.Logger
	now     func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRegistry replaces the default task registry.
func WithRegistry(r *registry.Registry) Option {
	return func(a *Adapter) {
		a.tasks = r
	}
}

// WithTimeline replaces the default agent timeline.
func WithTimeline(t *timeline.Timeline) Option {
	return func(a *Adapter) {
		a.turns = t
	}
}

// WithBus publishes change notifications and anomalies on bus.
func WithBus(bus *events.EventBus) Option {
	return func(a *Adapter) {
		a.bus = bus
	}
}

// WithSink persists task changes and applied events.
func WithSink(sink TaskSink) Option {
	return func(a *Adapter) {
		a.sink = sink
	}
}

// WithMetrics records ingest counters.
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithLogger sets the logger used for anomalies.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithClock overrides the clock used to stamp tool invocations.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// New creates an adapter with empty state.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tasks == nil {
		a.tasks = registry.New()
	}
	if a.turns == nil {
		a.turns = timeline.New(timeline.WithClock(a.now))
	}
	if a.tools == nil {
		a.tools = toolindex.New()
	}
	return a
}

// Restore loads task history into the registry. Tasks interrupted by a
// previous shutdown are failed and persisted again.
func (a *Adapter) Restore(ctx context.Context, history []*core.Task) {
	a.serial.Lock()
	defer a.serial.Unlock()

	a.mu.Lock()
	interrupted := a.tasks.Restore(history)
	running := len(a.tasks.Running())
	a.mu.Unlock()

	a.metrics.setRunning(running)
	for _, task := range interrupted {
		a.saveTask(ctx, task)
	}
	if len(history) > 0 {
		a.logger.Info("restored task history", "tasks", len(history), "interrupted", len(interrupted))
	}
}

// Ingest applies one event. It never panics: the event either produces one
// transition and returns nil, or leaves state untouched and returns a
// classified *core.DomainError that is also logged and published as an
// anomaly.
func (a *Adapter) Ingest(ev events.Event) error {
	return a.ingest(context.Background(), ev)
}

// Run ingests events from ch in order until ch is closed or ctx is done.
func (a *Adapter) Run(ctx context.Context, ch <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			// Anomalies are already logged and published.
			_ = a.ingest(ctx, ev)
		}
	}
}

func (a *Adapter) ingest(ctx context.Context, ev events.Event) (err error) {
	a.serial.Lock()
	defer a.serial.Unlock()

	eventType := "unknown"
	if ev != nil {
		eventType = ev.EventType()
	}
	defer func() {
		if r := recover(); r != nil {
			err = a.reject(ev, eventType, core.ErrMalformed(core.CodeUnknownEvent,
				fmt.Sprintf("event could not be applied: %v", r)))
		}
	}()

	if failed, ok := ev.(events.DecodeFailedEvent); ok {
		if failed.Err == nil {
			return a.reject(ev, eventType, core.ErrMalformed(core.CodeUnknownEvent, "undecodable frame"))
		}
		return a.reject(ev, eventType, failed.Err)
	}
	in, ok := ev.(events.Inbound)
	if !ok {
		return a.reject(ev, eventType, core.ErrMalformed(core.CodeUnknownEvent,
			fmt.Sprintf("unsupported event type %q", eventType)))
	}
	if err := in.Validate(); err != nil {
		return a.reject(ev, eventType, err)
	}

	ch, running, err := a.applyLocked(in)
	if err != nil {
		return a.reject(ev, eventType, err)
	}

	if ch.empty() {
		a.metrics.observe(eventType, OutcomeNoop)
		a.logger.Debug("event replay ignored", "event", eventType, "task_id", in.TaskID())
		return nil
	}
	a.metrics.observe(eventType, OutcomeApplied)
	a.metrics.setRunning(running)
	a.publish(ch)
	a.persist(ctx, in, ch)
	return nil
}

func (a *Adapter) applyLocked(in events.Inbound) (changes, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, err := a.apply(in)
	return ch, len(a.tasks.Running()), err
}

// reject logs and publishes an anomaly for a dropped event.
func (a *Adapter) reject(ev events.Event, eventType string, err error) error {
	taskID := ""
	if ev != nil {
		taskID = ev.TaskID()
	}
	cat := core.GetCategory(err)
	a.metrics.observe(eventType, string(cat))

	attrs := []any{"event", eventType, "category", string(cat), "error", err}
	if taskID != "" {
		attrs = append(attrs, "task_id", taskID)
	}
	a.logger.Warn("event dropped", attrs...)

	if a.bus != nil {
		a.bus.Publish(events.NewAnomalyEvent(taskID, eventType, err))
	}
	return err
}

// Snapshot returns a deep copy of the current state.
func (a *Adapter) Snapshot() core.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return core.Snapshot{
		Tasks:      a.tasks.List(),
		ActiveTask: a.tasks.ActiveID(),
		Turns:      a.turns.All(),
		Tools:      a.tools.List(),
	}
}

// Task returns a copy of one task.
func (a *Adapter) Task(id core.TaskID) (*core.Task, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tasks.Get(id)
}

// Tool returns a copy of one invocation.
func (a *Adapter) Tool(id core.InvocationID) (*core.ToolInvocation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tools.Get(id)
}

// ActiveTask returns the id of the active task, or "".
func (a *Adapter) ActiveTask() core.TaskID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tasks.ActiveID()
}

func (a *Adapter) publish(ch changes) {
	if a.bus == nil {
		return
	}
	for _, tc := range ch.tasks {
		ev := events.NewTaskChangedEvent(tc.task, tc.previous)
		if tc.task.Status.IsTerminal() {
			a.bus.PublishPriority(ev)
			continue
		}
		a.bus.Publish(ev)
	}
	for _, turn := range ch.turns {
		a.bus.Publish(events.NewTurnChangedEvent(turn))
	}
	for _, tc := range ch.tools {
		a.bus.Publish(events.NewToolChangedEvent(tc.taskID, tc.inv))
	}
}

func (a *Adapter) persist(ctx context.Context, in events.Inbound, ch changes) {
	if a.sink == nil {
		return
	}
	for _, tc := range ch.tasks {
		a.saveTask(ctx, tc.task)
	}
	if err := a.sink.AppendEvent(ctx, ch.taskID(), in); err != nil {
		a.logger.Error("journal append failed", "event", in.EventType(), "error", err)
	}
}

func (a *Adapter) saveTask(ctx context.Context, task *core.Task) {
	if a.sink == nil {
		return
	}
	if err := a.sink.SaveTask(ctx, task); err != nil {
		a.logger.WithTask(string(task.ID)).Error("saving task failed", "error", err)
	}
}
