package simulate

import (
	"context"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/wire"
)

// DefaultStepDelay separates frames when neither the scenario nor the
// runner sets a delay.
const DefaultStepDelay = 500 * time.Millisecond

// Runner plays a scenario for each submitted task.
type Runner struct {
	scenario *Scenario
	delay    time.Duration
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStepDelay overrides the scenario's step delay. Zero plays frames
// back to back.
func WithStepDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.delay = d
	}
}

// WithClock sets the clock used to stamp frames.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner for s.
func NewRunner(s *Scenario, opts ...RunnerOption) *Runner {
	r := &Runner{
		scenario: s,
		delay:    time.Duration(s.StepDelay),
		now:      time.Now,
	}
	if r.delay == 0 {
		r.delay = DefaultStepDelay
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scenario returns the scenario being played.
func (r *Runner) Scenario() *Scenario {
	return r.scenario
}

type timedFrame struct {
	delay time.Duration
	msg   wire.Message
}

// Frames returns the frames of one run, after the submission ack, ending
// with task_result.
func (r *Runner) Frames(taskID, text string) ([]wire.Message, error) {
	timed, err := r.frames(taskID, text)
	if err != nil {
		return nil, err
	}
	msgs := make([]wire.Message, len(timed))
	for i, f := range timed {
		msgs[i] = f.msg
	}
	return msgs, nil
}

// Process plays the scenario for one task, implementing the WebSocket
// server's processor. It returns ctx.Err() when cancelled mid-run.
func (r *Runner) Process(ctx context.Context, taskID, text string, emit func(wire.Message) error) error {
	frames, err := r.frames(taskID, text)
	if err != nil {
		return err
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for _, f := range frames {
		if f.delay > 0 {
			timer.Reset(f.delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(f.msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) frames(taskID, text string) ([]timedFrame, error) {
	rep := strings.NewReplacer("{{text}}", text, "{{task_id}}", taskID)
	out := make([]timedFrame, 0, len(r.scenario.Steps)+1)

	add := func(delay time.Duration, event string, data any) error {
		msg, err := wire.NewMessage(event, taskID, data, r.now())
		if err != nil {
			return err
		}
		out = append(out, timedFrame{delay: delay, msg: msg})
		return nil
	}

	for _, step := range r.scenario.Steps {
		delay := r.delay
		if step.Delay != nil {
			delay = time.Duration(*step.Delay)
		}
		var err error
		switch step.Kind {
		case StepDecision:
			err = add(delay, wire.EventAgentDecision, wire.AgentDecision{
				TaskID:      taskID,
				AgentID:     step.AgentID,
				AgentName:   rep.Replace(step.AgentName),
				AgentAvatar: step.AgentAvatar,
				SubTask:     rep.Replace(step.SubTask),
			})
		case StepThinking:
			err = add(delay, wire.EventAgentThinking, wire.AgentThinking{
				TaskID:  taskID,
				AgentID: step.AgentID,
				Thought: rep.Replace(step.Thought),
			})
		case StepTool:
			err = r.addTool(add, delay, rep, taskID, step)
		case StepResult:
			err = add(delay, wire.EventAgentResult, wire.AgentResult{
				AgentID: step.AgentID,
				Result:  rep.Replace(step.Text),
			})
		}
		if err != nil {
			return nil, err
		}
	}
	if err := add(r.delay, wire.EventTaskResult, wire.TaskResult{TaskID: taskID, Status: r.scenario.Outcome}); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) addTool(add func(time.Duration, string, any) error, delay time.Duration, rep *strings.Replacer, taskID string, step Step) error {
	params, err := marshalRaw(expand(rep, step.Parameters))
	if err != nil {
		return err
	}
	if err := add(delay, wire.EventToolDecision, wire.ToolDecision{
		TaskID:     taskID,
		AgentID:    step.AgentID,
		ToolID:     step.ToolID,
		ToolName:   step.ToolName,
		Thought:    rep.Replace(step.Thought),
		Parameters: params,
	}); err != nil {
		return err
	}

	result, err := marshalRaw(expand(rep, step.Result))
	if err != nil {
		return err
	}
	status := step.Status
	if status == "" {
		status = wire.StatusSuccess
	}
	return add(delay, wire.EventToolExecute, wire.ToolExecute{
		TaskID:        taskID,
		AgentID:       step.AgentID,
		ToolID:        step.ToolID,
		ToolName:      step.ToolName,
		Status:        status,
		ExecutionTime: delay.Milliseconds(),
		ToolResult:    result,
	})
}

// expand substitutes placeholders in every string of a decoded YAML value.
func expand(rep *strings.Replacer, v any) any {
	switch val := v.(type) {
	case string:
		return rep.Replace(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expand(rep, item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expand(rep, item)
		}
		return out
	default:
		return v
	}
}
