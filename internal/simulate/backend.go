package simulate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/wire"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
)

const frameBuffer = 256

// Backend runs scenarios in process. Frames travel through the wire codec
// exactly as they would over a WebSocket connection.
type Backend struct {
	runner  *Runner
	decoder *wire.Decoder
	logger  *logging.Logger
	newID   func() string

	// submitMu keeps pending texts and their acks in the same order.
	submitMu sync.Mutex
	frames   chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(logger *logging.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(fn func() string) BackendOption {
	return func(b *Backend) {
		b.newID = fn
	}
}

// NewBackend creates an in-process backend playing r.
func NewBackend(r *Runner, opts ...BackendOption) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		runner:  r,
		decoder: wire.NewDecoder(),
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
		frames:  make(chan []byte, frameBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("simulator")
	return b
}

// Submit acknowledges the request and starts playing the scenario for it.
// The run outlives ctx; it stops when the backend is closed.
func (b *Backend) Submit(ctx context.Context, text string) error {
	if core.IsBlank(text) {
		return core.ErrValidation(core.CodeEmptyText, "submission text is empty")
	}
	if err := b.ctx.Err(); err != nil {
		return core.ErrTransport("simulated backend is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	taskID := b.newID()
	ack, err := wire.NewMessage(wire.EventUserTaskSubmit, taskID, wire.TaskSubmit{
		Status: wire.StatusSuccess,
		TaskID: taskID,
		Msg:    "Task submitted successfully",
	}, time.Now())
	if err != nil {
		return err
	}

	b.submitMu.Lock()
	b.decoder.Expect(text)
	err = b.send(ctx, ack)
	if err != nil {
		b.decoder.Forget(text)
	}
	b.submitMu.Unlock()
	if err != nil {
		if b.ctx.Err() != nil {
			return core.ErrTransport("simulated backend is closed")
		}
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		logger := b.logger.WithTask(taskID)
		logger.Debug("playing scenario", "scenario", b.runner.scenario.Name)
		if err := b.runner.Process(b.ctx, taskID, text, b.emit); err != nil && b.ctx.Err() == nil {
			logger.Error("scenario run failed", "error", err)
		}
	}()
	return nil
}

// Run forwards decoded frames to out until ctx is done or the backend is
// closed.
func (b *Backend) Run(ctx context.Context, out chan<- events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.ctx.Done():
			return nil
		case raw := <-b.frames:
			select {
			case out <- b.decoder.Event(raw):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close stops every run and waits for them to exit.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

func (b *Backend) emit(msg wire.Message) error {
	return b.send(b.ctx, msg)
}

func (b *Backend) send(ctx context.Context, msg wire.Message) error {
	raw, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case b.frames <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

func marshalRaw(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}
