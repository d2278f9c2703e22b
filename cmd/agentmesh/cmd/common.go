package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/ws"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/config"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/ingest"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/registry"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/simulate"
)

// newLogger builds the process logger from the loaded config. A non-empty
// file overrides cfg.Log.File.
func newLogger(out io.Writer, file string) (*logging.Logger, func() error, error) {
	if file == "" {
		file = cfg.Log.File
	}
	return logging.Open(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
		File:   file,
	})
}

// closableBackend is a backend that owns a connection or goroutines.
type closableBackend interface {
	ingest.Backend
	io.Closer
}

// ingestBuffer decouples backend reads from ingestion.
const ingestBuffer = 64

// consoleRuntime wires the backend, the ingest adapter and task history
// around one event bus.
type consoleRuntime struct {
	logger   *logging.Logger
	bus      *events.EventBus
	registry *prometheus.Registry
	adapter  *ingest.Adapter
	store    *state.TaskStore
	backend  closableBackend
}

// newConsoleRuntime builds the runtime described by cfg.
func newConsoleRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*consoleRuntime, error) {
	rt := &consoleRuntime{
		logger:   logger,
		bus:      events.New(cfg.Events.BufferSize),
		registry: prometheus.NewRegistry(),
	}
	rt.registry.MustRegister(collectors.NewGoCollector())

	metrics, err := ingest.NewMetrics(rt.registry)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	policy, err := registry.ParsePolicy(cfg.Session.OnNewSubmission)
	if err != nil {
		rt.Close()
		return nil, err
	}
	opts := []ingest.Option{
		ingest.WithRegistry(registry.New(
			registry.WithPolicy(policy),
			registry.WithTitleLength(cfg.Session.TitleLength),
		)),
		ingest.WithBus(rt.bus),
		ingest.WithMetrics(metrics),
		ingest.WithLogger(logger),
	}

	if cfg.Store.Enabled {
		retention, err := cfg.Store.RetentionDuration()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("parsing store.retention: %w", err)
		}
		store, err := state.OpenTaskStoreWithOptions(cfg.Store.Path, state.StoreOptions{Retention: retention})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("opening task history: %w", err)
		}
		rt.store = store
		opts = append(opts, ingest.WithSink(store))
		logger.Info("task history enabled", "path", store.Path())
	}

	rt.adapter = ingest.New(opts...)
	if rt.store != nil {
		history, err := rt.store.LoadTasks(ctx)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("loading task history: %w", err)
		}
		rt.adapter.Restore(ctx, history)
	}

	backend, err := newBackend(cfg.Backend, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.backend = backend
	return rt, nil
}

// newBackend creates the configured agent backend.
func newBackend(cfg config.BackendConfig, logger *logging.Logger) (closableBackend, error) {
	switch cfg.Mode {
	case config.BackendWebSocket:
		return ws.NewClient(cfg.URL, ws.WithLogger(logger)), nil
	case config.BackendSimulate, "":
		runner, err := newRunner(cfg.Scenario, cfg.StepDelay)
		if err != nil {
			return nil, err
		}
		logger.Info("using simulated backend", "scenario", runner.Scenario().Name)
		return simulate.NewBackend(runner, simulate.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode)
	}
}

// newRunner loads a scenario by built-in name or file path. An empty step
// delay keeps the scenario's own.
func newRunner(ref, stepDelay string) (*simulate.Runner, error) {
	scenario, err := simulate.Load(ref)
	if err != nil {
		return nil, fmt.Errorf("loading scenario %q: %w", ref, err)
	}
	var opts []simulate.RunnerOption
	if stepDelay != "" {
		delay, err := time.ParseDuration(stepDelay)
		if err != nil {
			return nil, fmt.Errorf("parsing step delay: %w", err)
		}
		opts = append(opts, simulate.WithStepDelay(delay))
	}
	return simulate.NewRunner(scenario, opts...), nil
}

// Run pumps backend activity into the adapter until ctx is done or the
// backend goes away.
func (rt *consoleRuntime) Run(ctx context.Context) error {
	ch := make(chan events.Event, ingestBuffer)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ch)
		err := rt.backend.Run(gctx, ch)
		rt.notifyStopped(gctx, err)
		return err
	})
	g.Go(func() error {
		return rt.adapter.Run(gctx, ch)
	})
	return ignoreCanceled(g.Wait())
}

// notifyStopped tells the console why backend activity ended. Nothing is
// published on shutdown.
func (rt *consoleRuntime) notifyStopped(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		rt.logger.Error("backend stopped", "error", err)
		rt.bus.Publish(events.NewLogEvent("", "error", "backend stopped: "+err.Error(), nil))
		return
	}
	rt.logger.Warn("backend disconnected")
	rt.bus.Publish(events.NewLogEvent("", "warn", "backend disconnected", nil))
}

// Submit forwards text to the backend.
func (rt *consoleRuntime) Submit(ctx context.Context, text string) error {
	return rt.backend.Submit(ctx, text)
}

// Close releases the backend, the bus and the store. It is safe on a
// partially built runtime.
func (rt *consoleRuntime) Close() {
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.logger.Warn("failed to close backend", "error", err)
		}
	}
	if rt.bus != nil {
		rt.bus.Close()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("failed to close task history", "error", err)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openHistory opens the configured task store for read-only commands.
func openHistory() (*state.TaskStore, error) {
	if !cfg.Store.Enabled {
		return nil, errors.New("task history is disabled (store.enabled=false)")
	}
	return state.OpenTaskStore(cfg.Store.Path)
}
