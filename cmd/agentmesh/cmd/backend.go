package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/ws"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/simulate"
)

// ProcessPath is where the simulated backend accepts console connections.
const ProcessPath = "/api/v1/task/process"

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Serve a simulated agent backend over WebSocket",
	Long: `Serve a scripted multi-agent backend over WebSocket.

Each user_input received on ` + ProcessPath + ` is acknowledged and played
through the scenario: agent turns, thinking, tool calls and results, then
the task result. Point a console at it with backend.mode=websocket.

Examples:
  # Play the built-in search scenario
  agentmesh backend

  # Play a scenario file slowly
  agentmesh backend --scenario ./demo.yaml --step-delay 1s`,
	RunE: runBackend,
}

var (
	backendAddr      string
	backendScenario  string
	backendStepDelay string
	backendList      bool
)

func init() {
	rootCmd.AddCommand(backendCmd)

	backendCmd.Flags().StringVar(&backendAddr, "addr", ":8000",
		"Address to listen on")
	backendCmd.Flags().StringVar(&backendScenario, "scenario", "",
		"Built-in scenario name or YAML file (default: backend.scenario)")
	backendCmd.Flags().StringVar(&backendStepDelay, "step-delay", "",
		"Delay between frames (default: backend.step_delay)")
	backendCmd.Flags().BoolVar(&backendList, "list", false,
		"List built-in scenarios and exit")
}

func runBackend(cmd *cobra.Command, _ []string) error {
	if backendList {
		for _, name := range simulate.BuiltinNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	logger, closeLog, err := newLogger(os.Stdout, "")
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	scenario := cfg.Backend.Scenario
	if backendScenario != "" {
		scenario = backendScenario
	}
	delay := cfg.Backend.StepDelay
	if backendStepDelay != "" {
		delay = backendStepDelay
	}
	runner, err := newRunner(scenario, delay)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOr(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint := ws.NewServer(runner, ws.WithServerLogger(logger))
	srv := &http.Server{
		Addr:              backendAddr,
		Handler:           backendRouter(endpoint, logger),
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked connections outlive Shutdown; their runs stop with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simulated backend listening",
			"addr", backendAddr, "path", ProcessPath, "scenario", runner.Scenario().Name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving backend: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("backend shutdown incomplete", "error", err)
	}
	endpoint.Wait()
	logger.Info("simulated backend stopped")
	return nil
}

func backendRouter(endpoint http.Handler, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy"}); err != nil {
			logger.Error("failed to encode health response", "error", err)
		}
	})
	r.Handle(ProcessPath, endpoint)
	return r
}
