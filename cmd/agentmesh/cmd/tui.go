package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive console",
	Long: `Start the interactive console.

Type a request and press enter to submit it. ctrl+t shows the task list,
tab cycles tool calls of the viewed task, ctrl+y copies the selected tool
result and / filters tasks.

When stdout is not a terminal (or --output is plain/json) the console reads
one request per line from stdin and prints a transcript instead.`,
	RunE: runTUI,
}

var (
	tuiOutput string
	tuiIdle   time.Duration
)

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVarP(&tuiOutput, "output", "o", "",
		"Output mode (tui, plain, json); default detects the terminal")
	tuiCmd.Flags().DurationVar(&tuiIdle, "idle", 2*time.Second,
		"In plain/json mode, exit once stdin is done and no task ran for this long")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	detector := tui.NewDetector().NoColor(noColor)
	if tuiOutput != "" {
		mode, ok := tui.ParseOutputMode(tuiOutput)
		if !ok {
			return fmt.Errorf("unknown output mode %q", tuiOutput)
		}
		detector.ForceMode(mode)
	}

	ctx, stop := signal.NotifyContext(contextOr(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := detector.Detect()
	if mode != tui.ModeTUI {
		return runHeadless(ctx, mode, detector.ShouldUseColor())
	}
	return runInteractive(ctx)
}

// runInteractive drives the bubbletea console. Logs go to a file so they
// do not tear the screen.
func runInteractive(ctx context.Context) error {
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.TUI.StateDir, "agentmesh.log")
	}
	logger, closeLog, err := newLogger(io.Discard, logFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	rt, err := newConsoleRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	stateMgr := tui.NewUIStateManager(cfg.TUI.StateDir)
	defer func() {
		if err := stateMgr.Close(); err != nil {
			logger.Warn("failed to save UI state", "error", err)
		}
	}()

	model := tui.New(rt.adapter, rt,
		tui.WithEventBus(rt.bus),
		tui.WithStateManager(stateMgr),
		tui.WithTasksVisible(cfg.TUI.ShowTasks),
		tui.WithLogger(logger),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	backendDone := make(chan error, 1)
	go func() {
		backendDone <- rt.Run(runCtx)
	}()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	cancel()
	if runErr := <-backendDone; runErr != nil {
		logger.Warn("backend stopped", "error", runErr)
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}

// runHeadless submits stdin lines and prints a transcript until input is
// exhausted and the backend has gone quiet.
func runHeadless(ctx context.Context, mode tui.OutputMode, useColor bool) error {
	logger, closeLog, err := newLogger(os.Stderr, "")
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	rt, err := newConsoleRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	printer := tui.NewPrinter(mode, os.Stdout, useColor)
	return headless(ctx, rt, printer, os.Stdin, tuiIdle, logger)
}

func headless(ctx context.Context, rt *consoleRuntime, printer tui.Printer, in io.Reader, idle time.Duration, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(tui.Follow(gctx, rt.bus, printer))
	})
	g.Go(func() error {
		return rt.Run(gctx)
	})
	lines, readErr := readLines(in)
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case text, ok := <-lines:
				if !ok {
					if err := <-readErr; err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
					return waitIdle(gctx, rt, idle)
				}
				if err := rt.Submit(gctx, text); err != nil {
					logger.Warn("submission rejected", "error", err)
				}
			}
		}
	})
	return g.Wait()
}

// readLines streams non-blank lines from in. The reader goroutine is not
// tied to a context since a blocked read on stdin cannot be interrupted.
func readLines(in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if text := strings.TrimSpace(scanner.Text()); text != "" {
				lines <- text
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// waitIdle returns once nothing has been running for idle.
func waitIdle(ctx context.Context, rt *consoleRuntime, idle time.Duration) error {
	const poll = 100 * time.Millisecond
	quiet := time.Duration(0)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for quiet < idle {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if rt.adapter.Snapshot().RunningCount() > 0 {
			quiet = 0
			continue
		}
		quiet += poll
	}
	return nil
}
