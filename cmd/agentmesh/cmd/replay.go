package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/wire"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/fsutil"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/ingest"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/registry"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/tui"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a recorded protocol session",
	Long: `Feed a JSONL file of protocol frames through the console state, one frame
per line, and print the transcript. Frames that do not apply are reported
and skipped, exactly as they would be live.

Examples:
  agentmesh replay session.jsonl
  agentmesh replay session.jsonl --view`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayView   bool
	replayOutput string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayView, "view", false,
		"Print the final view projection as JSON instead of a transcript")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "plain",
		"Transcript format (plain, json)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := fsutil.ReadFileScoped(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	mode, ok := tui.ParseOutputMode(replayOutput)
	if !ok || mode == tui.ModeTUI {
		return fmt.Errorf("unsupported replay output %q", replayOutput)
	}
	policy, err := registry.ParsePolicy(cfg.Session.OnNewSubmission)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	out := cmd.OutOrStdout()
	var printer tui.Printer
	if !replayView {
		printer = tui.NewPrinter(mode, out, !noColor && tui.NewDetector().ShouldUseColor())
	}

	r := &replayer{
		bus: events.New(cfg.Events.BufferSize),
		reg: registry.New(registry.WithPolicy(policy), registry.WithTitleLength(cfg.Session.TitleLength)),
	}
	defer r.bus.Close()
	adapter := r.run(data, printer, logger)

	if replayView {
		return writeJSON(out, view.Project(adapter.Snapshot(), view.Toggles{TasksVisible: true}))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d frames, %d rejected\n", r.frames, r.rejected)
	return nil
}

type replayer struct {
	bus      *events.EventBus
	reg      *registry.Registry
	frames   int
	rejected int
}

// run ingests every non-blank line of data in order. Notifications are
// drained after each frame so the transcript follows the input exactly.
func (r *replayer) run(data []byte, printer tui.Printer, logger *logging.Logger) *ingest.Adapter {
	ch := r.bus.Subscribe(events.TypeTaskChanged, events.TypeTurnChanged, events.TypeToolChanged, events.TypeAnomaly)
	defer r.bus.Unsubscribe(ch)

	adapter := ingest.New(
		ingest.WithRegistry(r.reg),
		ingest.WithBus(r.bus),
		ingest.WithLogger(logger.WithComponent("replay")),
	)
	decoder := wire.NewDecoder()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r.frames++
		if err := adapter.Ingest(decoder.Event(line)); err != nil {
			r.rejected++
		}
		drain(ch, printer)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("replay stopped early", "error", err, "frames", r.frames)
	}
	return adapter
}

func drain(ch <-chan events.Event, printer tui.Printer) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if printer != nil {
				printer.Handle(ev)
			}
		default:
			return
		}
	}
}
