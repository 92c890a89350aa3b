package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Pair     string // optional - filter to specific pair kind
}

// TraceRow represents a single stored collision in the timeline.
type TraceRow struct {
	Frame    int64          `json:"frame"`
	Position int            `json:"position"`
	Pair     string         `json:"pair"`
	A        string         `json:"a"`
	B        string         `json:"b"`
	AHandle  string         `json:"a_handle"`
	BHandle  string         `json:"b_handle"`
	Path     string         `json:"path"`
	Result   string         `json:"result"`
	Applied  bool           `json:"applied"`
	Effect   handler.Effect `json:"effect,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string     `json:"run_id"`
	Scenario string     `json:"scenario"`
	Workers  int        `json:"workers"`
	Frames   int        `json:"frames"`
	Digest   string     `json:"digest"`
	Timeline []TraceRow `json:"timeline"`
	Stats    TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalRows int            `json:"total_rows"`
	Applied   int            `json:"applied"`
	ByPair    map[string]int `json:"by_pair"` // applied collisions per pair kind
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the stored trace of a run",
		Long: `Print the collisions stored for a run in execute order.

The output includes:
- Timeline: every executed pair, frame by frame, in work-list order
- Stats: applied collisions per pair kind

Examples:
  supercollider trace --db ./runs.db --run test-run-head-on
  supercollider trace --db ./runs.db --run test-run-head-on --pair ship-weapon
  supercollider trace --db ./runs.db --run test-run-head-on --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Pair, "pair", "", "filter to specific pair kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Pair != "" {
		if _, err := classify.ParsePairKind(opts.Pair); err != nil {
			return WrapExitError(ExitCommandError, "invalid --pair", err)
		}
	}

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	rows, err := st.ReadCollisions(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read collisions", err)
	}

	byPair, err := st.CountByPair(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count collisions", err)
	}

	timeline := buildTimeline(rows, opts.Pair)
	applied := 0
	for _, n := range byPair {
		applied += n
	}

	result := TraceResult{
		RunID:    run.ID,
		Scenario: run.Scenario,
		Workers:  run.Workers,
		Frames:   run.Frames,
		Digest:   run.Digest,
		Timeline: timeline,
		Stats: TraceStats{
			TotalRows: len(rows),
			Applied:   applied,
			ByPair:    byPair,
		},
	}

	// Output results
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline converts stored rows to timeline rows. When pairFilter is
// set, only rows of that pair kind are kept.
func buildTimeline(rows []store.Collision, pairFilter string) []TraceRow {
	timeline := []TraceRow{}
	for _, c := range rows {
		if pairFilter != "" && c.Pair != pairFilter {
			continue
		}
		timeline = append(timeline, TraceRow{
			Frame:    c.Frame,
			Position: c.Position,
			Pair:     c.Pair,
			A:        c.AName,
			B:        c.BName,
			AHandle:  c.A.String(),
			BHandle:  c.B.String(),
			Path:     c.Path,
			Result:   c.Result,
			Applied:  c.Applied,
			Effect:   c.Effect,
		})
	}
	return timeline
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
		RunID:  result.RunID,
		Digest: result.Digest,
	}
	return writeResponse(cmd.OutOrStdout(), response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Scenario: %s (%d frames, %d workers)\n", result.Scenario, result.Frames, result.Workers)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Digest))
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no collisions)")
	} else {
		frame := int64(-1)
		for _, row := range result.Timeline {
			if row.Frame != frame {
				frame = row.Frame
				fmt.Fprintf(w, "  frame %d\n", frame)
			}
			formatTimelineRow(w, row, verbose)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Rows: %d\n", result.Stats.TotalRows)
	fmt.Fprintf(w, "  Applied:    %d\n", result.Stats.Applied)

	// Sort keys for deterministic output
	pairs := make([]string, 0, len(result.Stats.ByPair))
	for p := range result.Stats.ByPair {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	for _, p := range pairs {
		fmt.Fprintf(w, "    %-16s %d\n", p, result.Stats.ByPair[p])
	}

	return nil
}

// formatTimelineRow formats a single timeline row for text output.
func formatTimelineRow(w io.Writer, row TraceRow, verbose bool) {
	mark := " "
	if row.Applied {
		mark = "*"
	}
	fmt.Fprintf(w, "  %s [%d] %s %s/%s %s %s\n", mark, row.Position, row.Pair, row.A, row.B, row.Path, row.Result)
	if verbose {
		fmt.Fprintf(w, "       Handles: %s/%s\n", row.AHandle, row.BHandle)
		if row.Effect != nil {
			fmt.Fprintf(w, "       Effect: %s %+v\n", row.Effect.EffectType(), row.Effect)
		}
	}
}

// completeStatus returns a human-readable completion status.
func completeStatus(digest string) string {
	if digest != "" {
		return "Complete (digest " + truncateID(digest) + ")"
	}
	return "Incomplete (run did not finish)"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
