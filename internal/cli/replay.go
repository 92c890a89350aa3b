package cli

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/supercollider/internal/harness"
	"github.com/roach88/supercollider/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single stored run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Workers       int    `json:"workers"`
	Collisions    int    `json:"collisions"`
	StoredDigest  string `json:"stored_digest"`
	ReplayDigest  string `json:"replay_digest"`
	Deterministic bool   `json:"deterministic"`
	// FirstMismatch is the index of the first stored collision that differs
	// from the replay, or -1.
	FirstMismatch int `json:"first_mismatch"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenario         string            `json:"scenario"`
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run a scenario and verify determinism",
		Long: `Re-run a scenario and compare its trace with stored runs.

Each stored run of the scenario is replayed with the worker count it was
recorded with. The replayed trace digest must equal the stored digest and
every stored collision row must match the replayed one, effect included.
Replay with the same --config the run was recorded with.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  supercollider replay --db ./runs.db testdata/scenarios/head_on.yaml
  supercollider replay --db ./runs.db --run test-run-head-on head_on.yaml
  supercollider replay --db ./runs.db --format json head_on.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := selectRuns(ctx, st, scenario.Name, opts.RunID)
	if err != nil {
		return err
	}

	result := ReplayResult{
		Scenario:         scenario.Name,
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No runs found for scenario: %s\n", scenario.Name)
		return nil
	}

	engineOpts, err := cfg.Options()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	for _, run := range runs {
		logger.Debug("replaying run", "run_id", run.ID, "workers", run.Workers)
		runResult, err := replayAndVerifyRun(ctx, st, scenario, run,
			harness.WithLogger(logger),
			harness.WithEngineOptions(engineOpts...),
		)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}

		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// selectRuns returns the run named by runID, or every run of the scenario.
func selectRuns(ctx context.Context, st *store.Store, scenario, runID string) ([]store.Run, error) {
	if runID != "" {
		run, err := st.ReadRun(ctx, runID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if run.Scenario != scenario {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("run %s belongs to scenario %s, not %s", runID, run.Scenario, scenario))
		}
		return []store.Run{run}, nil
	}

	all, err := st.ListRuns(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	var runs []store.Run
	for _, run := range all {
		if run.Scenario == scenario {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// replayAndVerifyRun re-runs the scenario with the stored worker count and
// compares the result with the stored run.
func replayAndVerifyRun(ctx context.Context, st *store.Store, scenario *harness.Scenario, run store.Run, opts ...harness.Option) (ReplayRunResult, error) {
	stored, err := st.ReadCollisions(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	opts = append(opts, harness.WithWorkers(run.Workers))
	replayed, err := harness.Run(ctx, scenario, opts...)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("replay failed: %w", err)
	}

	mismatch := compareCollisions(stored, replayed.Trace)
	return ReplayRunResult{
		RunID:         run.ID,
		Workers:       run.Workers,
		Collisions:    len(stored),
		StoredDigest:  run.Digest,
		ReplayDigest:  replayed.Digest,
		Deterministic: run.Digest != "" && run.Digest == replayed.Digest && mismatch < 0,
		FirstMismatch: mismatch,
	}, nil
}

// compareCollisions returns the index of the first stored row that differs
// from the replayed collision events, or -1 if they are equal.
func compareCollisions(stored []store.Collision, trace []harness.TraceEvent) int {
	var events []harness.TraceEvent
	for _, e := range trace {
		if e.Type == harness.EventCollision {
			events = append(events, e)
		}
	}

	for i := range stored {
		if i >= len(events) || !collisionEqual(stored[i], events[i]) {
			return i
		}
	}
	if len(events) > len(stored) {
		return len(stored)
	}
	return -1
}

// collisionEqual compares a stored row with a replayed event. Handles are
// not compared: names identify the objects across runs.
func collisionEqual(c store.Collision, e harness.TraceEvent) bool {
	if c.Frame != e.Frame || c.Position != e.Position || c.Pair != e.Pair {
		return false
	}
	if c.AName != e.A || c.BName != e.B || c.Path != e.Path || c.Result != e.Result || c.Applied != e.Applied {
		return false
	}
	return reflect.DeepEqual(c.Effect, e.Effect)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %s, %d run(s)\n", result.Scenario, result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s\n", status, run.RunID)
		fmt.Fprintf(w, "  Workers: %d, collisions: %d\n", run.Workers, run.Collisions)

		if verbose || !run.Deterministic {
			fmt.Fprintf(w, "  Stored digest: %s\n", run.StoredDigest)
			fmt.Fprintf(w, "  Replay digest: %s\n", run.ReplayDigest)
		}

		if !run.Deterministic {
			if run.StoredDigest == "" {
				fmt.Fprintln(w, "  Warning: stored run never finished")
			}
			if run.FirstMismatch >= 0 {
				fmt.Fprintf(w, "  Warning: first difference at collision %d\n", run.FirstMismatch)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
