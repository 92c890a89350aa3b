package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/supercollider/internal/harness"
	"github.com/roach88/supercollider/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Workers  int

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to harness.UUIDv7Generator.
	RunIDs harness.RunIDGenerator
}

// RunSummary is the payload of a completed run.
type RunSummary struct {
	RunID         string   `json:"run_id"`
	Scenario      string   `json:"scenario"`
	Workers       int      `json:"workers"`
	WorkersRecord int      `json:"workers_record"`
	Events        int      `json:"events"`
	Digest        string   `json:"digest"`
	Pass          bool     `json:"pass"`
	Errors        []string `json:"errors,omitempty"`
	Trace         []string `json:"trace,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and store its trace",
		Long: `Run a collision scenario and persist the run and its trace.

The database is created if it doesn't exist. The scenario's assertions
are checked after the last frame.

Exit codes:
  0 - Scenario ran and every assertion passed
  1 - One or more assertions failed
  2 - Command error (invalid scenario, database error, etc.)
  3 - Collision pipeline stalled

Example:
  supercollider run --db ./runs.db testdata/scenarios/head_on.yaml
  supercollider run --db ./runs.db --workers 8 --config engine.yaml crossfire.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker pool size (overrides scenario and config)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engineOpts, err := cfg.Options()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	halt := &fatalRecorder{logger: logger}
	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithStore(st),
		harness.WithEngineOptions(engineOpts...),
		harness.WithEngineOptions(halt.option()),
	}
	if opts.Workers > 0 {
		runOpts = append(runOpts, harness.WithWorkers(opts.Workers))
	}
	if opts.RunIDs != nil {
		runOpts = append(runOpts, harness.WithRunIDGenerator(opts.RunIDs))
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := harness.Run(ctx, scenario, runOpts...)
	if halt.err != nil {
		return reportHalt(cmd.OutOrStdout(), opts.Format, scenario.Name, halt.err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s failed to run", scenario.Name), err)
	}

	summary := RunSummary{
		RunID:         result.RunID,
		Scenario:      scenario.Name,
		Workers:       result.Workers,
		WorkersRecord: result.WorkersRecord,
		Events:        len(result.Trace),
		Digest:        result.Digest,
		Pass:          result.Pass,
		Errors:        result.Errors,
	}
	if opts.Verbose {
		summary.Trace = result.Lines()
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, summary)
	}
	return outputRunText(cmd, summary)
}

// signalContext returns the command's context, canceled on SIGINT or SIGTERM.
// A canceled run stops between frames.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

func outputRunJSON(cmd *cobra.Command, summary RunSummary) error {
	response := CLIResponse{
		Status: "ok",
		Data:   summary,
		RunID:  summary.RunID,
		Digest: summary.Digest,
	}
	if !summary.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_ASSERTION",
			Message: fmt.Sprintf("%d assertion(s) failed", len(summary.Errors)),
		}
	}

	if err := writeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !summary.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(summary.Errors)))
	}
	return nil
}

func outputRunText(cmd *cobra.Command, summary RunSummary) error {
	w := cmd.OutOrStdout()

	status := "✓"
	if !summary.Pass {
		status = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", status, summary.Scenario)
	fmt.Fprintf(w, "  Run:     %s\n", summary.RunID)
	fmt.Fprintf(w, "  Workers: %d (record %d)\n", summary.Workers, summary.WorkersRecord)
	fmt.Fprintf(w, "  Events:  %d\n", summary.Events)
	fmt.Fprintf(w, "  Digest:  %s\n", summary.Digest)

	if len(summary.Trace) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Trace ===")
		for _, line := range summary.Trace {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if !summary.Pass {
		fmt.Fprintln(w)
		for _, e := range summary.Errors {
			fmt.Fprintln(w, e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(summary.Errors)))
	}
	return nil
}
