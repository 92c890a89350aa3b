package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/supercollider/internal/config"
	"github.com/roach88/supercollider/internal/harness"
)

// Validation error codes.
const (
	ErrCodeScenario = "E_SCENARIO"
	ErrCodeConfig   = "E_CONFIG"
)

// ValidationError describes one file that failed to load.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario and config files without running them",
		Long: `Validate scenario files, and the --config file if given, without
running anything.

Performs strict YAML decoding (unknown fields are errors) and the same
checks run performs before the first frame.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	// diagnostics go to stderr so JSON on stdout stays parseable
	logf := func(format string, args ...any) {
		if opts.Verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
		}
	}

	var errs []ValidationError
	files := 0

	if opts.Config != "" {
		files++
		logf("Validating config: %s", opts.Config)
		if _, err := config.Load(opts.Config); err != nil {
			errs = append(errs, ValidationError{File: opts.Config, Code: ErrCodeConfig, Message: err.Error()})
		}
	}

	for _, path := range paths {
		files++
		logf("Validating scenario: %s", path)
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			errs = append(errs, ValidationError{File: path, Code: ErrCodeScenario, Message: err.Error()})
			continue
		}
		logf("  %s: %d objects, %d frames, %d assertions",
			scenario.Name, len(scenario.Objects), scenario.Frames, len(scenario.Assertions))
	}

	if len(errs) > 0 {
		return outputValidationErrors(w, opts.Format, files, errs)
	}
	return outputValidateSuccess(w, opts.Format, files)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(w io.Writer, format string, files int) error {
	if format == "json" {
		return writeResponse(w, CLIResponse{
			Status: "ok",
			Data:   ValidationResult{Valid: true, Files: files},
		})
	}

	fmt.Fprintf(w, "✓ %d file(s) valid\n", files)
	return nil
}

// outputValidationErrors outputs every validation error. Validation
// failures exit with ExitFailure.
func outputValidationErrors(w io.Writer, format string, files int, errs []ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Files:  files,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
				Details: map[string]string{"file": errs[0].File},
			},
		}
		if err := writeResponse(w, response); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		fmt.Fprintln(w, err.File)
		fmt.Fprintf(w, "  %s: %s\n\n", err.Code, err.Message)
	}
	return failed
}
