package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/harness"
)

// Error codes reported by validate.
const (
	ErrCodeScenarioInvalid = "E_SCENARIO_INVALID"
	ErrCodeDirNotFound     = "E_DIR_NOT_FOUND"
)

// ScenarioIssue is one scenario file that failed to load.
type ScenarioIssue struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Files  int             `json:"files"`
	Errors []ScenarioIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Check scenario files without running them",
		Long: `Check every scenario file against the scenario schema and for references
to unknown groups or items, without running anything.

Faster than test for editing feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return outputValidateError(formatter, ErrCodeDirNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := harness.FindScenarioFiles(scenariosDir)
	if err != nil {
		return outputValidateError(formatter, ErrCodeDirNotFound, err.Error())
	}
	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), scenariosDir)

	var issues []ScenarioIssue
	for _, file := range files {
		formatter.VerboseLog("Validating %s", filepath.Base(file))
		if _, err := harness.LoadScenario(file); err != nil {
			issues = append(issues, ScenarioIssue{
				File:    filepath.Base(file),
				Code:    ErrCodeScenarioInvalid,
				Message: err.Error(),
			})
		}
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, len(files), issues)
	}
	return outputValidateSuccess(formatter, len(files))
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d scenario(s) valid\n", files)
	return nil
}

// outputValidateError outputs a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every invalid file (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, files int, issues []ScenarioIssue) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Files: files, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n\n", issue.File, issue.Code, issue.Message)
	}
	return failure
}
