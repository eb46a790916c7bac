package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                     `json:"valid"`
	Campaigns int                      `json:"campaigns"`
	Errors    []config.ValidationError `json:"errors,omitempty"`
}

// validateAnchor resolves schedule offsets during validation. Only the
// ordering of the schedule matters, so any fixed instant will do.
var validateAnchor = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <campaign-file>",
		Short: "Validate campaign definitions without running them",
		Long: `Validate a .cue, .yaml or .json campaign file.

The file is checked against the campaign schema, then every amount,
time and percentage is converted to base units the way run would, so a
file that validates will not be rejected for its shape when run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := formatter(cmd, opts)

	file, err := config.LoadFile(path)
	if err != nil {
		errs, ok := config.AsValidationErrors(err)
		if !ok {
			return outputValidateError(out, config.ErrCodeRead, err.Error(), nil)
		}
		if len(errs) == 1 && errs[0].Code == config.ErrCodeRead {
			return outputValidateError(out, errs[0].Code, errs[0].Message, nil)
		}
		return outputValidationErrors(out, errs)
	}
	out.VerboseLog("Loaded %d campaign(s) from %s", len(file.Campaigns), path)

	var all []config.ValidationError
	for i, spec := range file.Campaigns {
		out.VerboseLog("Validating campaign %d (%s)", i, spec.ID)
		if _, err := spec.Build(validateAnchor); err != nil {
			errs, ok := config.AsValidationErrors(err)
			if !ok {
				errs = config.ValidationErrors{{Field: "campaigns", Message: err.Error(), Code: config.ErrCodeSchema}}
			}
			for _, e := range errs {
				e.Field = fmt.Sprintf("campaigns[%d].%s", i, e.Field)
				all = append(all, e)
			}
		}
	}
	if len(file.Campaigns) == 0 {
		all = append(all, config.ValidationError{Field: "campaigns", Message: "no campaigns found", Code: config.ErrCodeSchema})
	}
	if len(all) > 0 {
		return outputValidationErrors(out, all)
	}

	if out.Format == "json" {
		return out.Success(ValidationResult{Valid: true, Campaigns: len(file.Campaigns)})
	}
	fmt.Fprintf(out.Writer, "✓ %d campaign(s) valid\n", len(file.Campaigns))
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []config.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
