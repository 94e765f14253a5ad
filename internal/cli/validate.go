package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/wherefn/internal/schema"
)

// ValidationResult is the validate command's JSON payload.
type ValidationResult struct {
	Valid      bool                  `json:"valid"`
	Predicates int                   `json:"predicates"`
	Entities   []string              `json:"entities"`
	Warnings   []schema.CycleWarning `json:"warnings,omitempty"`
	Errors     []CLIError            `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate predicates against the entity mapping",
		Long: `Load a CUE spec directory, compile every predicate and validate each
property path against the declared entities. Nothing is cached.

Reports every error with its code and source position, and warns about
entities whose extends lists form a cycle.

Exit codes:
  0 - All predicates valid
  1 - One or more predicates invalid
  2 - Specs could not be loaded`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, rootOpts.specsDir(args), cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	bundle, loadErrs := loadBundle(specsDir)
	if bundle == nil {
		_ = formatter.Errors(loadErrs)
		return NewExitError(ExitCommandError, fmt.Sprintf("loading specs failed with %d error(s)", len(loadErrs)))
	}

	eng, closeCache, err := opts.newEngine(ctx, bundle, false)
	if err != nil {
		return err
	}
	defer closeCache()

	result := ValidationResult{
		Predicates: len(bundle.Predicates),
		Entities:   bundle.Schema.Entities(),
		Warnings:   bundle.Schema.Cycles(),
		Errors:     loadErrs,
	}
	for _, np := range bundle.Predicates {
		formatter.VerboseLog("Validating predicate: %s", np.ID)
		if _, err := eng.Unit(ctx, np.Entity, np.Predicate); err != nil {
			result.Errors = append(result.Errors, toCLIError(err))
		}
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, w := range result.Warnings {
			formatter.Warn("%s: %s", strings.Join(w.Path, " -> "), w.Message)
		}
		if result.Valid {
			formatter.OK("%d predicate(s) valid against %d entity mapping(s)", result.Predicates, len(result.Entities))
		} else {
			formatter.Fail("Validation failed")
			fmt.Fprintln(formatter.Writer)
			_ = formatter.Errors(result.Errors)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}
