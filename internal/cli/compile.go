package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/wherefn/internal/filterir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // output file path
	NoCache bool
}

// CompiledPredicate is one entry of the compile output.
type CompiledPredicate struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Source    string          `json:"source"`
	SourceKey string          `json:"source_key"`
	Filter    string          `json:"filter"`
	Captures  []string        `json:"captures,omitempty"`
	Unit      json.RawMessage `json:"unit"`
}

// CompilationResult holds every compiled predicate in ID order.
type CompilationResult struct {
	Predicates []CompiledPredicate `json:"predicates"`
	FileCount  int                 `json:"file_count"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [specs-dir]",
		Short: "Compile predicates to filter IR",
		Long: `Compile every predicate declared in a CUE spec directory to its
filter IR and print it. Property paths are validated against the declared
entities; captured values are not needed.

With -o the compiled units are written as one canonical JSON array.
The spec directory defaults to specs.dir from wherefn.yaml.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, opts.specsDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the configured cache")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	bundle, loadErrs := loadBundle(specsDir)
	if len(loadErrs) > 0 {
		_ = formatter.Errors(loadErrs)
		return NewExitError(ExitCommandError, fmt.Sprintf("loading specs failed with %d error(s)", len(loadErrs)))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", bundle.FileCount, specsDir)

	eng, closeCache, err := opts.newEngine(ctx, bundle, !opts.NoCache)
	if err != nil {
		return err
	}
	defer closeCache()

	result := &CompilationResult{FileCount: bundle.FileCount}
	var units [][]byte
	var compileErrs []CLIError
	for _, np := range bundle.Predicates {
		formatter.VerboseLog("Compiling predicate: %s", np.ID)
		unit, err := eng.Unit(ctx, np.Entity, np.Predicate)
		if err != nil {
			compileErrs = append(compileErrs, toCLIError(err))
			continue
		}
		data, err := filterir.Marshal(unit)
		if err != nil {
			compileErrs = append(compileErrs, CLIError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", np.ID, err)})
			continue
		}
		units = append(units, data)
		result.Predicates = append(result.Predicates, CompiledPredicate{
			ID:        np.ID,
			Entity:    np.Entity,
			Source:    np.Predicate.Source.String(),
			SourceKey: unit.SourceKey,
			Filter:    unit.Root.String(),
			Captures:  filterir.CapturedNames(unit),
			Unit:      data,
		})
	}

	if len(compileErrs) > 0 {
		if !formatter.JSON() {
			formatter.Fail("Compilation failed")
		}
		_ = formatter.Errors(compileErrs)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(compileErrs)))
	}

	if opts.Output != "" {
		if err := writeUnits(opts.Output, units); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	formatter.OK("Compiled %d predicate(s) from %d file(s)", len(result.Predicates), result.FileCount)
	fmt.Fprintln(formatter.Writer)
	for _, p := range result.Predicates {
		fmt.Fprintf(formatter.Writer, "  %s (%s) %s\n", p.ID, p.Entity, p.Source)
		fmt.Fprintf(formatter.Writer, "    %s\n", p.Filter)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical IR to %s\n", opts.Output)
	}
	return nil
}

// writeUnits writes canonical units as one JSON array. Each element is
// already canonical, so the array is too.
func writeUnits(filename string, units [][]byte) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(units, []byte(",")))
	buf.WriteByte(']')
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
