package cli

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"maps"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/materialize"
	"github.com/roach88/wherefn/internal/querysql"
)

// WhereOptions holds flags for the where command.
type WhereOptions struct {
	*RootOptions
	Captures string   // YAML file with captured values
	Set      []string // name=value overrides, values parsed as YAML
	Table    string   // render a full SELECT against this table
	Columns  []string // selected columns, default *
	DB       string   // sqlite database to run the SELECT against
}

// WhereResult is the where command's JSON payload.
type WhereResult struct {
	Predicate string           `json:"predicate"`
	Entity    string           `json:"entity"`
	Filter    string           `json:"filter"`
	SQL       string           `json:"sql"`
	Params    []any            `json:"params"`
	Rows      []map[string]any `json:"rows,omitempty"`
}

// NewWhereCommand creates the where command.
func NewWhereCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WhereOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "where <specs-dir> <predicate-id>",
		Short: "Materialize a predicate and print its SQL WHERE fragment",
		Long: `Compile a predicate, bind its captured variables and print the
parameterized SQL WHERE fragment with its parameters.

Captured values come from the predicate's declared captures, then the
--captures YAML file, then --set flags, later sources winning.

With --db the SELECT is executed against a SQLite database and the
matching rows are printed. --db requires --table.

Examples:
  wherefn where ./specs adults --set min=21
  wherefn where ./specs search --captures captures.yaml --table users
  wherefn where ./specs adults --table users --db app.db --columns id,name`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhere(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Captures, "captures", "", "YAML file of captured values")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "captured value as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "render a full SELECT against this table")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns to select (default *)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database to run the SELECT against (requires --table)")

	return cmd
}

func runWhere(opts *WhereOptions, specsDir, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	if opts.DB != "" && opts.Table == "" {
		return NewExitError(ExitCommandError, "--db requires --table")
	}

	bundle, loadErrs := loadBundle(specsDir)
	if len(loadErrs) > 0 {
		_ = formatter.Errors(loadErrs)
		return NewExitError(ExitCommandError, fmt.Sprintf("loading specs failed with %d error(s)", len(loadErrs)))
	}
	np, ok := bundle.Predicate(id)
	if !ok {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("predicate %q not declared in %s", id, specsDir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown predicate %q", id))
	}

	captures, err := opts.bindings(np.Predicate.Captures)
	if err != nil {
		_ = formatter.Error(ErrCodeCaptures, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading captures", err)
	}

	eng, closeCache, err := opts.newEngine(ctx, bundle, true)
	if err != nil {
		return err
	}
	defer closeCache()

	f, err := eng.Compile(ctx, np.Entity, np.Predicate.WithCaptures(captures))
	if err != nil {
		_ = formatter.Errors([]CLIError{toCLIError(err)})
		return WrapExitError(ExitFailure, "compiling "+id, err)
	}

	var stmt string
	var params []any
	if opts.Table != "" {
		stmt, params, err = querysql.Query{Table: opts.Table, Columns: opts.Columns, Filter: f}.SQL()
	} else {
		stmt, params, err = querysql.WhereSQL(f, nil)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeSQL, err.Error(), nil)
		return WrapExitError(ExitFailure, "rendering SQL", err)
	}
	if params == nil {
		params = []any{}
	}

	result := WhereResult{Predicate: id, Entity: np.Entity, Filter: f.String(), SQL: stmt, Params: params}
	var columns []string
	if opts.DB != "" {
		columns, result.Rows, err = selectRows(ctx, opts.DB, opts.Table, opts.Columns, f)
		if err != nil {
			_ = formatter.Error(ErrCodeSQL, err.Error(), nil)
			return WrapExitError(ExitFailure, "running query", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "-- %s (%s): %s\n", id, np.Entity, result.Filter)
	fmt.Fprintln(formatter.Writer, stmt)
	for i, p := range params {
		fmt.Fprintf(formatter.Writer, "  $%d = %#v\n", i+1, p)
	}
	if opts.DB != "" {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, strings.Join(columns, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, len(columns))
			for i, c := range columns {
				cells[i] = fmt.Sprint(row[c])
			}
			fmt.Fprintln(formatter.Writer, strings.Join(cells, "\t"))
		}
		fmt.Fprintf(formatter.Writer, "(%d row(s))\n", len(result.Rows))
	}
	return nil
}

// selectRows runs the filtered SELECT against a SQLite database and
// returns the column names and every row keyed by column.
func selectRows(ctx context.Context, path, table string, columns []string, f *materialize.Filter) ([]string, []map[string]any, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := querysql.Select(ctx, db, table, columns, f)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(names))
		for i, n := range names {
			if b, ok := vals[i].([]byte); ok {
				row[n] = string(b)
				continue
			}
			row[n] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return names, out, nil
}

// bindings merges the declared captures with the --captures file and the
// --set overrides.
func (o *WhereOptions) bindings(declared expr.Bindings) (expr.Bindings, error) {
	b := maps.Clone(declared)
	if b == nil {
		b = expr.Bindings{}
	}

	if o.Captures != "" {
		data, err := os.ReadFile(o.Captures)
		if err != nil {
			return nil, fmt.Errorf("failed to read captures file: %w", err)
		}
		var fromFile map[string]any
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse captures file: %w", err)
		}
		maps.Copy(b, fromFile)
	}

	for _, kv := range o.Set {
		name, raw, ok := bytes.Cut([]byte(kv), []byte("="))
		if !ok || len(name) == 0 {
			return nil, fmt.Errorf("--set %q: expected name=value", kv)
		}
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("--set %s: %w", name, err)
		}
		b[string(name)] = v
	}
	return b, nil
}
