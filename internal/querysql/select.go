package querysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/wherefn/internal/materialize"
)

// Querier is the subset of *sql.DB and *sql.Tx that Select needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query is a single-table SELECT filtered by a materialized filter.
type Query struct {
	Table   string
	Columns []string
	Filter  *materialize.Filter

	// OrderBy is the ordering column; empty means "id".
	OrderBy string
	// Column maps property paths to column names. Nil means DefaultColumn.
	Column func(property string) string
}

// SQL builds the statement.
//
// MANDATORY: Every query includes ORDER BY with COLLATE BINARY so result
// order does not depend on SQLite's scan order.
func (q Query) SQL() (string, []any, error) {
	if !identRe.MatchString(q.Table) {
		return "", nil, fmt.Errorf("invalid table name %q", q.Table)
	}
	cols := "*"
	if len(q.Columns) > 0 {
		for _, c := range q.Columns {
			if !identRe.MatchString(c) {
				return "", nil, fmt.Errorf("invalid column name %q", c)
			}
		}
		cols = strings.Join(q.Columns, ", ")
	}
	order := q.OrderBy
	if order == "" {
		order = "id"
	}
	if !identRe.MatchString(order) {
		return "", nil, fmt.Errorf("invalid order column %q", order)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, q.Table)
	var params []any
	if q.Filter != nil {
		where, whereParams, err := WhereSQL(q.Filter, q.Column)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if where != "" {
			b.WriteString(" WHERE ")
			b.WriteString(where)
			params = whereParams
		}
	}
	fmt.Fprintf(&b, " ORDER BY %s ASC COLLATE BINARY", order)
	return b.String(), params, nil
}

// Run executes the query. Callers close the returned rows.
func (q Query) Run(ctx context.Context, db Querier) (*sql.Rows, error) {
	stmt, params, err := q.SQL()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return rows, nil
}

// Select runs SELECT columns FROM table WHERE <f> ORDER BY id.
func Select(ctx context.Context, db Querier, table string, columns []string, f *materialize.Filter) (*sql.Rows, error) {
	return Query{Table: table, Columns: columns, Filter: f}.Run(ctx, db)
}
