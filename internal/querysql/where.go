package querysql

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/materialize"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultColumn maps a property path to a column name by replacing dots
// with underscores: address.city -> address_city.
func DefaultColumn(property string) string {
	return strings.ReplaceAll(property, ".", "_")
}

// Where is a materialize.Whereable that renders a parameterized SQL WHERE
// fragment for SQLite.
//
// CRITICAL: Values are NEVER interpolated - always use ? placeholders.
// Column names come from Column and must be plain identifiers.
type Where struct {
	// Column maps property paths to column names. Nil means DefaultColumn.
	Column func(property string) string

	parts  []string
	params []any
	err    error
}

// NewWhere returns an empty fragment builder.
func NewWhere() *Where {
	return &Where{}
}

func (w *Where) And(property string, op filterir.Operator, value any) {
	w.add(" AND ", property, op, value)
}

func (w *Where) Or(property string, op filterir.Operator, value any) {
	w.add(" OR ", property, op, value)
}

// Nested renders the group as (alt1 OR alt2 ...), each alternative
// replayed into its own sub-fragment.
func (w *Where) Nested(group *materialize.Group) {
	if w.err != nil {
		return
	}
	alts := make([]string, 0, len(group.Alternatives))
	var params []any
	for _, alt := range group.Alternatives {
		sub := &Where{Column: w.Column}
		materialize.Replay(alt, sub)
		sql, subParams, err := sub.SQL()
		if err != nil {
			w.err = err
			return
		}
		if sql == "" {
			sql = "1 = 1"
		}
		if len(sub.parts) > 1 {
			sql = "(" + sql + ")"
		}
		alts = append(alts, sql)
		params = append(params, subParams...)
	}
	if len(alts) == 0 {
		w.join(" AND ", "1 = 0")
		return
	}
	w.join(" AND ", "("+strings.Join(alts, " "+string(group.Combinator)+" ")+")")
	w.params = append(w.params, params...)
}

// SQL returns the fragment and its parameters in placeholder order.
// An empty fragment means no condition.
func (w *Where) SQL() (string, []any, error) {
	if w.err != nil {
		return "", nil, w.err
	}
	return strings.Join(w.parts, ""), w.params, nil
}

func (w *Where) join(conj, sql string) {
	if len(w.parts) > 0 {
		sql = conj + sql
	}
	w.parts = append(w.parts, sql)
}

func (w *Where) add(conj, property string, op filterir.Operator, value any) {
	if w.err != nil {
		return
	}
	sql, params, err := w.comparison(property, op, value)
	if err != nil {
		w.err = err
		return
	}
	w.join(conj, sql)
	w.params = append(w.params, params...)
}

func (w *Where) column(property string) (string, error) {
	col := DefaultColumn(property)
	if w.Column != nil {
		col = w.Column(property)
	}
	if !identRe.MatchString(col) {
		return "", fmt.Errorf("property %s maps to invalid column name %q", property, col)
	}
	return col, nil
}

func (w *Where) comparison(property string, op filterir.Operator, value any) (string, []any, error) {
	col, err := w.column(property)
	if err != nil {
		return "", nil, err
	}

	switch op {
	case filterir.OpEq, filterir.OpNe:
		if value == nil {
			if op == filterir.OpEq {
				return col + " IS NULL", nil, nil
			}
			return col + " IS NOT NULL", nil, nil
		}
		return scalar(col, string(op), property, value)

	case filterir.OpLt, filterir.OpLe, filterir.OpGt, filterir.OpGe:
		return scalar(col, string(op), property, value)

	case filterir.OpLike:
		// A list of patterns matches any of them.
		if list, ok := value.([]any); ok {
			if len(list) == 0 {
				return "1 = 0", nil, nil
			}
			ors := make([]string, len(list))
			for i := range list {
				ors[i] = col + " LIKE ?"
			}
			return "(" + strings.Join(ors, " OR ") + ")", list, nil
		}
		return scalar(col, "LIKE", property, value)

	case filterir.OpIn:
		list, ok := value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("%s IN needs a list, got %T", property, value)
		}
		if len(list) == 0 {
			return "1 = 0", nil, nil // empty IN matches nothing
		}
		for _, v := range list {
			if err := checkParam(property, v); err != nil {
				return "", nil, err
			}
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
		return fmt.Sprintf("%s IN (%s)", col, marks), list, nil

	default:
		return "", nil, fmt.Errorf("unsupported operator %q for %s", op, property)
	}
}

func scalar(col, op, property string, value any) (string, []any, error) {
	if err := checkParam(property, value); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{value}, nil
}

// checkParam rejects composite values; SQL parameters are scalars.
func checkParam(property string, v any) error {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case []byte, time.Time, driver.Valuer:
		return nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Func, reflect.Chan:
		return fmt.Errorf("%s: %T cannot be used as SQL parameter", property, v)
	}
	return nil
}

// WhereSQL replays f into a fresh Where and returns the fragment.
func WhereSQL(f *materialize.Filter, column func(string) string) (string, []any, error) {
	w := &Where{Column: column}
	f.Apply(w)
	return w.SQL()
}
