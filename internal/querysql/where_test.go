package querysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/materialize"
)

func clause(property string, op filterir.Operator, v any) materialize.Clause {
	return materialize.Clause{Property: property, Operator: op, Value: v}
}

func orGroup(alts ...[]materialize.Clause) materialize.Clause {
	return materialize.Clause{Group: &materialize.Group{Combinator: materialize.CombinatorOr, Alternatives: alts}}
}

func TestWhereSQL(t *testing.T) {
	f := &materialize.Filter{Clauses: []materialize.Clause{
		clause("age", filterir.OpGt, int64(18)),
		orGroup(
			[]materialize.Clause{clause("name", filterir.OpLike, "%a%")},
			[]materialize.Clause{clause("id", filterir.OpIn, []any{int64(1), int64(2)})},
		),
	}}
	sql, params, err := WhereSQL(f, nil)
	require.NoError(t, err)
	assert.Equal(t, "age > ? AND (name LIKE ? OR id IN (?, ?))", sql)
	assert.Equal(t, []any{int64(18), "%a%", int64(1), int64(2)}, params)
	assert.NotContains(t, sql, "%a%")
}

func TestWhereComparisons(t *testing.T) {
	tests := []struct {
		name   string
		c      materialize.Clause
		sql    string
		params []any
	}{
		{"eq", clause("age", filterir.OpEq, 1), "age = ?", []any{1}},
		{"ne", clause("age", filterir.OpNe, 1), "age != ?", []any{1}},
		{"le", clause("age", filterir.OpLe, 1.5), "age <= ?", []any{1.5}},
		{"ge", clause("age", filterir.OpGe, 1), "age >= ?", []any{1}},
		{"lt", clause("age", filterir.OpLt, 1), "age < ?", []any{1}},
		{"is null", clause("deleted_at", filterir.OpEq, nil), "deleted_at IS NULL", nil},
		{"is not null", clause("deleted_at", filterir.OpNe, nil), "deleted_at IS NOT NULL", nil},
		{"embedded path", clause("address.city", filterir.OpEq, "Oslo"), "address_city = ?", []any{"Oslo"}},
		{"empty in", clause("id", filterir.OpIn, []any{}), "1 = 0", nil},
		{"like list", clause("name", filterir.OpLike, []any{"a%", "b%"}), "(name LIKE ? OR name LIKE ?)", []any{"a%", "b%"}},
		{"time", clause("created", filterir.OpGt, time.Unix(0, 0).UTC()), "created > ?", []any{time.Unix(0, 0).UTC()}},
		{"bytes", clause("hash", filterir.OpEq, []byte("x")), "hash = ?", []any{[]byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := WhereSQL(&materialize.Filter{Clauses: []materialize.Clause{tt.c}}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestWhereAndOr(t *testing.T) {
	w := NewWhere()
	w.And("a", filterir.OpEq, 1)
	w.Or("b", filterir.OpEq, 2)
	w.And("c", filterir.OpEq, 3)
	sql, params, err := w.SQL()
	require.NoError(t, err)
	assert.Equal(t, "a = ? OR b = ? AND c = ?", sql)
	assert.Equal(t, []any{1, 2, 3}, params)
}

func TestWhereNestedAlternatives(t *testing.T) {
	f := &materialize.Filter{Clauses: []materialize.Clause{
		orGroup(
			[]materialize.Clause{
				clause("a", filterir.OpEq, 1),
				clause("b", filterir.OpEq, 2),
			},
			[]materialize.Clause{clause("c", filterir.OpEq, 3)},
		),
		clause("d", filterir.OpEq, 4),
	}}
	sql, params, err := WhereSQL(f, nil)
	require.NoError(t, err)
	assert.Equal(t, "((a = ? AND b = ?) OR c = ?) AND d = ?", sql)
	assert.Equal(t, []any{1, 2, 3, 4}, params)
}

func TestWhereColumnMapping(t *testing.T) {
	cols := map[string]string{"address.city": "city", "age": "age_years"}
	f := &materialize.Filter{Clauses: []materialize.Clause{
		clause("age", filterir.OpGt, 1),
		clause("address.city", filterir.OpEq, "x"),
	}}
	sql, _, err := WhereSQL(f, func(p string) string { return cols[p] })
	require.NoError(t, err)
	assert.Equal(t, "age_years > ? AND city = ?", sql)
}

func TestWhereErrors(t *testing.T) {
	tests := []struct {
		name string
		c    materialize.Clause
		want string
	}{
		{"in scalar", clause("id", filterir.OpIn, 3), "needs a list"},
		{"list for eq", clause("id", filterir.OpEq, []any{1}), "cannot be used as SQL parameter"},
		{"map param", clause("id", filterir.OpEq, map[string]any{}), "cannot be used as SQL parameter"},
		{"nested list in", clause("id", filterir.OpIn, []any{[]any{1}}), "cannot be used as SQL parameter"},
		{"bad operator", clause("id", "~", 1), "unsupported operator"},
		{"bad column", clause("a;drop", filterir.OpEq, 1), "invalid column name"},
		{"error in group", orGroup([]materialize.Clause{clause("id", filterir.OpIn, 3)}), "needs a list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := WhereSQL(&materialize.Filter{Clauses: []materialize.Clause{tt.c}}, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestWhereEmpty(t *testing.T) {
	sql, params, err := NewWhere().SQL()
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Empty(t, params)
}
