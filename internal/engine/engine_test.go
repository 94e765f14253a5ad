package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wherefn/internal/cache"
	"github.com/roach88/wherefn/internal/compiler"
	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/materialize"
	"github.com/roach88/wherefn/internal/schema"
	"github.com/roach88/wherefn/internal/source"
)

// countingCache wraps a Memory cache and counts calls.
type countingCache struct {
	mu   sync.Mutex
	mem  *cache.Memory
	gets int
	hits int
	sets int
}

func newCountingCache() *countingCache {
	return &countingCache{mem: cache.NewMemory()}
}

func (c *countingCache) Get(ctx context.Context, key string) (*filterir.CompiledUnit, bool, error) {
	unit, ok, err := c.mem.Get(ctx, key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if ok {
		c.hits++
	}
	return unit, ok, err
}

func (c *countingCache) Set(ctx context.Context, key string, unit *filterir.CompiledUnit) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.mem.Set(ctx, key, unit)
}

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*filterir.CompiledUnit, bool, error) {
	return nil, false, errors.New("backend down")
}

func (brokenCache) Set(context.Context, string, *filterir.CompiledUnit) error {
	return errors.New("backend down")
}

func testProvider() *schema.Static {
	return schema.MustStatic(schema.Entity{
		Name:       "User",
		Attributes: []string{"id", "age", "name", "status"},
	})
}

func pred(t *testing.T, body string, captures expr.Bindings) *expr.Predicate {
	t.Helper()
	e, err := source.ParseExpr("", body)
	require.NoError(t, err)
	p := expr.New("e", "User", e)
	p.Source = expr.Source{File: "preds.cue", Line: 7, Text: body}
	p.Captures = captures
	return p
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestEngineScenarios(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		captures expr.Bindings
		want     []materialize.Clause
	}{
		{
			name: "comparison",
			body: "e.age > 18",
			want: []materialize.Clause{{Property: "age", Operator: filterir.OpGt, Value: int64(18)}},
		},
		{
			name: "conjunction in source order",
			body: `e.age >= 18 && e.name == "x"`,
			want: []materialize.Clause{
				{Property: "age", Operator: filterir.OpGe, Value: int64(18)},
				{Property: "name", Operator: filterir.OpEq, Value: "x"},
			},
		},
		{
			name: "disjunction",
			body: "e.age > 10 || e.age < 2",
			want: []materialize.Clause{{Group: &materialize.Group{
				Combinator: materialize.CombinatorOr,
				Alternatives: [][]materialize.Clause{
					{{Property: "age", Operator: filterir.OpGt, Value: int64(10)}},
					{{Property: "age", Operator: filterir.OpLt, Value: int64(2)}},
				},
			}}},
		},
		{
			name: "contains",
			body: `contains(e.name, "foo")`,
			want: []materialize.Clause{{Property: "name", Operator: filterir.OpLike, Value: "%foo%"}},
		},
		{
			name:     "element of with capture",
			body:     "elementOf(e.id, [1, 2, v])",
			captures: expr.Bindings{"v": 3},
			want:     []materialize.Clause{{Property: "id", Operator: filterir.OpIn, Value: []any{int64(1), int64(2), 3}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := New(testProvider(), WithLogger(quietLogger()))
			f, err := eng.Compile(context.Background(), "User", pred(t, tt.body, tt.captures))
			require.NoError(t, err)
			assert.Equal(t, "User", f.Entity)
			assert.Equal(t, tt.want, f.Clauses)
		})
	}
}

func TestEngineUnmappedPropertyNotCached(t *testing.T) {
	c := newCountingCache()
	eng := New(testProvider(), WithCache(c), WithLogger(quietLogger()))
	rec := &materialize.Recorder{}

	err := eng.Apply(context.Background(), "User", pred(t, "e.unmapped > 1", nil), rec)

	assert.ErrorIs(t, err, compiler.ErrUnmappedProperty)
	var ce *compiler.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "preds.cue:7", ce.Source)
	assert.Equal(t, 0, c.sets)
	assert.Equal(t, 0, c.mem.Len())
	assert.True(t, rec.Empty())
}

func TestEngineCacheTransparency(t *testing.T) {
	ctx := context.Background()
	body := `e.age > min && contains(e.name, q)`
	bindings := expr.Bindings{"min": 21, "q": "an"}

	uncached := New(testProvider(), WithCache(nil), WithLogger(quietLogger()))
	want, err := uncached.Compile(ctx, "User", pred(t, body, bindings))
	require.NoError(t, err)

	c := newCountingCache()
	cached := New(testProvider(), WithCache(c), WithLogger(quietLogger()))
	first, err := cached.Compile(ctx, "User", pred(t, body, bindings))
	require.NoError(t, err)
	second, err := cached.Compile(ctx, "User", pred(t, body, bindings))
	require.NoError(t, err)

	assert.Equal(t, want, first)
	assert.Equal(t, want, second)
	assert.Equal(t, 2, c.gets)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, 1, c.sets)
}

func TestEngineSharedUnitDifferentCaptures(t *testing.T) {
	ctx := context.Background()
	c := newCountingCache()
	eng := New(testProvider(), WithCache(c), WithLogger(quietLogger()))

	p := pred(t, "e.age > min", nil)
	young, err := eng.Compile(ctx, "User", p.Capture("min", 18))
	require.NoError(t, err)
	old, err := eng.Compile(ctx, "User", p.Capture("min", 65))
	require.NoError(t, err)

	assert.Equal(t, 18, young.Clauses[0].Value)
	assert.Equal(t, 65, old.Clauses[0].Value)
	assert.Equal(t, young.SourceKey, old.SourceKey)
	assert.Equal(t, 1, c.sets)
	assert.Equal(t, 1, c.mem.Len())
}

func TestEngineCaptureShadowsGlobalAcrossCache(t *testing.T) {
	ctx := context.Background()
	constants := schema.NewConstants()
	require.NoError(t, constants.DefineGlobal("LIMIT", 10))

	c := newCountingCache()
	eng := New(testProvider(), WithCache(c), WithConstants(constants), WithLogger(quietLogger()))
	p := pred(t, "e.age > LIMIT", nil)

	global, err := eng.Compile(ctx, "User", p)
	require.NoError(t, err)
	assert.Equal(t, "age > 10", global.String())

	shadowed, err := eng.Compile(ctx, "User", p.Capture("LIMIT", 99))
	require.NoError(t, err)
	assert.Equal(t, "age > 99", shadowed.String())

	uncached, err := New(testProvider(), WithCache(nil), WithConstants(constants)).
		Compile(ctx, "User", p.Capture("LIMIT", 99))
	require.NoError(t, err)
	assert.Equal(t, uncached.Clauses, shadowed.Clauses)
	assert.Equal(t, 2, c.mem.Len())
}

func TestEngineDroppedCaptureRecompiles(t *testing.T) {
	ctx := context.Background()
	eng := New(testProvider(), WithCache(newCountingCache()), WithLogger(quietLogger()))
	p := pred(t, "elementOf(e.id, [1, 2, v])", nil)

	_, err := eng.Compile(ctx, "User", p.Capture("v", 3))
	require.NoError(t, err)

	_, cachedErr := eng.Compile(ctx, "User", p)
	_, freshErr := New(testProvider(), WithCache(nil)).Compile(ctx, "User", p)
	require.Error(t, freshErr)
	var cached, fresh *compiler.Error
	require.ErrorAs(t, cachedErr, &cached)
	require.ErrorAs(t, freshErr, &fresh)
	assert.Equal(t, fresh.Kind, cached.Kind)
}

func TestEngineIdempotentUnits(t *testing.T) {
	ctx := context.Background()
	body := `(e.age > 1 && e.status == S.ACTIVE) || e.name == "z"`
	p := pred(t, body, nil)
	p.Imports = map[string]string{"S": "app.Status"}

	constants := schema.NewConstants()
	require.NoError(t, constants.Define("app.Status", "ACTIVE", 1))

	a, err := New(testProvider(), WithCache(nil), WithConstants(constants)).Unit(ctx, "User", p)
	require.NoError(t, err)
	b, err := New(testProvider(), WithCache(nil), WithConstants(constants)).Unit(ctx, "User", p)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	fa, err := filterir.Fingerprint(a)
	require.NoError(t, err)
	fb, err := filterir.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestEngineMaterializeErrorLeavesSinkUntouched(t *testing.T) {
	eng := New(testProvider(), WithLogger(quietLogger()))
	rec := &materialize.Recorder{}

	err := eng.Apply(context.Background(), "User", pred(t, "e.age > 1 && e.name == who", expr.Bindings{}), rec)

	// who is not captured, so it never reaches materialization
	require.Error(t, err)
	assert.True(t, rec.Empty())

	p := pred(t, "e.age > 1 && e.name == u.name", expr.Bindings{"u": nil})
	err = eng.Apply(context.Background(), "User", p, rec)
	assert.ErrorIs(t, err, compiler.ErrNullBaseDereference)
	var ce *compiler.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "preds.cue:7", ce.Source)
	assert.True(t, rec.Empty())
}

func TestEngineApply(t *testing.T) {
	eng := New(testProvider(), WithLogger(quietLogger()))
	rec := &materialize.Recorder{}

	err := eng.Apply(context.Background(), "User", pred(t, "e.age > 1 && (e.id == 1 || e.id == 2)", nil), rec)
	require.NoError(t, err)

	require.Len(t, rec.Calls, 2)
	assert.Equal(t, "and", rec.Calls[0].Method)
	assert.Equal(t, "nested", rec.Calls[1].Method)
	assert.Len(t, rec.Calls[1].Alternatives, 2)
}

func TestEngineBrokenCacheDegrades(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eng := New(testProvider(), WithCache(brokenCache{}), WithLogger(logger))

	f, err := eng.Compile(context.Background(), "User", pred(t, "e.age > 18", nil))
	require.NoError(t, err)
	assert.Len(t, f.Clauses, 1)
	assert.Contains(t, logs.String(), "cache get failed")
	assert.Contains(t, logs.String(), "cache set failed")
}

func TestEngineIgnoresEntryForOtherEntity(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	p := pred(t, "e.age > 18", nil)
	key := compiler.SourceKey("User", p)
	require.NoError(t, c.Set(ctx, key, &filterir.CompiledUnit{SourceKey: key, Entity: "Order"}))

	eng := New(testProvider(), WithCache(c), WithLogger(quietLogger()))
	unit, err := eng.Unit(ctx, "User", p)
	require.NoError(t, err)
	assert.Equal(t, "User", unit.Entity)
	assert.Len(t, unit.Root.Filters, 1)
}

func TestEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(testProvider(), WithLogger(quietLogger()))
	_, err := eng.Compile(ctx, "User", pred(t, "e.age > 18", nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineNilPredicate(t *testing.T) {
	eng := New(testProvider(), WithLogger(quietLogger()))
	_, err := eng.Compile(context.Background(), "User", nil)
	assert.ErrorIs(t, err, compiler.ErrUnsupportedExpression)
}

func TestEngineConcurrentCompile(t *testing.T) {
	eng := New(testProvider(), WithLogger(quietLogger()))
	p := pred(t, "e.age > min", nil)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := eng.Compile(context.Background(), "User", p.Capture("min", i))
			if err == nil {
				results[i] = f.Clauses[0].Value
			}
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		assert.Equal(t, i, v)
	}
}
