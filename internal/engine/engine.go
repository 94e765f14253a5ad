package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/wherefn/internal/cache"
	"github.com/roach88/wherefn/internal/compiler"
	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/materialize"
	"github.com/roach88/wherefn/internal/schema"
)

// Engine compiles predicates into filters.
//
// An Engine holds no per-call state. The compiled unit cache is the only
// shared mutable resource and backends synchronize themselves, so one
// Engine may serve any number of goroutines.
//
// Thread-safety model:
//   - Compile / Apply / Unit: safe from any goroutine
//   - Two goroutines missing the cache for the same key both compile;
//     the second Set overwrites the first with an identical unit
type Engine struct {
	provider     schema.Provider
	constants    *schema.Constants
	cache        cache.Cache
	logger       *slog.Logger
	compiler     *compiler.Compiler
	materializer *materialize.Materializer
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the compiled unit cache. A nil cache disables caching.
//
// Default: an in-process cache.Memory.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithConstants sets the named constant registry used for constant
// folding at compile time and for deferred class constants at
// materialization.
func WithConstants(c *schema.Constants) Option {
	return func(e *Engine) {
		e.constants = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine validating against provider.
func New(provider schema.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		cache:    cache.NewMemory(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.compiler = compiler.New(e.provider, e.constants)
	e.materializer = materialize.New(e.constants)
	return e
}

// Unit returns the compiled unit for pred, from the cache when possible.
//
// On a miss the predicate is compiled, validated and stored. Cache
// failures are logged and treated as misses; they never fail the call.
// A compile error is never cached.
func (e *Engine) Unit(ctx context.Context, entity string, pred *expr.Predicate) (*filterir.CompiledUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pred == nil || pred.Body == nil {
		return e.compiler.Compile(entity, pred)
	}

	key := compiler.SourceKey(entity, pred)
	if unit, ok := e.lookup(ctx, key, entity); ok {
		return unit, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	unit, err := e.compiler.Compile(entity, pred)
	if err != nil {
		e.logger.Debug("predicate rejected",
			"entity", entity,
			"source", pred.Source.String(),
			"error", err,
		)
		return nil, err
	}
	e.logger.Debug("predicate compiled",
		"entity", entity,
		"source_key", key,
		"filters", len(unit.Root.Filters),
		"duration", time.Since(start),
	)

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, unit); err != nil {
			e.logger.Warn("cache set failed",
				"source_key", key,
				"error", err,
			)
		}
	}
	return unit, nil
}

func (e *Engine) lookup(ctx context.Context, key, entity string) (*filterir.CompiledUnit, bool) {
	if e.cache == nil {
		return nil, false
	}
	unit, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("cache get failed",
			"source_key", key,
			"error", err,
		)
		return nil, false
	case !ok:
		e.logger.Debug("cache miss", "source_key", key)
		return nil, false
	case unit == nil || unit.Entity != entity:
		e.logger.Warn("cache entry does not match entity",
			"source_key", key,
			"entity", entity,
		)
		return nil, false
	}
	e.logger.Debug("cache hit", "source_key", key)
	return unit, true
}

// Compile compiles pred as a filter over entity and materializes it
// against the predicate's captured values.
func (e *Engine) Compile(ctx context.Context, entity string, pred *expr.Predicate) (*materialize.Filter, error) {
	unit, err := e.Unit(ctx, entity, pred)
	if err != nil {
		return nil, err
	}
	f, err := e.materializer.Materialize(unit, pred.Captures)
	if err != nil {
		var ce *compiler.Error
		if errors.As(err, &ce) && ce.Source == "" {
			ce.Source = pred.Source.String()
		}
		return nil, err
	}
	return f, nil
}

// Apply compiles pred and replays the filter into sink. On any error
// the sink is not touched.
func (e *Engine) Apply(ctx context.Context, entity string, pred *expr.Predicate, sink materialize.Whereable) error {
	f, err := e.Compile(ctx, entity, pred)
	if err != nil {
		return err
	}
	f.Apply(sink)
	return nil
}

// Provider returns the schema provider the engine validates against.
func (e *Engine) Provider() schema.Provider {
	return e.provider
}
