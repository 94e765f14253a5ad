package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/wherefn/internal/compiler"
	"github.com/roach88/wherefn/internal/engine"
	"github.com/roach88/wherefn/internal/source"
)

// loadBundle loads a spec directory, collecting every error. A non-nil
// bundle may come back together with errors (e.g. one predicate body
// fails to parse); a nil bundle means nothing usable was loaded.
func loadBundle(dir string) (*source.Bundle, []CLIError) {
	bundle, errs := source.LoadDir(dir, source.LoadModeCollectAll)
	if len(errs) == 0 {
		return bundle, nil
	}
	out := make([]CLIError, len(errs))
	for i, err := range errs {
		out[i] = toCLIError(err)
	}
	return bundle, out
}

// toCLIError maps loader and compiler errors to their codes.
func toCLIError(err error) CLIError {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		msg := string(ce.Kind)
		if ce.Message != "" {
			msg += ": " + ce.Message
		}
		src := ce.Source
		if ce.Pos.IsValid() {
			src = fmt.Sprintf("%s %s", src, ce.Pos)
		}
		return CLIError{Code: ce.Kind.Code(), Message: msg, Source: src}
	}
	var le *source.LoadError
	if errors.As(err, &le) {
		ce := CLIError{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			ce.Source = fmt.Sprintf("%s:%d:%d", le.Pos.Filename(), le.Pos.Line(), le.Pos.Column())
		}
		return ce
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// newEngine builds an engine over bundle with the configured cache
// backend. The returned close function is never nil.
func (o *RootOptions) newEngine(ctx context.Context, bundle *source.Bundle, useCache bool) (*engine.Engine, func() error, error) {
	opts := []engine.Option{
		engine.WithConstants(bundle.Constants),
		engine.WithLogger(o.Logger),
		engine.WithCache(nil),
	}
	closeFn := func() error { return nil }
	if useCache && o.Config != nil {
		c, cl, err := o.Config.Cache.Open(ctx)
		if err != nil {
			return nil, closeFn, WrapExitError(ExitCommandError, fmt.Sprintf("%s: opening %s cache", ErrCodeCache, o.Config.Cache.Backend), err)
		}
		opts = append(opts, engine.WithCache(c))
		closeFn = cl
	}
	return engine.New(bundle.Schema, opts...), closeFn, nil
}
