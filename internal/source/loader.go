package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/schema"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants for loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidEntity    = "E101" // Malformed entity declaration
	ErrCodeInvalidConstant  = "E102" // Malformed constant
	ErrCodeInvalidPredicate = "E103" // Malformed predicate declaration
	ErrCodeInvalidBody      = "E104" // Predicate body does not parse
)

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NamedPredicate is a predicate declared in a spec directory.
type NamedPredicate struct {
	ID        string
	Entity    string
	Predicate *expr.Predicate
}

// Bundle is everything declared in one spec directory.
type Bundle struct {
	Schema     *schema.Static
	Constants  *schema.Constants
	Predicates []NamedPredicate
	FileCount  int
}

// Predicate returns the predicate declared under id.
func (b *Bundle) Predicate(id string) (NamedPredicate, bool) {
	for _, p := range b.Predicates {
		if p.ID == id {
			return p, true
		}
	}
	return NamedPredicate{}, false
}

// LoadDir loads a directory of CUE specs. Three top-level structs are
// recognized:
//
//	entity: User: {attributes: ["age", "name"], embedded: ["address"], relations: ["orders"], extends: ["Named"]}
//	constants: "app.Status": {ACTIVE: 1}
//	globals: {MAX_AGE: 120}
//	predicate: adults: {entity: "User", param: "e", type: "User", body: "e.age > 18"}
//
// A predicate may also carry imports (alias -> qualified class),
// namespace, and captures (default bindings). Predicates are returned
// in sorted ID order.
func LoadDir(dir string, mode LoadMode) (*Bundle, []error) {
	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	d := &decoder{dir: absDir}

	bundle := &Bundle{
		Constants: schema.NewConstants(),
		FileCount: len(cueFiles),
	}

	entities, entityErrs := d.entities(value.LookupPath(cue.ParsePath("entity")))
	for _, e := range entityErrs {
		if fail(e) {
			return bundle, errs
		}
	}
	st, err := schema.NewStatic(entities...)
	if err != nil {
		if fail(&LoadError{Code: ErrCodeInvalidEntity, Message: err.Error()}) {
			return bundle, errs
		}
		st, _ = schema.NewStatic()
	}
	bundle.Schema = st

	for _, e := range d.constants(value, bundle.Constants) {
		if fail(e) {
			return bundle, errs
		}
	}

	preds, predErrs := d.predicates(value.LookupPath(cue.ParsePath("predicate")))
	for _, e := range predErrs {
		if fail(e) {
			return bundle, errs
		}
	}
	bundle.Predicates = preds

	if len(entities) == 0 && len(preds) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities or predicates found in specs"})
	}
	return bundle, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

type decoder struct {
	dir string
}

func (d *decoder) entities(v cue.Value) ([]schema.Entity, []error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeInvalidEntity, Message: fmt.Sprintf("iterating entities: %v", err), Pos: v.Pos()}}
	}

	var out []schema.Entity
	var errs []error
	for iter.Next() {
		ev := iter.Value()
		e := schema.Entity{Name: label(iter)}
		var err error
		for _, f := range []struct {
			name string
			dst  *[]string
		}{
			{"attributes", &e.Attributes},
			{"embedded", &e.Embedded},
			{"relations", &e.Relations},
			{"extends", &e.Extends},
		} {
			if *f.dst, err = stringList(ev.LookupPath(cue.ParsePath(f.name))); err != nil {
				errs = append(errs, &LoadError{
					Code:    ErrCodeInvalidEntity,
					Message: fmt.Sprintf("entity.%s.%s: %v", e.Name, f.name, err),
					Pos:     ev.Pos(),
				})
				break
			}
		}
		if err == nil {
			out = append(out, e)
		}
	}
	return out, errs
}

func (d *decoder) constants(root cue.Value, into *schema.Constants) []error {
	var errs []error

	classes := root.LookupPath(cue.ParsePath("constants"))
	if classes.Exists() {
		iter, err := classes.Fields()
		if err != nil {
			return []error{&LoadError{Code: ErrCodeInvalidConstant, Message: fmt.Sprintf("iterating constants: %v", err), Pos: classes.Pos()}}
		}
		for iter.Next() {
			class := label(iter)
			members, err := iter.Value().Fields()
			if err != nil {
				errs = append(errs, &LoadError{Code: ErrCodeInvalidConstant, Message: fmt.Sprintf("constants.%s must be a struct", class), Pos: iter.Value().Pos()})
				continue
			}
			for members.Next() {
				name := label(members)
				val, err := ToGo(members.Value())
				if err == nil {
					err = into.Define(class, name, val)
				}
				if err != nil {
					errs = append(errs, &LoadError{Code: ErrCodeInvalidConstant, Message: fmt.Sprintf("constants.%s.%s: %v", class, name, err), Pos: members.Value().Pos()})
				}
			}
		}
	}

	globals := root.LookupPath(cue.ParsePath("globals"))
	if globals.Exists() {
		iter, err := globals.Fields()
		if err != nil {
			return append(errs, &LoadError{Code: ErrCodeInvalidConstant, Message: fmt.Sprintf("iterating globals: %v", err), Pos: globals.Pos()})
		}
		for iter.Next() {
			name := label(iter)
			val, err := ToGo(iter.Value())
			if err == nil {
				err = into.DefineGlobal(name, val)
			}
			if err != nil {
				errs = append(errs, &LoadError{Code: ErrCodeInvalidConstant, Message: fmt.Sprintf("globals.%s: %v", name, err), Pos: iter.Value().Pos()})
			}
		}
	}
	return errs
}

func (d *decoder) predicates(v cue.Value) ([]NamedPredicate, []error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeInvalidPredicate, Message: fmt.Sprintf("iterating predicates: %v", err), Pos: v.Pos()}}
	}

	var out []NamedPredicate
	var errs []error
	for iter.Next() {
		np, err := d.predicate(label(iter), iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, np)
	}
	slices.SortFunc(out, func(a, b NamedPredicate) int { return strings.Compare(a.ID, b.ID) })
	return out, errs
}

func (d *decoder) predicate(id string, v cue.Value) (NamedPredicate, error) {
	invalid := func(field, msg string, pos token.Pos) error {
		return &LoadError{Code: ErrCodeInvalidPredicate, Message: fmt.Sprintf("predicate.%s.%s: %s", id, field, msg), Pos: pos}
	}

	entity, err := requiredString(v, "entity")
	if err != nil {
		return NamedPredicate{}, invalid("entity", err.Error(), v.Pos())
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	body, err := requiredString(v, "body")
	if err != nil {
		return NamedPredicate{}, invalid("body", err.Error(), v.Pos())
	}

	pred := &expr.Predicate{}
	pos := bodyVal.Pos()
	pred.Source = expr.Source{File: d.rel(pos.Filename()), Line: pos.Line(), Text: body}

	tree, err := ParseExpr(pred.Source.File, body)
	if err != nil {
		return NamedPredicate{}, &LoadError{Code: ErrCodeInvalidBody, Message: fmt.Sprintf("predicate.%s.body: %v", id, err), Pos: pos}
	}
	pred.Body = tree

	// Parameters: either param/type or an explicit params list.
	if paramsVal := v.LookupPath(cue.ParsePath("params")); paramsVal.Exists() {
		list, err := paramsVal.List()
		if err != nil {
			return NamedPredicate{}, invalid("params", "must be a list", paramsVal.Pos())
		}
		for list.Next() {
			name, _ := optionalString(list.Value(), "name")
			typ, _ := optionalString(list.Value(), "type")
			pred.Params = append(pred.Params, expr.Param{Name: name, Type: typ})
		}
	} else if name, ok := optionalString(v, "param"); ok {
		typ, _ := optionalString(v, "type")
		pred.Params = []expr.Param{{Name: name, Type: typ}}
	}

	if ns, ok := optionalString(v, "namespace"); ok {
		pred.Namespace = ns
	}

	if importsVal := v.LookupPath(cue.ParsePath("imports")); importsVal.Exists() {
		imports, err := stringMap(importsVal)
		if err != nil {
			return NamedPredicate{}, invalid("imports", err.Error(), importsVal.Pos())
		}
		pred.Imports = imports
	}

	if capVal := v.LookupPath(cue.ParsePath("captures")); capVal.Exists() {
		raw, err := ToGo(capVal)
		if err != nil {
			return NamedPredicate{}, invalid("captures", err.Error(), capVal.Pos())
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return NamedPredicate{}, invalid("captures", "must be a struct", capVal.Pos())
		}
		pred.Captures = expr.Bindings(m)
	}

	return NamedPredicate{ID: id, Entity: entity, Predicate: pred}, nil
}

// rel makes a CUE filename relative to the spec directory so source keys
// do not depend on where the directory is checked out.
func (d *decoder) rel(filename string) string {
	if filename == "" {
		return ""
	}
	if r, err := filepath.Rel(d.dir, filename); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return filepath.Base(filename)
}

func label(iter *cue.Iterator) string {
	return strings.Trim(iter.Label(), `"`)
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", errors.New("is required")
	}
	s, err := fv.String()
	if err != nil {
		return "", errors.New("must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return "", errors.New("must not be empty")
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, bool) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false
	}
	s, err := fv.String()
	if err != nil {
		return "", false
	}
	return s, true
}

func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, errors.New("must be a list of strings")
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, errors.New("must be a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(v cue.Value) (map[string]string, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, errors.New("must be a struct of strings")
	}
	out := map[string]string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s must be a string", label(iter))
		}
		out[label(iter)] = s
	}
	return out, nil
}

// ToGo converts a concrete CUE value into plain Go data: nil, bool,
// int64, float64, string, []any and map[string]any.
func ToGo(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		out := []any{}
		for i := 0; iter.Next(); i++ {
			elem, err := ToGo(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := ToGo(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", label(iter), err)
			}
			out[label(iter)] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value must be concrete, got %v", v.IncompleteKind())
	}
}
