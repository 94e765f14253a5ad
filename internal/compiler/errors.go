package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/wherefn/internal/expr"
)

// Kind classifies a compile or materialization failure.
type Kind string

// Compile-time kinds abort before the cache or sink is touched;
// materialization kinds abort before the sink sees any clause.
const (
	KindMissingParameterType       Kind = "MissingParameterType"
	KindTooManyParameters          Kind = "TooManyParameters"
	KindParameterTypeMismatch      Kind = "ParameterTypeMismatch"
	KindInvalidAccessor            Kind = "InvalidAccessor"
	KindUnsupportedValueExpression Kind = "UnsupportedValueExpression"
	KindUnresolvableClassConstant  Kind = "UnresolvableClassConstant"
	KindUnsupportedFunctionCall    Kind = "UnsupportedFunctionCall"
	KindUnsupportedArgumentSpread  Kind = "UnsupportedArgumentSpread"
	KindUnsupportedExpression      Kind = "UnsupportedExpression"
	KindUnmappedProperty           Kind = "UnmappedProperty"
	KindUnboundCapture             Kind = "UnboundCapture"
	KindNullBaseDereference        Kind = "NullBaseDereference"
	KindIndexOutOfRange            Kind = "IndexOutOfRange"
	KindMissingKey                 Kind = "MissingKey"
	KindNonListMembership          Kind = "NonListMembership"
)

// Error codes (E200-E299)
var kindCodes = map[Kind]string{
	// Signature (E201-E209)
	KindMissingParameterType:  "E201",
	KindTooManyParameters:     "E202",
	KindParameterTypeMismatch: "E203",

	// Operands and calls (E210-E249)
	KindInvalidAccessor:            "E210",
	KindUnsupportedValueExpression: "E220",
	KindUnresolvableClassConstant:  "E221",
	KindUnsupportedFunctionCall:    "E230",
	KindUnsupportedArgumentSpread:  "E231",
	KindUnsupportedExpression:      "E240",

	// Schema (E250)
	KindUnmappedProperty: "E250",

	// Materialization (E260-E269)
	KindUnboundCapture:      "E260",
	KindNullBaseDereference: "E261",
	KindIndexOutOfRange:     "E262",
	KindMissingKey:          "E263",
	KindNonListMembership:   "E264",
}

// Code returns the stable error code of the kind, or E200 for an unknown kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return "E200"
}

// Materialization reports whether the kind can only occur while evaluating
// value descriptors against bindings.
func (k Kind) Materialization() bool {
	switch k {
	case KindUnboundCapture, KindNullBaseDereference, KindIndexOutOfRange,
		KindMissingKey, KindNonListMembership:
		return true
	}
	return false
}

// Error is the typed failure of compiling or materializing a predicate.
type Error struct {
	Kind    Kind
	Message string
	// Path is the property path, captured variable or constant the error
	// is about, when there is one.
	Path string
	// Source is the predicate's source identity ("file:line"), when known.
	Source string
	Pos    expr.Pos
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Kind.Code())
	if e.Source != "" {
		b.WriteString(e.Source)
		if e.Pos.IsValid() {
			fmt.Fprintf(&b, " %s", e.Pos)
		}
		b.WriteString(": ")
	} else if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s: ", e.Pos)
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMissingParameterType       = &Error{Kind: KindMissingParameterType}
	ErrTooManyParameters          = &Error{Kind: KindTooManyParameters}
	ErrParameterTypeMismatch      = &Error{Kind: KindParameterTypeMismatch}
	ErrInvalidAccessor            = &Error{Kind: KindInvalidAccessor}
	ErrUnsupportedValueExpression = &Error{Kind: KindUnsupportedValueExpression}
	ErrUnresolvableClassConstant  = &Error{Kind: KindUnresolvableClassConstant}
	ErrUnsupportedFunctionCall    = &Error{Kind: KindUnsupportedFunctionCall}
	ErrUnsupportedArgumentSpread  = &Error{Kind: KindUnsupportedArgumentSpread}
	ErrUnsupportedExpression      = &Error{Kind: KindUnsupportedExpression}
	ErrUnmappedProperty           = &Error{Kind: KindUnmappedProperty}
	ErrUnboundCapture             = &Error{Kind: KindUnboundCapture}
	ErrNullBaseDereference        = &Error{Kind: KindNullBaseDereference}
	ErrIndexOutOfRange            = &Error{Kind: KindIndexOutOfRange}
	ErrMissingKey                 = &Error{Kind: KindMissingKey}
	ErrNonListMembership          = &Error{Kind: KindNonListMembership}
)

// Errorf builds an *Error of the given kind about path.
func Errorf(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}

// errorAt builds an *Error positioned at node n.
func errorAt(kind Kind, n expr.Expr, format string, args ...any) *Error {
	e := Errorf(kind, "", format, args...)
	if n != nil {
		e.Pos = n.Position()
	}
	return e
}
