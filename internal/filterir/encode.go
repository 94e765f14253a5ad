package filterir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/wherefn/internal/ir"
)

// Wire format (canonical JSON, keys sorted):
//
//	unit:   {"entity":..., "root":<group>, "source_key":..., "version":"1"}
//	group:  {"and":[<filter>...]}
//	filter: {"op":..., "property":..., "value":<value>} | {"or":[<group>...]}
//	value:  {"kind":"constant","value":<json>}
//	        {"kind":"captured","name":...}
//	        {"kind":"property","base":<value>,"field":...}
//	        {"kind":"getter","base":<value>,"method":...}
//	        {"kind":"array","items":[<value>...]}
//	        {"kind":"index","base":<value>,"key":<value>}
//	        {"kind":"class_constant","class":...,"name":...}
//	        {"kind":"like","inner":<value>,"mode":...}

const (
	kindConstant      = "constant"
	kindCaptured      = "captured"
	kindProperty      = "property"
	kindGetter        = "getter"
	kindArray         = "array"
	kindIndex         = "index"
	kindClassConstant = "class_constant"
	kindLike          = "like"
)

// Marshal encodes a compiled unit as canonical JSON. Equal units always
// produce identical bytes.
func Marshal(unit *CompiledUnit) ([]byte, error) {
	if unit == nil {
		return nil, errors.New("marshal: nil unit")
	}
	root, err := encodeGroup(unit.Root)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return ir.MarshalCanonical(map[string]any{
		"version":    ir.IRVersion,
		"source_key": unit.SourceKey,
		"entity":     unit.Entity,
		"root":       root,
	})
}

// Fingerprint returns the domain-separated SHA-256 of the unit's canonical
// encoding.
func Fingerprint(unit *CompiledUnit) (string, error) {
	data, err := Marshal(unit)
	if err != nil {
		return "", err
	}
	return ir.HashBytes(ir.DomainUnit, data), nil
}

// Equal reports whether two units are structurally equal.
func Equal(a, b *CompiledUnit) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, errA := Marshal(a)
	bb, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func encodeGroup(g AndGroup) (map[string]any, error) {
	filters := make([]any, len(g.Filters))
	for i, f := range g.Filters {
		enc, err := encodeFilter(f)
		if err != nil {
			return nil, fmt.Errorf("and[%d]: %w", i, err)
		}
		filters[i] = enc
	}
	return map[string]any{"and": filters}, nil
}

func encodeFilter(f Filter) (map[string]any, error) {
	switch n := f.(type) {
	case *Atomic:
		v, err := encodeValue(n.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"property": n.Property,
			"op":       string(n.Operator),
			"value":    v,
		}, nil
	case *OrGroup:
		alts := make([]any, len(n.Alternatives))
		for i, alt := range n.Alternatives {
			enc, err := encodeGroup(alt)
			if err != nil {
				return nil, fmt.Errorf("or[%d]: %w", i, err)
			}
			alts[i] = enc
		}
		return map[string]any{"or": alts}, nil
	default:
		return nil, fmt.Errorf("unknown filter type %T", f)
	}
}

func encodeValue(v Value) (map[string]any, error) {
	switch val := v.(type) {
	case *Constant:
		var c any = val.Value
		if val.Value == nil {
			c = ir.IRNull{}
		}
		return map[string]any{"kind": kindConstant, "value": c}, nil
	case *Captured:
		return map[string]any{"kind": kindCaptured, "name": val.Name}, nil
	case *PropertyChain:
		base, err := encodeValue(val.Base)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": kindProperty, "base": base, "field": val.Field}, nil
	case *GetterChain:
		base, err := encodeValue(val.Base)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": kindGetter, "base": base, "method": val.Method}, nil
	case *ArrayLiteral:
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			enc, err := encodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			items[i] = enc
		}
		return map[string]any{"kind": kindArray, "items": items}, nil
	case *ArrayIndex:
		base, err := encodeValue(val.Base)
		if err != nil {
			return nil, err
		}
		key, err := encodeValue(val.Key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": kindIndex, "base": base, "key": key}, nil
	case *ClassConstant:
		return map[string]any{"kind": kindClassConstant, "class": val.Class, "name": val.Name}, nil
	case *LikePattern:
		inner, err := encodeValue(val.Inner)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": kindLike, "inner": inner, "mode": string(val.Mode)}, nil
	default:
		return nil, fmt.Errorf("unknown value descriptor %T", v)
	}
}

type wireUnit struct {
	Version   string    `json:"version"`
	SourceKey string    `json:"source_key"`
	Entity    string    `json:"entity"`
	Root      wireGroup `json:"root"`
}

type wireGroup struct {
	And []wireFilter `json:"and"`
}

type wireFilter struct {
	Property string      `json:"property"`
	Op       string      `json:"op"`
	Value    *wireValue  `json:"value"`
	Or       []wireGroup `json:"or"`
}

type wireValue struct {
	Kind   string          `json:"kind"`
	Value  json.RawMessage `json:"value"`
	Name   string          `json:"name"`
	Base   *wireValue      `json:"base"`
	Field  string          `json:"field"`
	Method string          `json:"method"`
	Items  []*wireValue    `json:"items"`
	Key    *wireValue      `json:"key"`
	Class  string          `json:"class"`
	Inner  *wireValue      `json:"inner"`
	Mode   string          `json:"mode"`
}

// Unmarshal decodes a unit produced by Marshal.
func Unmarshal(data []byte) (*CompiledUnit, error) {
	var w wireUnit
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal unit: %w", err)
	}
	if w.Version != ir.IRVersion {
		return nil, fmt.Errorf("unmarshal unit: unsupported version %q", w.Version)
	}
	root, err := decodeGroup(w.Root)
	if err != nil {
		return nil, fmt.Errorf("unmarshal unit: %w", err)
	}
	return &CompiledUnit{SourceKey: w.SourceKey, Entity: w.Entity, Root: root}, nil
}

func decodeGroup(w wireGroup) (AndGroup, error) {
	filters := make([]Filter, len(w.And))
	for i, wf := range w.And {
		if wf.Or != nil {
			alts := make([]AndGroup, len(wf.Or))
			for j, wg := range wf.Or {
				alt, err := decodeGroup(wg)
				if err != nil {
					return AndGroup{}, fmt.Errorf("and[%d].or[%d]: %w", i, j, err)
				}
				alts[j] = alt
			}
			filters[i] = &OrGroup{Alternatives: alts}
			continue
		}
		v, err := decodeValue(wf.Value)
		if err != nil {
			return AndGroup{}, fmt.Errorf("and[%d]: %w", i, err)
		}
		filters[i] = &Atomic{Property: wf.Property, Operator: Operator(wf.Op), Value: v}
	}
	return AndGroup{Filters: filters}, nil
}

func decodeValue(w *wireValue) (Value, error) {
	if w == nil {
		return nil, errors.New("missing value descriptor")
	}
	switch w.Kind {
	case kindConstant:
		if len(w.Value) == 0 {
			return nil, errors.New("constant without value")
		}
		v, err := ir.UnmarshalIRValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("constant: %w", err)
		}
		return &Constant{Value: v}, nil
	case kindCaptured:
		return &Captured{Name: w.Name}, nil
	case kindProperty:
		base, err := decodeValue(w.Base)
		if err != nil {
			return nil, err
		}
		return &PropertyChain{Base: base, Field: w.Field}, nil
	case kindGetter:
		base, err := decodeValue(w.Base)
		if err != nil {
			return nil, err
		}
		return &GetterChain{Base: base, Method: w.Method}, nil
	case kindArray:
		items := make([]Value, len(w.Items))
		for i, wi := range w.Items {
			item, err := decodeValue(wi)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			items[i] = item
		}
		return &ArrayLiteral{Items: items}, nil
	case kindIndex:
		base, err := decodeValue(w.Base)
		if err != nil {
			return nil, err
		}
		key, err := decodeValue(w.Key)
		if err != nil {
			return nil, err
		}
		return &ArrayIndex{Base: base, Key: key}, nil
	case kindClassConstant:
		return &ClassConstant{Class: w.Class, Name: w.Name}, nil
	case kindLike:
		inner, err := decodeValue(w.Inner)
		if err != nil {
			return nil, err
		}
		return &LikePattern{Inner: inner, Mode: LikeMode(w.Mode)}, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", w.Kind)
	}
}
