package funcall

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
)

// TypeMismatchError reports that no interpretation of a raw JSON value
// satisfied the target descriptor.
type TypeMismatchError struct {
	Expected string
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot reconstruct %s from %v (%T)", e.Expected, e.Value, e.Value)
}

func mismatch(d *TypeDescriptor, raw any) error {
	return &TypeMismatchError{Expected: d.String(), Value: raw}
}

// Reconstruct turns an untyped JSON value into a typed value matching the
// descriptor, recursing through composite shapes. Interpretations are tried
// in a fixed precedence order: passthrough for any/unresolved targets, exact
// type match, null short-circuit, primitive conversion, union alternatives
// in declared order, container recursion, composite field-by-field
// construction, and finally direct conversion to the target Go type. Failure
// is always a TypeMismatchError. Reconstruction is strict: inside composite
// values any field failure aborts (see Registry options for the non-strict
// policy).
func Reconstruct(d *TypeDescriptor, raw any, scope *Scope) (any, error) {
	return reconstructValue(d, raw, scope, true, nil)
}

func reconstructValue(d *TypeDescriptor, raw any, scope *Scope, strict bool, logger *slog.Logger) (any, error) {
	if d == nil || d.Kind == KindAny || d.Kind == KindUnresolved {
		return raw, nil
	}
	if d.Kind == KindRef {
		target := deref(d, scope)
		if target.Kind == KindUnresolved {
			return raw, nil
		}
		return reconstructValue(target, raw, scope, strict, logger)
	}

	if typeMatchesValue(d, raw) {
		return raw, nil
	}

	switch d.Kind {
	case KindNull:
		if raw == nil {
			return nil, nil
		}
		return nil, mismatch(d, raw)

	case KindOptional:
		if raw == nil {
			if d.goType != nil {
				return reflect.Zero(d.goType).Interface(), nil
			}
			return nil, nil
		}
		inner, err := reconstructValue(d.Elem, raw, scope, strict, logger)
		if err != nil {
			return nil, err
		}
		if d.goType != nil && d.goType.Kind() == reflect.Pointer {
			rv, err := coerceValue(inner, d.goType)
			if err != nil {
				return nil, mismatch(d, raw)
			}
			return rv.Interface(), nil
		}
		return inner, nil

	case KindString, KindNumber, KindInteger, KindBoolean:
		return reconstructPrimitive(d, raw)

	case KindUnion:
		// Exact runtime-type match wins over any conversion, even if an
		// earlier alternative could convert.
		for _, alt := range d.Alts {
			if typeMatchesValue(deref(alt, scope), raw) {
				return raw, nil
			}
		}
		for _, alt := range d.Alts {
			if v, err := reconstructValue(alt, raw, scope, strict, logger); err == nil {
				return v, nil
			}
		}
		return nil, mismatch(d, raw)

	case KindList:
		elems, ok := asSequence(raw)
		if !ok {
			return nil, mismatch(d, raw)
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			v, err := reconstructValue(d.Elem, e, scope, strict, logger)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return materializeSlice(d, out)

	case KindTuple:
		elems, ok := asSequence(raw)
		if !ok {
			return nil, mismatch(d, raw)
		}
		var types []*TypeDescriptor
		if d.Variadic {
			types = make([]*TypeDescriptor, len(elems))
			for i := range types {
				types[i] = d.Elem
			}
		} else {
			if len(elems) != len(d.Alts) {
				return nil, mismatch(d, raw)
			}
			types = d.Alts
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			v, err := reconstructValue(types[i], e, scope, strict, logger)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return materializeTuple(d, out)

	case KindSet:
		elems, ok := asSequence(raw)
		if !ok {
			return nil, mismatch(d, raw)
		}
		if d.goType != nil {
			set := reflect.MakeMapWithSize(d.goType, len(elems))
			for _, e := range elems {
				v, err := reconstructValue(d.Elem, e, scope, strict, logger)
				if err != nil {
					return nil, err
				}
				kv, err := coerceValue(v, d.goType.Key())
				if err != nil {
					return nil, mismatch(d, raw)
				}
				// Duplicates collapse silently: set semantics, not an error.
				set.SetMapIndex(kv, reflect.ValueOf(struct{}{}))
			}
			return set.Interface(), nil
		}
		set := make(map[any]struct{}, len(elems))
		for _, e := range elems {
			v, err := reconstructValue(d.Elem, e, scope, strict, logger)
			if err != nil {
				return nil, err
			}
			set[v] = struct{}{}
		}
		return set, nil

	case KindMapping:
		return reconstructMapping(d, raw, scope, strict, logger)

	case KindComposite:
		return reconstructComposite(d, raw, scope, strict, logger)
	}

	// Last resort: direct conversion to the known Go type.
	if d.goType != nil && raw != nil {
		rv := reflect.ValueOf(raw)
		if rv.Type().ConvertibleTo(d.goType) {
			return rv.Convert(d.goType).Interface(), nil
		}
	}
	return nil, mismatch(d, raw)
}

// typeMatchesValue reports an exact match between a raw value's runtime type
// and the descriptor, the short-circuit that skips reconversion entirely.
func typeMatchesValue(d *TypeDescriptor, raw any) bool {
	if d == nil {
		return true
	}
	if raw == nil {
		return d.Kind == KindNull
	}
	if d.goType != nil {
		// A concrete Go type only matches exactly; a plain float64 is not
		// a named float64, it still needs conversion.
		return reflect.TypeOf(raw) == d.goType
	}
	switch d.Kind {
	case KindString:
		_, ok := raw.(string)
		return ok
	case KindBoolean:
		_, ok := raw.(bool)
		return ok
	case KindNumber:
		switch raw.(type) {
		case float64, float32:
			return true
		}
	case KindInteger:
		switch raw.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
	}
	return false
}

// reconstructPrimitive converts a raw value into the target primitive using
// the target's native conversion. Failed conversions (not falsy results) are
// mismatches.
func reconstructPrimitive(d *TypeDescriptor, raw any) (any, error) {
	var out any
	switch d.Kind {
	case KindString:
		switch v := raw.(type) {
		case string:
			out = v
		case float64:
			out = strconv.FormatFloat(v, 'g', -1, 64)
		case int:
			out = strconv.Itoa(v)
		case bool:
			out = strconv.FormatBool(v)
		default:
			return nil, mismatch(d, raw)
		}
	case KindNumber:
		switch v := raw.(type) {
		case float64:
			out = v
		case float32:
			out = float64(v)
		case int:
			out = float64(v)
		case int64:
			out = float64(v)
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, mismatch(d, raw)
			}
			out = f
		default:
			return nil, mismatch(d, raw)
		}
	case KindInteger:
		switch v := raw.(type) {
		case int:
			out = v
		case int64:
			out = int(v)
		case float64:
			if math.Trunc(v) != v {
				return nil, mismatch(d, raw)
			}
			out = int(v)
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, mismatch(d, raw)
			}
			out = int(n)
		default:
			return nil, mismatch(d, raw)
		}
	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			out = v
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, mismatch(d, raw)
			}
			out = b
		default:
			return nil, mismatch(d, raw)
		}
	}

	if d.goType != nil && reflect.TypeOf(out) != d.goType {
		rv := reflect.ValueOf(out)
		if !rv.Type().ConvertibleTo(d.goType) {
			return nil, mismatch(d, raw)
		}
		return rv.Convert(d.goType).Interface(), nil
	}
	return out, nil
}

func reconstructMapping(d *TypeDescriptor, raw any, scope *Scope, strict bool, logger *slog.Logger) (any, error) {
	rv := reflect.ValueOf(raw)
	if raw == nil || rv.Kind() != reflect.Map {
		return nil, mismatch(d, raw)
	}

	type pair struct{ k, v any }
	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := reconstructValue(d.Key, iter.Key().Interface(), scope, strict, logger)
		if err != nil {
			return nil, err
		}
		v, err := reconstructValue(d.Value, iter.Value().Interface(), scope, strict, logger)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{k, v})
	}

	if d.goType != nil {
		out := reflect.MakeMapWithSize(d.goType, len(pairs))
		for _, p := range pairs {
			kv, err := coerceValue(p.k, d.goType.Key())
			if err != nil {
				return nil, mismatch(d, raw)
			}
			vv, err := coerceValue(p.v, d.goType.Elem())
			if err != nil {
				return nil, mismatch(d, raw)
			}
			out.SetMapIndex(kv, vv)
		}
		return out.Interface(), nil
	}
	if d.Key == nil || d.Key.Kind == KindString || d.Key.Kind == KindAny {
		out := make(map[string]any, len(pairs))
		for _, p := range pairs {
			ks, ok := p.k.(string)
			if !ok {
				ks = fmt.Sprint(p.k)
			}
			out[ks] = p.v
		}
		return out, nil
	}
	out := make(map[any]any, len(pairs))
	for _, p := range pairs {
		out[p.k] = p.v
	}
	return out, nil
}

// fieldRequired reports whether a composite field must be present: no
// default and not an optional shape. Optionality here comes from the
// signature (pointer types), never from documentation.
func fieldRequired(f Field) bool {
	return !f.HasDefault && (f.Type == nil || f.Type.Kind != KindOptional)
}

func reconstructComposite(d *TypeDescriptor, raw any, scope *Scope, strict bool, logger *slog.Logger) (any, error) {
	obj, ok := asStringMap(raw)
	if !ok {
		return nil, mismatch(d, raw)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fields := make(map[string]any, len(obj))
	for _, f := range d.Fields {
		rawField, present := obj[f.Name]
		if !present {
			if fieldRequired(f) {
				return nil, fmt.Errorf("%s: missing required field %q", d.String(), f.Name)
			}
			continue
		}
		v, err := reconstructValue(f.Type, rawField, scope, strict, logger)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("%s.%s: %w", d.String(), f.Name, err)
			}
			// Non-strict: drop the field and rely on its default (or zero value).
			logger.Warn("field reconstruction failed",
				"composite", d.String(), "field", f.Name, "error", err)
			continue
		}
		fields[f.Name] = v
	}

	known := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		known[f.Name] = true
	}
	for name := range obj {
		if !known[name] {
			return nil, fmt.Errorf("%s: unexpected field %q", d.String(), name)
		}
	}

	if d.goType == nil {
		return fields, nil
	}
	return buildComposite(d, fields)
}

func asSequence(raw any) ([]any, bool) {
	if s, ok := raw.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(raw)
	if raw == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asStringMap(raw any) (map[string]any, bool) {
	if m, ok := raw.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(raw)
	if raw == nil || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func materializeSlice(d *TypeDescriptor, elems []any) (any, error) {
	if d.goType == nil {
		return elems, nil
	}
	out := reflect.MakeSlice(d.goType, len(elems), len(elems))
	for i, e := range elems {
		ev, err := coerceValue(e, d.goType.Elem())
		if err != nil {
			return nil, mismatch(d, elems)
		}
		out.Index(i).Set(ev)
	}
	return out.Interface(), nil
}

func materializeTuple(d *TypeDescriptor, elems []any) (any, error) {
	if d.goType == nil || d.goType.Kind() != reflect.Array {
		return elems, nil
	}
	out := reflect.New(d.goType).Elem()
	for i, e := range elems {
		ev, err := coerceValue(e, d.goType.Elem())
		if err != nil {
			return nil, mismatch(d, elems)
		}
		out.Index(i).Set(ev)
	}
	return out.Interface(), nil
}

// coerceValue adapts a reconstructed value to a concrete Go type: direct
// assignment, numeric conversion, or pointer allocation for optional slots.
func coerceValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.Pointer {
		inner, err := coerceValue(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if isScalarKind(rv.Kind()) && isScalarKind(t.Kind()) && rv.Type().ConvertibleTo(t) {
		// Reject lossy string<->numeric conversions Go would happily do.
		if (rv.Kind() == reflect.String) != (t.Kind() == reflect.String) {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
		}
		return rv.Convert(t), nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
