package funcall

import (
	"strconv"
	"strings"
)

// ResolveName normalizes a type-name expression (as found in docstrings) into
// a descriptor. The grammar is deliberately small: primitives under the
// spellings docstrings actually use, list/dict/set/tuple/optional/union with
// bracketed parameters, "A | B" unions, and Go container syntax ([]T, map[K]V,
// *T). Anything else becomes a lazy Ref resolved against scope when a value
// is reconstructed; names that never resolve degrade to an empty schema.
// ResolveName itself never fails.
func ResolveName(expr string, scope *Scope) *TypeDescriptor {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &TypeDescriptor{Kind: KindAny}
	}

	if alts := splitTopLevel(expr, '|'); len(alts) > 1 {
		return unionOf(resolveAll(alts, scope))
	}

	switch {
	case strings.HasPrefix(expr, "*"):
		return &TypeDescriptor{Kind: KindOptional, Elem: ResolveName(expr[1:], scope)}
	case strings.HasPrefix(expr, "[]"):
		return &TypeDescriptor{Kind: KindList, Elem: ResolveName(expr[2:], scope)}
	case strings.HasPrefix(expr, "["):
		// Go array syntax [N]T: fixed-length homogeneous tuple.
		end := strings.IndexByte(expr, ']')
		if end > 1 {
			if n, err := strconv.Atoi(strings.TrimSpace(expr[1:end])); err == nil && n >= 0 {
				elem := ResolveName(expr[end+1:], scope)
				alts := make([]*TypeDescriptor, n)
				for i := range alts {
					alts[i] = elem
				}
				return &TypeDescriptor{Kind: KindTuple, Alts: alts}
			}
		}
		return &TypeDescriptor{Kind: KindUnresolved, Name: expr}
	case strings.HasPrefix(expr, "map["):
		end := matchBracket(expr, 3)
		if end < 0 {
			return &TypeDescriptor{Kind: KindUnresolved, Name: expr}
		}
		key := ResolveName(expr[4:end], scope)
		value := ResolveName(expr[end+1:], scope)
		return &TypeDescriptor{Kind: KindMapping, Key: key, Value: value}
	}

	if open := strings.IndexByte(expr, '['); open > 0 && strings.HasSuffix(expr, "]") {
		head := strings.ToLower(strings.TrimSpace(expr[:open]))
		args := splitTopLevel(expr[open+1:len(expr)-1], ',')
		return resolveGeneric(head, args, expr, scope)
	}

	return resolveBareName(expr, scope)
}

func resolveAll(exprs []string, scope *Scope) []*TypeDescriptor {
	out := make([]*TypeDescriptor, len(exprs))
	for i, e := range exprs {
		out[i] = ResolveName(e, scope)
	}
	return out
}

// unionOf builds a Union, collapsing the two-alternative X|null form into
// Optional(X). Declaration order of the alternatives is preserved.
func unionOf(alts []*TypeDescriptor) *TypeDescriptor {
	if len(alts) == 1 {
		return alts[0]
	}
	if len(alts) == 2 {
		if alts[1].Kind == KindNull {
			return &TypeDescriptor{Kind: KindOptional, Elem: alts[0]}
		}
		if alts[0].Kind == KindNull {
			return &TypeDescriptor{Kind: KindOptional, Elem: alts[1]}
		}
	}
	return &TypeDescriptor{Kind: KindUnion, Alts: alts}
}

func resolveGeneric(head string, args []string, raw string, scope *Scope) *TypeDescriptor {
	one := func() *TypeDescriptor {
		if len(args) >= 1 {
			return ResolveName(args[0], scope)
		}
		return &TypeDescriptor{Kind: KindAny}
	}
	switch head {
	case "list", "sequence":
		return &TypeDescriptor{Kind: KindList, Elem: one()}
	case "set", "frozenset":
		return &TypeDescriptor{Kind: KindSet, Elem: one()}
	case "dict", "map", "mapping":
		key, value := &TypeDescriptor{Kind: KindAny}, &TypeDescriptor{Kind: KindAny}
		if len(args) == 2 {
			key = ResolveName(args[0], scope)
			value = ResolveName(args[1], scope)
		}
		return &TypeDescriptor{Kind: KindMapping, Key: key, Value: value}
	case "optional":
		return &TypeDescriptor{Kind: KindOptional, Elem: one()}
	case "union":
		return unionOf(resolveAll(args, scope))
	case "tuple":
		if len(args) == 2 && strings.TrimSpace(args[1]) == "..." {
			return &TypeDescriptor{Kind: KindTuple, Elem: one(), Variadic: true}
		}
		if len(args) == 1 {
			// Length-one tuple types broadcast, same as a trailing ellipsis.
			return &TypeDescriptor{Kind: KindTuple, Elem: one(), Variadic: true}
		}
		return &TypeDescriptor{Kind: KindTuple, Alts: resolveAll(args, scope)}
	default:
		return &TypeDescriptor{Kind: KindUnresolved, Name: raw}
	}
}

func resolveBareName(expr string, scope *Scope) *TypeDescriptor {
	switch strings.ToLower(expr) {
	case "str", "string", "bytes", "text":
		return &TypeDescriptor{Kind: KindString}
	case "int", "integer", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return &TypeDescriptor{Kind: KindInteger}
	case "float", "float32", "float64", "number", "double":
		return &TypeDescriptor{Kind: KindNumber}
	case "bool", "boolean":
		return &TypeDescriptor{Kind: KindBoolean}
	case "none", "nonetype", "null", "nil":
		return &TypeDescriptor{Kind: KindNull}
	case "any", "object":
		return &TypeDescriptor{Kind: KindAny}
	case "list", "sequence":
		return &TypeDescriptor{Kind: KindList, Elem: &TypeDescriptor{Kind: KindAny}}
	case "set", "frozenset":
		return &TypeDescriptor{Kind: KindSet, Elem: &TypeDescriptor{Kind: KindAny}}
	case "dict", "map", "mapping":
		return &TypeDescriptor{Kind: KindMapping, Key: &TypeDescriptor{Kind: KindAny}, Value: &TypeDescriptor{Kind: KindAny}}
	case "tuple":
		return &TypeDescriptor{Kind: KindTuple, Elem: &TypeDescriptor{Kind: KindAny}, Variadic: true}
	}
	if d, ok := scope.Lookup(expr); ok {
		return d
	}
	return &TypeDescriptor{Kind: KindRef, Name: expr}
}

// splitTopLevel splits expr at sep occurrences outside any bracket pair.
func splitTopLevel(expr string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(expr[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(expr[start:]))
	return parts
}

// matchBracket returns the index of the ']' matching the '[' at open.
func matchBracket(expr string, open int) int {
	depth := 0
	for i := open; i < len(expr); i++ {
		switch expr[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
