package funcall

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Kind discriminates the TypeDescriptor variants.
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindNull
	KindOptional
	KindUnion
	KindList
	KindTuple
	KindSet
	KindMapping
	KindComposite
	KindRef
	KindUnresolved
)

var kindNames = [...]string{
	KindAny: "any", KindString: "string", KindNumber: "number", KindInteger: "integer",
	KindBoolean: "boolean", KindNull: "null", KindOptional: "optional", KindUnion: "union",
	KindList: "list", KindTuple: "tuple", KindSet: "set", KindMapping: "mapping",
	KindComposite: "composite", KindRef: "ref", KindUnresolved: "unresolved",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// TypeDescriptor is the canonical representation of a value's expected shape,
// independent of how it was declared (Go type, docstring type name, or both).
// Descriptors are built once and treated as immutable afterwards.
type TypeDescriptor struct {
	Kind     Kind
	Name     string            // composite name, ref target, or raw unresolved text
	Elem     *TypeDescriptor   // Optional / List / Set / variadic Tuple element
	Key      *TypeDescriptor   // Mapping key
	Value    *TypeDescriptor   // Mapping value
	Alts     []*TypeDescriptor // Union alternatives or fixed Tuple elements, declaration order
	Variadic bool              // Tuple: Elem repeats to match the runtime length
	Fields   []Field           // Composite fields, declaration order

	goType reflect.Type // underlying Go type when resolved via reflection, else nil
}

// Field is one named slot of a Composite descriptor. Order is significant for
// listing; matching during reconstruction is always by Name.
type Field struct {
	Name        string
	Type        *TypeDescriptor
	Description string
	Default     any
	HasDefault  bool
	Enum        []any

	index []int // struct field index for reflect-backed composites
}

// String renders the descriptor for error messages ("list[integer]" etc).
func (d *TypeDescriptor) String() string {
	if d == nil {
		return "any"
	}
	switch d.Kind {
	case KindOptional:
		return "optional[" + d.Elem.String() + "]"
	case KindUnion:
		parts := make([]string, len(d.Alts))
		for i, a := range d.Alts {
			parts[i] = a.String()
		}
		return "union[" + strings.Join(parts, ", ") + "]"
	case KindList:
		return "list[" + d.Elem.String() + "]"
	case KindSet:
		return "set[" + d.Elem.String() + "]"
	case KindMapping:
		return "mapping[" + d.Key.String() + ", " + d.Value.String() + "]"
	case KindTuple:
		if d.Variadic {
			return "tuple[" + d.Elem.String() + ", ...]"
		}
		parts := make([]string, len(d.Alts))
		for i, a := range d.Alts {
			parts[i] = a.String()
		}
		return "tuple[" + strings.Join(parts, ", ") + "]"
	case KindComposite, KindRef, KindUnresolved:
		if d.Name != "" {
			return d.Name
		}
		return d.Kind.String()
	default:
		return d.Kind.String()
	}
}

// GoType returns the Go type the descriptor was resolved from, or nil when the
// descriptor came from a type-name expression.
func (d *TypeDescriptor) GoType() reflect.Type {
	if d == nil {
		return nil
	}
	return d.goType
}

// Scope is an explicit name-to-descriptor table used to resolve forward
// references and docstring type names. It replaces any ambient namespace
// lookup: resolution only ever sees what was added here. A nil *Scope is
// valid and resolves nothing.
type Scope struct {
	mu    sync.RWMutex
	types map[string]*TypeDescriptor
}

// NewScope returns an empty Scope.
func NewScope() *Scope {
	return &Scope{types: make(map[string]*TypeDescriptor)}
}

// Add registers a descriptor under name, replacing any previous entry.
func (s *Scope) Add(name string, d *TypeDescriptor) {
	if s == nil || name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.types == nil {
		s.types = make(map[string]*TypeDescriptor)
	}
	s.types[name] = d
}

// AddType resolves the Go type of instance and registers it under name.
// Named struct types are additionally registered under their own type name,
// which is what makes self-referential types resolvable.
func (s *Scope) AddType(name string, instance any) *TypeDescriptor {
	d := ResolveType(reflect.TypeOf(instance), s)
	s.Add(name, d)
	return d
}

// Lookup returns the descriptor registered under name.
func (s *Scope) Lookup(name string) (*TypeDescriptor, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.types[name]
	return d, ok
}

// Clone returns a snapshot copy of the scope. Descriptors are shared.
func (s *Scope) Clone() *Scope {
	out := NewScope()
	if s == nil {
		return out
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, d := range s.types {
		out.types[name] = d
	}
	return out
}

// ResolveType normalizes a Go type into a descriptor tree. It never fails:
// shapes that cannot be carried over JSON (channels, funcs) degrade to
// Unresolved. Named struct types met during the walk register themselves in
// scope; a struct type referenced while its own resolution is still in
// progress becomes a lazy Ref node instead of expanding forever.
func ResolveType(t reflect.Type, scope *Scope) *TypeDescriptor {
	r := &typeResolver{scope: scope, inProgress: make(map[reflect.Type]bool)}
	return r.resolve(t)
}

type typeResolver struct {
	scope      *Scope
	inProgress map[reflect.Type]bool
}

func (r *typeResolver) resolve(t reflect.Type) *TypeDescriptor {
	if t == nil {
		return &TypeDescriptor{Kind: KindAny}
	}
	switch t.Kind() {
	case reflect.String:
		return &TypeDescriptor{Kind: KindString, goType: t}
	case reflect.Bool:
		return &TypeDescriptor{Kind: KindBoolean, goType: t}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &TypeDescriptor{Kind: KindInteger, goType: t}
	case reflect.Float32, reflect.Float64:
		return &TypeDescriptor{Kind: KindNumber, goType: t}
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return &TypeDescriptor{Kind: KindAny, goType: t}
		}
		return &TypeDescriptor{Kind: KindUnresolved, Name: t.String(), goType: t}
	case reflect.Pointer:
		return &TypeDescriptor{Kind: KindOptional, Elem: r.resolve(t.Elem()), goType: t}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			// []byte marshals as a JSON string.
			return &TypeDescriptor{Kind: KindString, goType: t}
		}
		return &TypeDescriptor{Kind: KindList, Elem: r.resolve(t.Elem()), goType: t}
	case reflect.Array:
		elem := r.resolve(t.Elem())
		alts := make([]*TypeDescriptor, t.Len())
		for i := range alts {
			alts[i] = elem
		}
		return &TypeDescriptor{Kind: KindTuple, Alts: alts, goType: t}
	case reflect.Map:
		if t.Elem() == reflect.TypeOf(struct{}{}) {
			return &TypeDescriptor{Kind: KindSet, Elem: r.resolve(t.Key()), goType: t}
		}
		return &TypeDescriptor{Kind: KindMapping, Key: r.resolve(t.Key()), Value: r.resolve(t.Elem()), goType: t}
	case reflect.Struct:
		return r.resolveStruct(t)
	default:
		return &TypeDescriptor{Kind: KindUnresolved, Name: t.String(), goType: t}
	}
}

func (r *typeResolver) resolveStruct(t reflect.Type) *TypeDescriptor {
	name := t.Name()
	if name != "" {
		if r.inProgress[t] {
			return &TypeDescriptor{Kind: KindRef, Name: name}
		}
		if d, ok := r.scope.Lookup(name); ok && d.goType == t {
			return d
		}
		r.inProgress[t] = true
		defer delete(r.inProgress, t)
	}

	d := &TypeDescriptor{Kind: KindComposite, Name: name, goType: t}
	if name != "" {
		// Register before walking fields so nested Refs resolve later.
		r.scope.Add(name, d)
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		jsonName := strings.Split(sf.Tag.Get("json"), ",")[0]
		if jsonName == "-" {
			continue
		}
		if jsonName == "" {
			jsonName = sf.Name
		}
		ft := r.resolve(sf.Type)
		f := Field{
			Name:        jsonName,
			Type:        ft,
			Description: sf.Tag.Get("description"),
			index:       sf.Index,
		}
		if raw, ok := sf.Tag.Lookup("default"); ok {
			f.Default = parseTagLiteral(raw, ft)
			f.HasDefault = true
		}
		if enumStr := sf.Tag.Get("enum"); enumStr != "" {
			parts := strings.Split(enumStr, ",")
			f.Enum = make([]any, len(parts))
			for i, p := range parts {
				f.Enum[i] = parseTagLiteral(strings.TrimSpace(p), ft)
			}
		}
		d.Fields = append(d.Fields, f)
	}
	return d
}

// parseTagLiteral interprets a struct-tag literal against the field's
// descriptor so defaults and enum values carry their JSON-native type.
func parseTagLiteral(raw string, d *TypeDescriptor) any {
	target := d
	if target != nil && target.Kind == KindOptional {
		target = target.Elem
	}
	if target == nil {
		return raw
	}
	switch target.Kind {
	case KindInteger:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return int(n)
		}
	case KindNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case KindBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case KindNull:
		return nil
	}
	return raw
}

// deref resolves Ref nodes against scope. A Ref whose target is missing from
// the scope, or whose name chain loops back on itself, degrades to
// Unresolved rather than failing.
func deref(d *TypeDescriptor, scope *Scope) *TypeDescriptor {
	var seen map[string]bool
	for d != nil && d.Kind == KindRef {
		if seen[d.Name] {
			return &TypeDescriptor{Kind: KindUnresolved, Name: d.Name}
		}
		if seen == nil {
			seen = make(map[string]bool)
		}
		seen[d.Name] = true
		target, ok := scope.Lookup(d.Name)
		if !ok {
			return &TypeDescriptor{Kind: KindUnresolved, Name: d.Name}
		}
		d = target
	}
	return d
}
