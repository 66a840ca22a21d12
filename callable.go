package funcall

import (
	"context"
	"fmt"
	"reflect"
)

// Callable is the capability interface every adapter implements: enough
// introspection for schema derivation plus named-argument invocation. The
// schema builder and the reconstructor only ever see this interface, never
// the underlying reflection mechanics.
type Callable interface {
	Name() string
	// Doc returns the raw documentation text ("" when undocumented).
	Doc() string
	// Parameters returns the ordered parameter list. A parameter is required
	// iff HasDefault is false, regardless of what the documentation claims.
	Parameters() []ParameterInfo
	// ReturnType returns the declared return descriptor, or nil when the
	// callable declares none.
	ReturnType() *TypeDescriptor
	// IsConstructor reports whether the callable builds an instance of a
	// composite type. Constructors get no response schema and skip
	// structural argument validation.
	IsConstructor() bool
	// Scope returns the name-resolution scope snapshot taken at construction.
	Scope() *Scope
	// Call invokes the callable with reconstructed arguments bound by name.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ParameterInfo describes one parameter of a Callable.
type ParameterInfo struct {
	Name        string
	Description string
	Type        *TypeDescriptor
	Default     any
	HasDefault  bool
	Enum        []any
}

type funcOptions struct {
	doc        string
	paramNames []string
	defaults   map[string]any
	scope      *Scope
}

// FuncOption configures an adapter built by NewFunc, NewStruct, NewMethod,
// or NewDynamicFunc.
type FuncOption func(*funcOptions)

// WithDoc attaches documentation text. Parameter descriptions, docstring
// type hints, and the short description all come from here.
func WithDoc(doc string) FuncOption {
	return func(o *funcOptions) { o.doc = doc }
}

// WithParams supplies parameter names in declaration order. Go reflection
// does not expose names, so they come from here or from the docstring's
// Args block (in that precedence).
func WithParams(names ...string) FuncOption {
	return func(o *funcOptions) { o.paramNames = names }
}

// WithDefault declares a default value for a parameter, making it optional.
func WithDefault(name string, value any) FuncOption {
	return func(o *funcOptions) {
		if o.defaults == nil {
			o.defaults = make(map[string]any)
		}
		o.defaults[name] = value
	}
}

// WithFuncScope sets the name-resolution scope. Without it every adapter
// snapshots a fresh scope, populated by the types its own signature pulls in.
func WithFuncScope(s *Scope) FuncOption {
	return func(o *funcOptions) { o.scope = s }
}

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errType = reflect.TypeOf((*error)(nil)).Elem()

// Func adapts a free Go function (or bound method, via NewMethod).
type Func struct {
	name       string
	doc        string
	params     []ParameterInfo
	ret        *TypeDescriptor
	scope      *Scope
	fn         reflect.Value
	takesCtx   bool
	returnsErr bool
	returnsVal bool
	variadic   bool
}

// NewFunc builds a Callable from a Go function. The first parameter may be a
// context.Context, which is excluded from the schema and filled at call time.
// The last return may be an error. Parameter names come from WithParams or,
// failing that, from the docstring's documented parameter order; a count
// mismatch is an error.
func NewFunc(name string, fn any, opts ...FuncOption) (*Func, error) {
	var o funcOptions
	for _, opt := range opts {
		opt(&o)
	}
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("funcall: %q is not a function", name)
	}
	return newFunc(name, fv, o)
}

// NewMethod builds a Callable from a method bound to receiver. The adapter
// itself realizes the (method, receiver) identity: one adapter per binding.
// A value receiver reaches pointer-receiver methods through an addressable
// copy; that copy is the binding's state from then on.
func NewMethod(receiver any, method string, opts ...FuncOption) (*Func, error) {
	var o funcOptions
	for _, opt := range opts {
		opt(&o)
	}
	rv := reflect.ValueOf(receiver)
	if !rv.IsValid() {
		return nil, fmt.Errorf("funcall: nil receiver for method %q", method)
	}
	mv := rv.MethodByName(method)
	if !mv.IsValid() && rv.Kind() != reflect.Pointer {
		pv := reflect.New(rv.Type())
		pv.Elem().Set(rv)
		mv = pv.MethodByName(method)
	}
	if !mv.IsValid() {
		return nil, fmt.Errorf("funcall: %T has no method %q", receiver, method)
	}
	return newFunc(method, mv, o)
}

func newFunc(name string, fv reflect.Value, o funcOptions) (*Func, error) {
	t := fv.Type()
	scope := o.scope
	if scope == nil {
		scope = NewScope()
	}

	f := &Func{
		name:     name,
		doc:      o.doc,
		scope:    scope,
		fn:       fv,
		variadic: t.IsVariadic(),
	}

	start := 0
	if t.NumIn() > 0 && t.In(0) == ctxType {
		f.takesCtx = true
		start = 1
	}
	numParams := t.NumIn() - start

	names := o.paramNames
	if names == nil {
		doc := ParseDocstring(o.doc)
		for _, p := range doc.Params {
			names = append(names, p.Name)
		}
	}
	if len(names) != numParams {
		return nil, fmt.Errorf("funcall: %q takes %d parameters but %d names were supplied",
			name, numParams, len(names))
	}

	for i := 0; i < numParams; i++ {
		// For a variadic function the tail is a slice type, exposed as a list.
		p := ParameterInfo{Name: names[i], Type: ResolveType(t.In(start+i), scope)}
		if def, ok := o.defaults[p.Name]; ok {
			p.Default = def
			p.HasDefault = true
		}
		f.params = append(f.params, p)
	}
	for pname := range o.defaults {
		found := false
		for _, p := range f.params {
			found = found || p.Name == pname
		}
		if !found {
			return nil, fmt.Errorf("funcall: %q has no parameter %q to default", name, pname)
		}
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errType {
			f.returnsErr = true
		} else {
			f.returnsVal = true
			f.ret = ResolveType(t.Out(0), scope)
		}
	case 2:
		if t.Out(1) != errType {
			return nil, fmt.Errorf("funcall: %q second return value must be error", name)
		}
		f.returnsErr = true
		f.returnsVal = true
		f.ret = ResolveType(t.Out(0), scope)
	default:
		return nil, fmt.Errorf("funcall: %q returns %d values, want at most (T, error)", name, t.NumOut())
	}
	return f, nil
}

func (f *Func) Name() string                 { return f.name }
func (f *Func) Doc() string                  { return f.doc }
func (f *Func) ReturnType() *TypeDescriptor  { return f.ret }
func (f *Func) IsConstructor() bool          { return false }
func (f *Func) Scope() *Scope                { return f.scope }
func (f *Func) Parameters() []ParameterInfo  { return append([]ParameterInfo(nil), f.params...) }

// Call binds args by name and invokes the function. Missing parameters fall
// back to declared defaults; a missing parameter without a default is an
// error (binding is expected to have filtered this already).
func (f *Func) Call(ctx context.Context, args map[string]any) (any, error) {
	t := f.fn.Type()
	in := make([]reflect.Value, 0, t.NumIn())
	if f.takesCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	offset := len(in)
	for i, p := range f.params {
		v, ok := args[p.Name]
		if !ok {
			if !p.HasDefault {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			}
			v = p.Default
		}
		rv, err := coerceValue(v, t.In(offset+i))
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		in = append(in, rv)
	}

	var out []reflect.Value
	if f.variadic {
		out = f.fn.CallSlice(in)
	} else {
		out = f.fn.Call(in)
	}

	var result any
	if f.returnsVal {
		result = out[0].Interface()
	}
	if f.returnsErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return result, errv.Interface().(error)
		}
	}
	return result, nil
}

// StructType adapts a struct type as a constructor callable: fields become
// parameters and Call builds an instance.
type StructType struct {
	name  string
	doc   string
	desc  *TypeDescriptor
	scope *Scope
}

// NewStruct builds a constructor Callable from a struct instance's type.
// Field metadata comes from struct tags: json (name), description, default,
// enum. A field with a default tag is optional.
func NewStruct(instance any, opts ...FuncOption) (*StructType, error) {
	var o funcOptions
	for _, opt := range opts {
		opt(&o)
	}
	t := reflect.TypeOf(instance)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("funcall: NewStruct wants a struct, got %T", instance)
	}
	scope := o.scope
	if scope == nil {
		scope = NewScope()
	}
	d := ResolveType(t, scope)
	name := t.Name()
	if name == "" {
		name = "anonymous"
	}
	return &StructType{name: name, doc: o.doc, desc: d, scope: scope}, nil
}

func (s *StructType) Name() string                { return s.name }
func (s *StructType) Doc() string                 { return s.doc }
func (s *StructType) ReturnType() *TypeDescriptor { return nil }
func (s *StructType) IsConstructor() bool         { return true }
func (s *StructType) Scope() *Scope               { return s.scope }

// Descriptor returns the composite descriptor of the struct type.
func (s *StructType) Descriptor() *TypeDescriptor { return s.desc }

func (s *StructType) Parameters() []ParameterInfo {
	params := make([]ParameterInfo, len(s.desc.Fields))
	for i, f := range s.desc.Fields {
		params[i] = ParameterInfo{
			Name:        f.Name,
			Description: f.Description,
			Type:        f.Type,
			Default:     f.Default,
			HasDefault:  f.HasDefault,
			Enum:        f.Enum,
		}
		// Optional fields without an explicit default still default to nil.
		if !f.HasDefault && f.Type != nil && f.Type.Kind == KindOptional {
			params[i].HasDefault = true
		}
	}
	return params
}

// Call constructs an instance of the struct with args bound by field name.
func (s *StructType) Call(_ context.Context, args map[string]any) (any, error) {
	return buildComposite(s.desc, args)
}

// buildComposite instantiates a reflect-backed composite from named values.
// Shared by StructType.Call and composite reconstruction.
func buildComposite(d *TypeDescriptor, args map[string]any) (any, error) {
	if d.goType == nil || d.goType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("composite %q has no constructible type", d.Name)
	}
	known := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		known[f.Name] = true
	}
	for name := range args {
		if !known[name] {
			return nil, fmt.Errorf("unexpected field %q for %s", name, d.String())
		}
	}

	out := reflect.New(d.goType).Elem()
	for _, f := range d.Fields {
		v, ok := args[f.Name]
		if !ok {
			if !f.HasDefault {
				continue // zero value stands in; requiredness is enforced upstream
			}
			v = f.Default
		}
		fv := out.FieldByIndex(f.index)
		rv, err := coerceValue(v, fv.Type())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fv.Set(rv)
	}
	return out.Interface(), nil
}

// DynamicFunc adapts a handler whose parameter types come entirely from the
// docstring: the handler receives the reconstructed arguments as a map. This
// is the path for callables with no inspectable Go signature.
type DynamicFunc struct {
	name    string
	doc     string
	params  []ParameterInfo
	ret     *TypeDescriptor
	scope   *Scope
	handler func(ctx context.Context, args map[string]any) (any, error)
}

// NewDynamicFunc builds a Callable from a docstring and an untyped handler.
// Each documented parameter becomes a schema parameter; its declared type
// name is resolved through the scope (the docstring-fallback path). A
// documented default makes the parameter optional.
func NewDynamicFunc(
	name, doc string,
	handler func(ctx context.Context, args map[string]any) (any, error),
	opts ...FuncOption,
) (*DynamicFunc, error) {
	if handler == nil {
		return nil, fmt.Errorf("funcall: %q handler must not be nil", name)
	}
	o := funcOptions{doc: doc}
	for _, opt := range opts {
		opt(&o)
	}
	scope := o.scope
	if scope == nil {
		scope = NewScope()
	}

	f := &DynamicFunc{name: name, doc: o.doc, scope: scope, handler: handler}
	parsed := ParseDocstring(o.doc)
	for _, dp := range parsed.Params {
		p := ParameterInfo{Name: dp.Name, Description: dp.Description}
		if dp.TypeName != "" {
			p.Type = ResolveName(dp.TypeName, scope)
		} else {
			p.Type = &TypeDescriptor{Kind: KindAny}
		}
		if def, ok := o.defaults[dp.Name]; ok {
			p.Default = def
			p.HasDefault = true
		} else if dp.HasDefault {
			if v, err := Reconstruct(p.Type, dp.Default, scope); err == nil {
				p.Default = v
			} else {
				p.Default = dp.Default
			}
			p.HasDefault = true
		}
		f.params = append(f.params, p)
	}
	if parsed.Returns != nil && parsed.Returns.TypeName != "" {
		f.ret = ResolveName(parsed.Returns.TypeName, scope)
	}
	return f, nil
}

func (f *DynamicFunc) Name() string                { return f.name }
func (f *DynamicFunc) Doc() string                 { return f.doc }
func (f *DynamicFunc) ReturnType() *TypeDescriptor { return f.ret }
func (f *DynamicFunc) IsConstructor() bool         { return false }
func (f *DynamicFunc) Scope() *Scope               { return f.scope }
func (f *DynamicFunc) Parameters() []ParameterInfo {
	return append([]ParameterInfo(nil), f.params...)
}

func (f *DynamicFunc) Call(ctx context.Context, args map[string]any) (any, error) {
	return f.handler(ctx, args)
}

var (
	_ Callable = (*Func)(nil)
	_ Callable = (*StructType)(nil)
	_ Callable = (*DynamicFunc)(nil)
)
