package funcall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds named callables and drives the invocation pipeline:
// lookup, argument parsing, schema validation, typed reconstruction,
// binding, the call itself, and result serialization. Every failure maps
// to exactly one of the sentinel errors in errors.go.
type Registry struct {
	mu        sync.RWMutex
	callables map[string]Callable
	builder   *Builder
	opts      registryOptions
}

// NewRegistry creates an empty registry. Validation, strict reconstruction
// and panic recovery are all enabled by default.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{validate: true, strict: true, recoverPanics: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.builder == nil {
		o.builder = NewBuilder()
	}
	return &Registry{
		callables: make(map[string]Callable),
		builder:   o.builder,
		opts:      o,
	}
}

// Register adds c under its own name, replacing any previous registration.
func (r *Registry) Register(c Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callables[c.Name()]; ok {
		r.opts.logger.Warn("replacing registered function", "function", c.Name())
	}
	r.callables[c.Name()] = c
}

// RegisterFunc wraps fn as a Func callable and registers it.
func (r *Registry) RegisterFunc(name string, fn any, opts ...FuncOption) error {
	f, err := NewFunc(name, fn, opts...)
	if err != nil {
		return err
	}
	r.Register(f)
	return nil
}

// RegisterStruct exposes the struct type of v as a constructor callable.
func (r *Registry) RegisterStruct(v any, opts ...FuncOption) error {
	s, err := NewStruct(v, opts...)
	if err != nil {
		return err
	}
	r.Register(s)
	return nil
}

// Lookup returns the callable registered under name.
func (r *Registry) Lookup(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.callables[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callables))
	for name := range r.callables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Callables returns all registered callables ordered by name.
func (r *Registry) Callables() []Callable {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Callable, 0, len(names))
	for _, name := range names {
		out = append(out, r.callables[name])
	}
	return out
}

// Schemas returns the schema documents of all registered callables ordered
// by name.
func (r *Registry) Schemas() []*Document {
	callables := r.Callables()
	docs := make([]*Document, 0, len(callables))
	for _, c := range callables {
		docs = append(docs, r.builder.Schema(c))
	}
	return docs
}

// Builder returns the registry's schema builder.
func (r *Registry) Builder() *Builder { return r.builder }

// Call runs the full JSON-in, JSON-out pipeline: the callable is resolved,
// argsJSON is parsed, validated, reconstructed into typed values, bound,
// and the result serialized back to JSON. A result that cannot be
// serialized is wrapped as {"result": "<text rendering>"} rather than
// failing the call.
func (r *Registry) Call(ctx context.Context, name string, argsJSON []byte, opts ...CallOption) (string, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	// Resolution comes first: an unknown name reports as such even when
	// the arguments are also malformed.
	c, ok := r.Lookup(name)
	if !ok {
		return "", newCallError(ErrNotFound, fmt.Sprintf("%q", name))
	}

	var parsed any
	if err := json.Unmarshal(argsJSON, &parsed); err != nil {
		return "", newCallError(ErrInvalidJSON, err.Error())
	}

	result, err := r.invokeCallable(ctx, c, parsed, co)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(result)
	if err != nil {
		r.opts.logger.Warn("function result is not JSON serializable",
			"function", name, "error", err)
		out, _ = json.Marshal(map[string]string{"result": fmt.Sprint(result)})
	}
	return string(out), nil
}

// Invoke runs the pipeline on already-parsed arguments and returns the raw
// result value without serializing it.
func (r *Registry) Invoke(ctx context.Context, name string, args any, opts ...CallOption) (any, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	return r.invoke(ctx, name, args, co)
}

func (r *Registry) invoke(ctx context.Context, name string, args any, co callOptions) (any, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, newCallError(ErrNotFound, fmt.Sprintf("%q", name))
	}
	return r.invokeCallable(ctx, c, args, co)
}

func (r *Registry) invokeCallable(ctx context.Context, c Callable, args any, co callOptions) (any, error) {
	validate := r.opts.validate
	if co.validate != nil {
		validate = *co.validate
	}
	if validate {
		if c.IsConstructor() {
			r.opts.logger.Debug("schema validation skipped for constructor", "function", c.Name())
		} else if err := r.builder.ValidateArguments(c, args); err != nil {
			return nil, newCallError(ErrSchemaMismatch, err.Error())
		}
	}

	bound, err := r.bind(c, args, co)
	if err != nil {
		return nil, err
	}

	return r.call(ctx, c, bound)
}

// bind reconstructs every supplied argument into its declared type and
// fills in defaults for the rest. Unknown argument names and missing
// required parameters are signature mismatches.
func (r *Registry) bind(c Callable, args any, co callOptions) (map[string]any, error) {
	obj := map[string]any{}
	if args != nil {
		m, ok := asStringMap(args)
		if !ok {
			return nil, newCallError(ErrSignatureMismatch, "arguments must be a JSON object")
		}
		obj = m
	}

	strict := r.opts.strict
	if co.strict != nil {
		strict = *co.strict
	}
	scope := co.scope
	if scope == nil {
		scope = c.Scope()
	}

	params := c.Parameters()
	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[p.Name] = true
	}
	for name := range obj {
		if !known[name] {
			return nil, newCallError(ErrSignatureMismatch, fmt.Sprintf("unexpected argument %q", name))
		}
	}

	bound := make(map[string]any, len(params))
	for _, p := range params {
		raw, present := obj[p.Name]
		if present {
			v, err := reconstructValue(p.Type, raw, scope, strict, r.opts.logger)
			if err != nil {
				if strict {
					return nil, newCallError(ErrSignatureMismatch,
						fmt.Sprintf("argument %q: %v", p.Name, err))
				}
				r.opts.logger.Warn("dropping unconvertible argument",
					"function", c.Name(), "argument", p.Name, "error", err)
			} else {
				bound[p.Name] = v
				continue
			}
		}
		if p.HasDefault {
			bound[p.Name] = p.Default
			continue
		}
		if !present {
			return nil, newCallError(ErrSignatureMismatch,
				fmt.Sprintf("missing required argument %q", p.Name))
		}
	}
	return bound, nil
}

func (r *Registry) call(ctx context.Context, c Callable, bound map[string]any) (result any, err error) {
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				r.opts.logger.Error("panic during function call",
					"function", c.Name(), "panic", p)
				result, err = nil, newCallError(ErrInvocationFailed, "")
			}
		}()
	}
	result, callErr := c.Call(ctx, bound)
	if callErr != nil {
		r.opts.logger.Error("function call failed",
			"function", c.Name(), "error", callErr)
		return nil, newCallError(ErrInvocationFailed, "")
	}
	return result, nil
}
