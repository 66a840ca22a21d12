package funcall

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Document is the externally visible schema of one callable. It is built
// once per callable, never mutated afterwards, and safe to cache and share.
type Document struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	Responses   map[string]any `json:"responses,omitempty"`
}

// AsMap renders the document as a plain map (e.g. for OpenAPI assembly).
func (d *Document) AsMap() map[string]any {
	out := map[string]any{"name": d.Name, "parameters": d.Parameters}
	if d.Description != "" {
		out["description"] = d.Description
	}
	if d.Responses != nil {
		out["responses"] = d.Responses
	}
	return out
}

// Builder derives schema documents from callables. Output is memoized in a
// side table keyed by callable identity: the schema of a fixed callable is
// pure, so repeated builds return the same immutable Document.
type Builder struct {
	mu    sync.Mutex
	cache map[Callable]*builtSchema
	opts  builderOptions
}

type builtSchema struct {
	doc      *Document
	resolved *jsonschema.Resolved
	compiled bool
}

// NewBuilder creates a Builder. By default descriptions and response
// schemas are included and the short description is used.
func NewBuilder(opts ...BuilderOption) *Builder {
	o := builderOptions{descriptions: true, responses: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Builder{cache: make(map[Callable]*builtSchema), opts: o}
}

// Schema returns the memoized schema document for c, building it on first
// use. It never fails: unresolvable pieces degrade to empty fragments.
func (b *Builder) Schema(c Callable) *Document {
	return b.entry(c).doc
}

// ParameterSchema returns the JSON-Schema object describing c's parameters.
func (b *Builder) ParameterSchema(c Callable) map[string]any {
	return b.entry(c).doc.Parameters
}

// ResponseSchema returns the responses section for c, or nil when the
// callable has neither a return schema nor documented return text.
func (b *Builder) ResponseSchema(c Callable) map[string]any {
	return b.entry(c).doc.Responses
}

func (b *Builder) entry(c Callable) *builtSchema {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.cache[c]; ok {
		return e
	}
	e := &builtSchema{doc: b.build(c)}
	b.cache[c] = e
	return e
}

// ValidateArguments structurally validates already-parsed arguments against
// c's parameter schema. The compiled validator is memoized alongside the
// document. A schema that fails to compile disables validation for that
// callable (logged once) rather than failing every call.
func (b *Builder) ValidateArguments(c Callable, args any) error {
	e := b.entry(c)
	b.mu.Lock()
	if !e.compiled {
		e.compiled = true
		resolved, err := compileSchema(e.doc.Parameters)
		if err != nil {
			b.opts.logger.Warn("parameter schema did not compile, validation disabled",
				"function", c.Name(), "error", err)
		} else {
			e.resolved = resolved
		}
	}
	resolved := e.resolved
	b.mu.Unlock()
	if resolved == nil {
		return nil
	}
	return resolved.Validate(args)
}

// compileSchema turns a raw schema map into a resolved validator. The map is
// round-tripped through JSON and never mutated.
func compileSchema(schemaMap map[string]any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

func (b *Builder) build(c Callable) *Document {
	parsed := ParseDocstring(c.Doc())
	doc := &Document{
		Name:       c.Name(),
		Parameters: b.buildParameters(c, parsed),
	}
	if b.opts.descriptions {
		desc := parsed.Short
		if b.opts.fullDocstring && parsed.Long != "" {
			desc += "\n" + parsed.Long
		}
		doc.Description = desc
	}
	if b.opts.responses && !c.IsConstructor() {
		doc.Responses = b.buildResponses(c, parsed)
	}
	return doc
}

func (b *Builder) buildParameters(c Callable, parsed *Docstring) map[string]any {
	scope := c.Scope()
	props := make(map[string]any)
	var required []string

	for _, p := range c.Parameters() {
		dp, _ := parsed.Param(p.Name)

		d := p.Type
		if d == nil {
			// Documentation-declared type is the fallback when the
			// signature carries none.
			if dp.TypeName != "" {
				d = ResolveName(dp.TypeName, scope)
			} else {
				d = &TypeDescriptor{Kind: KindAny}
			}
		}

		frag := fragmentFor(d, scope, nil)
		if b.opts.descriptions && dp.Description != "" {
			frag["description"] = dp.Description
		}
		if len(p.Enum) > 0 {
			frag["enum"] = p.Enum
		}

		// Requiredness comes from the signature alone; the documentation
		// may claim optionality without changing it.
		if !p.HasDefault {
			required = append(required, p.Name)
		}

		def, hasDef := p.Default, p.HasDefault
		if !hasDef && dp.HasDefault {
			// Documented literal default, schema-default purposes only.
			if v, err := Reconstruct(d, dp.Default, scope); err == nil {
				def, hasDef = v, true
			}
		}
		if hasDef && def != nil {
			b.emitDefault(frag, d, def, c.Name(), p.Name)
		}

		props[p.Name] = frag
	}

	params := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		params["required"] = required
	}
	return params
}

// emitDefault sets the schema-level default iff the default value's runtime
// type matches the declared descriptor. A mismatch is a design wart in the
// callable, reported as a warning, never an error.
func (b *Builder) emitDefault(frag map[string]any, d *TypeDescriptor, def any, fn, param string) {
	target := d
	if target.Kind == KindOptional {
		target = target.Elem
	}
	if target.Kind == KindAny || target.Kind == KindUnresolved || target.Kind == KindRef {
		return
	}
	if !typeMatchesValue(target, def) {
		b.opts.logger.Warn("default value does not match annotation",
			"function", fn, "parameter", param, "default", def, "annotation", d.String())
		return
	}
	frag["default"] = def
}

func (b *Builder) buildResponses(c Callable, parsed *Docstring) map[string]any {
	ret := c.ReturnType()
	if ret == nil && parsed.Returns != nil && parsed.Returns.TypeName != "" {
		ret = ResolveName(parsed.Returns.TypeName, c.Scope())
	}

	var schema map[string]any
	if ret != nil {
		schema = fragmentFor(ret, c.Scope(), nil)
	}

	var desc string
	if parsed.Returns != nil {
		desc = parsed.Returns.Description
	}

	response := make(map[string]any)
	if len(schema) > 0 {
		response["content"] = map[string]any{
			"application/json": map[string]any{"schema": schema},
		}
	}
	// A content schema needs at least a minimal "OK" description; without
	// either, the whole section is omitted.
	if (desc != "" && b.opts.descriptions) || len(schema) > 0 {
		if !b.opts.descriptions || desc == "" {
			desc = "OK"
		}
		response["description"] = desc
	}
	if len(response) == 0 {
		return nil
	}
	return map[string]any{"200": response}
}

var primitiveTypeNames = map[Kind]string{
	KindString:  "string",
	KindNumber:  "number",
	KindInteger: "integer",
	KindBoolean: "boolean",
	KindNull:    "null",
}

// fragmentFor maps one descriptor to its JSON-Schema fragment. The visiting
// set breaks cycles: a composite reached again through a forward reference
// renders as the empty schema instead of expanding forever.
func fragmentFor(d *TypeDescriptor, scope *Scope, visiting map[string]bool) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	if d.Kind == KindRef {
		d = deref(d, scope)
	}

	switch d.Kind {
	case KindAny, KindUnresolved:
		return map[string]any{}

	case KindString, KindNumber, KindInteger, KindBoolean, KindNull:
		return map[string]any{"type": primitiveTypeNames[d.Kind]}

	case KindOptional:
		return unionFragment([]*TypeDescriptor{d.Elem, {Kind: KindNull}}, scope, visiting)

	case KindUnion:
		return unionFragment(d.Alts, scope, visiting)

	case KindList:
		return map[string]any{"type": "array", "items": fragmentFor(d.Elem, scope, visiting)}

	case KindSet:
		return map[string]any{
			"type":        "array",
			"items":       fragmentFor(d.Elem, scope, visiting),
			"uniqueItems": true,
		}

	case KindTuple:
		if d.Variadic {
			return map[string]any{"type": "array", "items": fragmentFor(d.Elem, scope, visiting)}
		}
		items := make([]any, len(d.Alts))
		for i, a := range d.Alts {
			items[i] = fragmentFor(a, scope, visiting)
		}
		n := len(d.Alts)
		return map[string]any{
			"type": "array", "prefixItems": items, "minItems": n, "maxItems": n,
		}

	case KindMapping:
		return map[string]any{
			"type":                 "object",
			"additionalProperties": fragmentFor(d.Value, scope, visiting),
		}

	case KindComposite:
		if d.Name != "" {
			if visiting[d.Name] {
				return map[string]any{}
			}
			if visiting == nil {
				visiting = make(map[string]bool)
			}
			visiting[d.Name] = true
			defer delete(visiting, d.Name)
		}
		props := make(map[string]any, len(d.Fields))
		var required []string
		for _, f := range d.Fields {
			frag := fragmentFor(f.Type, scope, visiting)
			if f.Description != "" {
				frag["description"] = f.Description
			}
			if len(f.Enum) > 0 {
				frag["enum"] = f.Enum
			}
			if f.HasDefault && f.Default != nil {
				frag["default"] = f.Default
			}
			props[f.Name] = frag
			if fieldRequired(f) {
				required = append(required, f.Name)
			}
		}
		obj := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			obj["required"] = required
		}
		return obj
	}
	return map[string]any{}
}

// unionFragment renders a union as a multi-type fragment when every
// alternative is a bare primitive, else as anyOf.
func unionFragment(alts []*TypeDescriptor, scope *Scope, visiting map[string]bool) map[string]any {
	names := make([]any, 0, len(alts))
	primitive := true
	for _, a := range alts {
		r := a
		if r.Kind == KindRef {
			r = deref(r, scope)
		}
		name, ok := primitiveTypeNames[r.Kind]
		if !ok {
			primitive = false
			break
		}
		names = append(names, name)
	}
	if primitive {
		return map[string]any{"type": names}
	}
	anyOf := make([]any, len(alts))
	for i, a := range alts {
		anyOf[i] = fragmentFor(a, scope, visiting)
	}
	return map[string]any{"anyOf": anyOf}
}
