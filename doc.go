// Package funcall bridges Go callables and LLM function calling: it derives
// JSON-Schema documents from function signatures and documentation, and turns
// JSON tool-call arguments back into fully typed Go values before invoking.
//
// # Overview
//
// LLMs see functions as schemas and produce calls as JSON. This package owns
// both directions of that bridge: NewFunc reflects over a Go function and its
// docstring to build a Callable, Builder renders the schema the model is
// shown, and Registry.Call parses, validates, reconstructs and binds the
// model's JSON arguments before calling the function and serializing the
// result.
//
// Pipeline: Go function + docstring → NewFunc (reflection + doc parsing) →
// Callable → Registry → Call (parse, validate, reconstruct, bind, call,
// marshal) → JSON result.
//
// # Key concepts
//
//   - Schema and reconstruction share one type model: the same TypeDescriptor
//     that renders a parameter's schema also rebuilds its typed value from
//     JSON, so what the model sees is exactly what the binding accepts.
//   - Closed error taxonomy: every pipeline failure wraps one of five
//     sentinels (ErrNotFound, ErrInvalidJSON, ErrSchemaMismatch,
//     ErrSignatureMismatch, ErrInvocationFailed), so callers can route a
//     failure back to the model for self-correction with errors.Is.
//   - Named types resolve through an explicit Scope, including recursive
//     composites, instead of any global type universe.
//
// # Example
//
//	func Add(a, b float64) float64 { return a + b }
//
//	reg := funcall.NewRegistry()
//	err := reg.RegisterFunc("add", Add, funcall.WithDoc(`Add two numbers.
//
//	Args:
//	    a (float): First number.
//	    b (float): Second number.
//	`))
//	if err != nil { ... }
//	out, err := reg.Call(ctx, "add", []byte(`{"a": 1, "b": 2}`))
//	// out == "3"
package funcall
