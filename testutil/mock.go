// Package testutil provides test helpers for funcall (e.g. MockCallable).
package testutil

import (
	"context"

	"github.com/skosovsky/funcall"
)

// MockCallable is a configurable Callable implementation for tests.
type MockCallable struct {
	NameVal     string
	DocVal      string
	ParamsVal   []funcall.ParameterInfo
	ReturnVal   *funcall.TypeDescriptor
	Constructor bool
	ScopeVal    *funcall.Scope
	CallFn      func(ctx context.Context, args map[string]any) (any, error)
}

// Name returns the callable name.
func (m *MockCallable) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Doc returns the documentation text.
func (m *MockCallable) Doc() string {
	return m.DocVal
}

// Parameters returns the configured parameter list (or none).
func (m *MockCallable) Parameters() []funcall.ParameterInfo {
	return m.ParamsVal
}

// ReturnType returns the configured return descriptor.
func (m *MockCallable) ReturnType() *funcall.TypeDescriptor {
	return m.ReturnVal
}

// IsConstructor reports whether the mock poses as a constructor.
func (m *MockCallable) IsConstructor() bool {
	return m.Constructor
}

// Scope returns the configured scope (or an empty one).
func (m *MockCallable) Scope() *funcall.Scope {
	if m.ScopeVal != nil {
		return m.ScopeVal
	}
	return funcall.NewScope()
}

// Call runs CallFn if set, otherwise returns nil.
func (m *MockCallable) Call(ctx context.Context, args map[string]any) (any, error) {
	if m.CallFn != nil {
		return m.CallFn(ctx, args)
	}
	return nil, nil
}

// Ensure MockCallable implements Callable.
var _ funcall.Callable = (*MockCallable)(nil)
