package testutil

import "github.com/skosovsky/funcall"

// NewTestRegistry returns a Registry with validation and panic recovery
// enabled, suitable for tests.
func NewTestRegistry(callables ...funcall.Callable) *funcall.Registry {
	reg := funcall.NewRegistry(
		funcall.WithValidation(true),
		funcall.WithRecoverPanics(true),
	)
	for _, c := range callables {
		reg.Register(c)
	}
	return reg
}
