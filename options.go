package funcall

import "log/slog"

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	validate      bool
	strict        bool
	recoverPanics bool
	logger        *slog.Logger
	builder       *Builder
}

// WithValidation toggles structural schema validation of arguments before
// every invocation. Enabled by default.
func WithValidation(enabled bool) RegistryOption {
	return func(o *registryOptions) { o.validate = enabled }
}

// WithStrict toggles strict argument reconstruction. In strict mode (the
// default) any value that cannot be converted to its declared type aborts
// the call; in non-strict mode the failure is logged and the value skipped.
func WithStrict(enabled bool) RegistryOption {
	return func(o *registryOptions) { o.strict = enabled }
}

// WithRecoverPanics toggles conversion of panics in callables into
// invocation errors. Enabled by default.
func WithRecoverPanics(enabled bool) RegistryOption {
	return func(o *registryOptions) { o.recoverPanics = enabled }
}

// WithLogger sets the registry logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) { o.logger = logger }
}

// WithSchemaBuilder sets the schema builder the registry uses for
// validation and for Schemas. Defaults to a fresh NewBuilder().
func WithSchemaBuilder(b *Builder) RegistryOption {
	return func(o *registryOptions) { o.builder = b }
}

// CallOption overrides registry behavior for a single invocation.
type CallOption func(*callOptions)

type callOptions struct {
	validate *bool
	strict   *bool
	scope    *Scope
}

// WithValidate overrides schema validation for one call.
func WithValidate(enabled bool) CallOption {
	return func(o *callOptions) { o.validate = &enabled }
}

// WithNonStrict makes one call tolerate unconvertible argument values,
// logging and skipping them instead of failing.
func WithNonStrict() CallOption {
	return func(o *callOptions) { f := false; o.strict = &f }
}

// WithCallScope resolves named type references against scope for one call
// instead of the callable's own scope.
func WithCallScope(scope *Scope) CallOption {
	return func(o *callOptions) { o.scope = scope }
}

// BuilderOption configures schema generation.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	descriptions  bool
	fullDocstring bool
	responses     bool
	logger        *slog.Logger
}

// WithoutDescriptions omits all description strings from generated schemas.
func WithoutDescriptions() BuilderOption {
	return func(o *builderOptions) { o.descriptions = false }
}

// WithFullDocstring uses the entire documentation text as the callable
// description instead of only its first paragraph.
func WithFullDocstring() BuilderOption {
	return func(o *builderOptions) { o.fullDocstring = true }
}

// WithoutResponses omits the responses section from generated schemas.
func WithoutResponses() BuilderOption {
	return func(o *builderOptions) { o.responses = false }
}

// WithBuilderLogger sets the logger used for schema generation warnings.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(o *builderOptions) { o.logger = logger }
}
