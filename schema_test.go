package funcall

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFunc(t *testing.T, name string, fn any, opts ...FuncOption) *Func {
	t.Helper()
	f, err := NewFunc(name, fn, opts...)
	require.NoError(t, err)
	return f
}

func properties(t *testing.T, doc *Document) map[string]any {
	t.Helper()
	props, ok := doc.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	return props
}

func TestBuilder_Schema(t *testing.T) {
	f := mustFunc(t, "power", func(base, exp float64) float64 { return base * exp },
		WithDefault("exp", 2.0),
		WithDoc(`Raise base to exp.

Args:
    base (float): The base.
    exp (float): The exponent.

Returns:
    float: The result.
`))

	doc := NewBuilder().Schema(f)
	assert.Equal(t, "power", doc.Name)
	assert.Equal(t, "Raise base to exp.", doc.Description)

	props := properties(t, doc)
	base, ok := props["base"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", base["type"])
	assert.Equal(t, "The base.", base["description"])

	exp, ok := props["exp"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, exp["default"])

	// Required is exactly the parameters without a default.
	assert.Equal(t, []string{"base"}, doc.Parameters["required"])

	resp, ok := doc.Responses["200"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "The result.", resp["description"])
	content, ok := resp["content"].(map[string]any)
	require.True(t, ok)
	media, ok := content["application/json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "number"}, media["schema"])
}

func TestBuilder_SchemaIsMemoizedAndStable(t *testing.T) {
	f := mustFunc(t, "echo", func(s string) string { return s }, WithParams("s"))
	b := NewBuilder()

	first := b.Schema(f)
	second := b.Schema(f)
	assert.Same(t, first, second)

	// Rendering the same document twice is byte-identical.
	j1, err := json.Marshal(first)
	require.NoError(t, err)
	j2, err := json.Marshal(b.Schema(f))
	require.NoError(t, err)
	assert.Equal(t, j1, j2)
}

func TestBuilder_DefaultMismatchOmitted(t *testing.T) {
	// A default whose type contradicts the annotation is dropped from the
	// schema, never a failure.
	f := mustFunc(t, "retry", func(count int) int { return count },
		WithParams("count"), WithDefault("count", "three"))

	doc := NewBuilder().Schema(f)
	count, ok := properties(t, doc)["count"].(map[string]any)
	require.True(t, ok)
	_, hasDefault := count["default"]
	assert.False(t, hasDefault)
	// The parameter still counts as optional.
	assert.NotContains(t, doc.Parameters, "required")
}

func TestBuilder_DocumentedDefault(t *testing.T) {
	// A default documented in prose lands in the schema but does not make
	// the parameter optional.
	f := mustFunc(t, "greet", func(name string) string { return name },
		WithDoc(`Greet.

Args:
    name (str): Who to greet (default: world).
`))

	doc := NewBuilder().Schema(f)
	name, ok := properties(t, doc)["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "world", name["default"])
	assert.Equal(t, []string{"name"}, doc.Parameters["required"])
}

func TestBuilder_DescriptionsToggle(t *testing.T) {
	f := mustFunc(t, "hello", func(name string) string { return name },
		WithDoc(`Say hello.

Longer explanation
over two lines.

Args:
    name (str): The name.

Returns:
    str: A greeting.
`))

	doc := NewBuilder(WithoutDescriptions()).Schema(f)
	assert.Empty(t, doc.Description)
	name, ok := properties(t, doc)["name"].(map[string]any)
	require.True(t, ok)
	_, hasDesc := name["description"]
	assert.False(t, hasDesc)
	// Response keeps a minimal description alongside its schema.
	resp := doc.Responses["200"].(map[string]any)
	assert.Equal(t, "OK", resp["description"])

	doc = NewBuilder(WithFullDocstring()).Schema(f)
	assert.Equal(t, "Say hello.\nLonger explanation over two lines.", doc.Description)
}

func TestBuilder_ResponsesOmitted(t *testing.T) {
	// No return value, nothing documented: no responses section.
	f := mustFunc(t, "fire", func(string) {}, WithParams("event"))
	doc := NewBuilder().Schema(f)
	assert.Nil(t, doc.Responses)

	// Constructors never carry responses.
	s, err := NewStruct(struct {
		Name string `json:"name"`
	}{})
	require.NoError(t, err)
	doc = NewBuilder().Schema(s)
	assert.Nil(t, doc.Responses)

	b := NewBuilder(WithoutResponses())
	doc = b.Schema(mustFunc(t, "add", func(a int) int { return a }, WithParams("a")))
	assert.Nil(t, doc.Responses)
}

func TestBuilder_Fragments(t *testing.T) {
	type Shape struct {
		Kind  string   `json:"kind" enum:"circle,square"`
		Sizes []int    `json:"sizes"`
		Label *string  `json:"label"`
		Meta  struct{} `json:"-"`
	}
	f := mustFunc(t, "draw", func(s Shape, points [2]float64, tags map[string]struct{}, extras map[string]any, choice any) {},
		WithParams("s", "points", "tags", "extras", "choice"))

	doc := NewBuilder().Schema(f)
	props := properties(t, doc)

	s := props["s"].(map[string]any)
	assert.Equal(t, "object", s["type"])
	sProps := s["properties"].(map[string]any)
	kind := sProps["kind"].(map[string]any)
	assert.Equal(t, []any{"circle", "square"}, kind["enum"])
	sizes := sProps["sizes"].(map[string]any)
	assert.Equal(t, "array", sizes["type"])
	assert.Equal(t, map[string]any{"type": "integer"}, sizes["items"])
	label := sProps["label"].(map[string]any)
	assert.Equal(t, []any{"string", "null"}, label["type"])
	// Pointer fields are not required.
	assert.Equal(t, []string{"kind", "sizes"}, s["required"])

	points := props["points"].(map[string]any)
	assert.Equal(t, "array", points["type"])
	assert.Equal(t, 2, points["minItems"])
	assert.Equal(t, 2, points["maxItems"])
	assert.Len(t, points["prefixItems"], 2)

	tags := props["tags"].(map[string]any)
	assert.Equal(t, true, tags["uniqueItems"])

	extras := props["extras"].(map[string]any)
	assert.Equal(t, "object", extras["type"])
	assert.Equal(t, map[string]any{}, extras["additionalProperties"])

	// Untyped parameters accept anything.
	assert.Equal(t, map[string]any{}, props["choice"])
}

func TestBuilder_UnionFragments(t *testing.T) {
	c := &minTypedCallable{
		name: "u",
		params: []ParameterInfo{
			{Name: "id", Type: ResolveName("int | str", nil)},
			{Name: "item", Type: ResolveName("union[list[int], str]", nil)},
		},
	}
	doc := NewBuilder().Schema(c)
	props := properties(t, doc)

	id := props["id"].(map[string]any)
	assert.Equal(t, map[string]any{"type": []any{"integer", "string"}}, id)

	item := props["item"].(map[string]any)
	anyOf, ok := item["anyOf"].([]any)
	require.True(t, ok)
	require.Len(t, anyOf, 2)
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}, anyOf[0])
}

func TestBuilder_RecursiveComposite(t *testing.T) {
	scope := NewScope()
	s, err := NewStruct(node{}, WithFuncScope(scope))
	require.NoError(t, err)

	doc := NewBuilder().Schema(s)
	props := properties(t, doc)
	b := props["b"].(map[string]any)
	anyOf, ok := b["anyOf"].([]any)
	require.True(t, ok)
	require.Len(t, anyOf, 2)
	// The self-reference degrades to the empty schema instead of recursing.
	inner := anyOf[0].(map[string]any)
	innerProps := inner["properties"].(map[string]any)
	innerB := innerProps["b"].(map[string]any)
	assert.Equal(t, map[string]any{"anyOf": []any{
		map[string]any{}, map[string]any{"type": "null"},
	}}, innerB)
}

func TestBuilder_DocstringTypeFallback(t *testing.T) {
	c := &minTypedCallable{
		name: "lookup",
		doc: `Look something up.

Args:
    key (str): The key.
`,
		params: []ParameterInfo{{Name: "key"}},
	}
	doc := NewBuilder().Schema(c)
	key := properties(t, doc)["key"].(map[string]any)
	assert.Equal(t, "string", key["type"])
}

func TestBuilder_ValidateArguments(t *testing.T) {
	f := mustFunc(t, "add", func(a, b float64) float64 { return a + b },
		WithParams("a", "b"))
	b := NewBuilder()

	require.NoError(t, b.ValidateArguments(f, map[string]any{"a": 1.0, "b": 2.0}))
	assert.Error(t, b.ValidateArguments(f, map[string]any{"a": "one", "b": 2.0}))
	assert.Error(t, b.ValidateArguments(f, map[string]any{"a": 1.0}))
}

// minTypedCallable lets schema tests pin parameter descriptors directly.
type minTypedCallable struct {
	name   string
	doc    string
	params []ParameterInfo
}

func (m *minTypedCallable) Name() string                { return m.name }
func (m *minTypedCallable) Doc() string                 { return m.doc }
func (m *minTypedCallable) Parameters() []ParameterInfo { return m.params }
func (m *minTypedCallable) ReturnType() *TypeDescriptor { return nil }
func (m *minTypedCallable) IsConstructor() bool         { return false }
func (m *minTypedCallable) Scope() *Scope               { return NewScope() }
func (m *minTypedCallable) Call(context.Context, map[string]any) (any, error) {
	return nil, nil
}
