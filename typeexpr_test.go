package funcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveName_Primitives(t *testing.T) {
	tests := []struct {
		expr string
		kind Kind
	}{
		{"str", KindString},
		{"string", KindString},
		{"int", KindInteger},
		{"integer", KindInteger},
		{"float", KindNumber},
		{"float64", KindNumber},
		{"number", KindNumber},
		{"bool", KindBoolean},
		{"boolean", KindBoolean},
		{"None", KindNull},
		{"null", KindNull},
		{"any", KindAny},
		{"object", KindAny},
		{"", KindAny},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.kind, ResolveName(tt.expr, nil).Kind)
		})
	}
}

func TestResolveName_Containers(t *testing.T) {
	d := ResolveName("list[int]", nil)
	require.Equal(t, KindList, d.Kind)
	assert.Equal(t, KindInteger, d.Elem.Kind)

	d = ResolveName("dict[str, int]", nil)
	require.Equal(t, KindMapping, d.Kind)
	assert.Equal(t, KindString, d.Key.Kind)
	assert.Equal(t, KindInteger, d.Value.Kind)

	d = ResolveName("set[str]", nil)
	require.Equal(t, KindSet, d.Kind)
	assert.Equal(t, KindString, d.Elem.Kind)

	// Bare container names take any-typed elements.
	d = ResolveName("list", nil)
	require.Equal(t, KindList, d.Kind)
	assert.Equal(t, KindAny, d.Elem.Kind)
}

func TestResolveName_GoSyntax(t *testing.T) {
	d := ResolveName("[]int", nil)
	require.Equal(t, KindList, d.Kind)
	assert.Equal(t, KindInteger, d.Elem.Kind)

	d = ResolveName("map[string]float64", nil)
	require.Equal(t, KindMapping, d.Kind)
	assert.Equal(t, KindString, d.Key.Kind)
	assert.Equal(t, KindNumber, d.Value.Kind)

	d = ResolveName("*string", nil)
	require.Equal(t, KindOptional, d.Kind)
	assert.Equal(t, KindString, d.Elem.Kind)

	d = ResolveName("[3]int", nil)
	require.Equal(t, KindTuple, d.Kind)
	assert.Len(t, d.Alts, 3)
}

func TestResolveName_Tuples(t *testing.T) {
	d := ResolveName("tuple[int, str]", nil)
	require.Equal(t, KindTuple, d.Kind)
	require.Len(t, d.Alts, 2)
	assert.Equal(t, KindInteger, d.Alts[0].Kind)
	assert.Equal(t, KindString, d.Alts[1].Kind)

	// Trailing ellipsis broadcasts the element type.
	d = ResolveName("tuple[int, ...]", nil)
	require.Equal(t, KindTuple, d.Kind)
	assert.True(t, d.Variadic)
	assert.Equal(t, KindInteger, d.Elem.Kind)

	// A one-element tuple broadcasts too.
	d = ResolveName("tuple[float]", nil)
	require.True(t, d.Variadic)
	assert.Equal(t, KindNumber, d.Elem.Kind)
}

func TestResolveName_Unions(t *testing.T) {
	d := ResolveName("int | str", nil)
	require.Equal(t, KindUnion, d.Kind)
	require.Len(t, d.Alts, 2)
	assert.Equal(t, KindInteger, d.Alts[0].Kind)
	assert.Equal(t, KindString, d.Alts[1].Kind)

	d = ResolveName("Union[int, str, bool]", nil)
	require.Equal(t, KindUnion, d.Kind)
	assert.Len(t, d.Alts, 3)

	// X | None collapses to optional.
	d = ResolveName("int | None", nil)
	require.Equal(t, KindOptional, d.Kind)
	assert.Equal(t, KindInteger, d.Elem.Kind)

	d = ResolveName("Optional[str]", nil)
	require.Equal(t, KindOptional, d.Kind)
	assert.Equal(t, KindString, d.Elem.Kind)

	// Union order is declaration order.
	d = ResolveName("union[str, int]", nil)
	require.Equal(t, KindUnion, d.Kind)
	assert.Equal(t, KindString, d.Alts[0].Kind)
}

func TestResolveName_NestedGenerics(t *testing.T) {
	d := ResolveName("dict[str, list[int]]", nil)
	require.Equal(t, KindMapping, d.Kind)
	require.Equal(t, KindList, d.Value.Kind)
	assert.Equal(t, KindInteger, d.Value.Elem.Kind)

	d = ResolveName("list[int | str]", nil)
	require.Equal(t, KindList, d.Kind)
	assert.Equal(t, KindUnion, d.Elem.Kind)
}

func TestResolveName_ScopeAndRefs(t *testing.T) {
	scope := NewScope()
	acc := &TypeDescriptor{Kind: KindComposite, Name: "Account"}
	scope.Add("Account", acc)

	assert.Same(t, acc, ResolveName("Account", scope))

	// Unknown names become lazy references, resolvable later.
	d := ResolveName("Pending", scope)
	require.Equal(t, KindRef, d.Kind)
	assert.Equal(t, "Pending", d.Name)

	scope.Add("Pending", acc)
	assert.Same(t, acc, deref(d, scope))

	// A reference that never resolves degrades to unresolved.
	missing := ResolveName("Nowhere", scope)
	assert.Equal(t, KindUnresolved, deref(missing, scope).Kind)
}
