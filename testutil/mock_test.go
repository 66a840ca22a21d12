package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/funcall"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMockCallable(t *testing.T) {
	m := &MockCallable{
		NameVal: "test_fn",
		DocVal:  "For tests",
		ParamsVal: []funcall.ParameterInfo{
			{Name: "x", Type: &funcall.TypeDescriptor{Kind: funcall.KindInteger}},
		},
		CallFn: func(_ context.Context, args map[string]any) (any, error) {
			return args["x"], nil
		},
	}
	assert.Equal(t, "test_fn", m.Name())
	assert.Equal(t, "For tests", m.Doc())
	assert.Len(t, m.Parameters(), 1)
	assert.False(t, m.IsConstructor())
	assert.NotNil(t, m.Scope())

	out, err := m.Call(context.Background(), map[string]any{"x": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestMockCallable_Defaults(t *testing.T) {
	m := &MockCallable{}
	assert.Equal(t, "mock", m.Name())
	out, err := m.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestNewTestRegistry(t *testing.T) {
	m := &MockCallable{
		NameVal: "m",
		CallFn: func(_ context.Context, _ map[string]any) (any, error) {
			return "ok", nil
		},
	}
	reg := NewTestRegistry(m)
	require.NotNil(t, reg)
	assert.Equal(t, []string{"m"}, reg.Names())

	out, err := reg.Call(context.Background(), "m", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, out)
}
