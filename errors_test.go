package funcall

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionCallError(t *testing.T) {
	err := newCallError(ErrNotFound, `"nope"`)
	assert.Equal(t, `function not found: "nope"`, err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidJSON)

	// No detail, message is just the stage vocabulary.
	err = newCallError(ErrInvocationFailed, "")
	assert.Equal(t, "function call failed", err.Error())
}

func TestIsFunctionCallError(t *testing.T) {
	err := newCallError(ErrSchemaMismatch, "x")
	assert.True(t, IsFunctionCallError(err))
	assert.True(t, IsFunctionCallError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsFunctionCallError(errors.New("plain")))
	assert.False(t, IsFunctionCallError(nil))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidJSON, ErrSchemaMismatch,
		ErrSignatureMismatch, ErrInvocationFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			require.NotErrorIs(t, a, b)
		}
	}
}
