package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplySum(t *testing.T) {
	e := NewEngine()

	out, err := e.Apply(context.Background(), ".[0].v + .[1].v", []byte(`[{"v":1},{"v":2}]`))
	require.NoError(t, err)
	require.Equal(t, "3", string(out))
}

func TestApplyIdentityAndSelection(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	out, err := e.Apply(ctx, ".", []byte(`[1,2]`))
	require.NoError(t, err)
	require.Equal(t, "[1,2]", string(out))

	out, err = e.Apply(ctx, ".[0]", []byte(`[{"x":1},{"x":2}]`))
	require.NoError(t, err)
	require.Equal(t, `{"x":1}`, string(out))
}

func TestApplyMultipleOutputs(t *testing.T) {
	e := NewEngine()

	out, err := e.Apply(context.Background(), ".[]", []byte(`[1,"two",null]`))
	require.NoError(t, err)
	require.Equal(t, "1\n\"two\"\nnull", string(out))
}

func TestApplyEmptyArray(t *testing.T) {
	e := NewEngine()

	out, err := e.Apply(context.Background(), "length", []byte(`[]`))
	require.NoError(t, err)
	require.Equal(t, "0", string(out))
}

func TestApplyParseError(t *testing.T) {
	e := NewEngine()

	_, err := e.Apply(context.Background(), ".[", []byte(`[]`))
	require.ErrorContains(t, err, "parse filter")
}

func TestApplyRuntimeError(t *testing.T) {
	e := NewEngine()

	_, err := e.Apply(context.Background(), ".a + 1", []byte(`{"a":"str"}`))
	require.ErrorContains(t, err, "run filter")
}

func TestApplyBadInput(t *testing.T) {
	e := NewEngine()

	_, err := e.Apply(context.Background(), ".", []byte(`not json`))
	require.ErrorContains(t, err, "filter input")
}

func TestApplyCachesCompiledPrograms(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.Apply(ctx, ".[0]", []byte(`[1]`))
		require.NoError(t, err)
	}
	require.Len(t, e.cache, 1)
}
