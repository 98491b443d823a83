package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noisicaa-go/engine/internal/buftype"
)

func TestAppendOpcodeResolvesBufferNames(t *testing.T) {
	spec := NewSpec()
	_, err := spec.AppendBuffer("a", buftype.KindScalar)
	require.NoError(t, err)
	_, err = spec.AppendBuffer("b", buftype.KindScalar)
	require.NoError(t, err)

	require.NoError(t, spec.AppendOpcode(OpCopy, "a", "b"))
	require.Equal(t, 1, spec.NumOps())

	args := spec.Opargs(0)
	require.Equal(t, int64(0), args[0].Int)
	require.Equal(t, int64(1), args[1].Int)
}

func TestAppendOpcodeRejectsUnknownBuffer(t *testing.T) {
	spec := NewSpec()
	err := spec.AppendOpcode(OpClear, "missing")
	require.Error(t, err)
}

func TestAppendOpcodeRejectsWrongArgCount(t *testing.T) {
	spec := NewSpec()
	err := spec.AppendOpcode(OpClear)
	require.Error(t, err)
}

func TestAppendBufferRejectsDuplicateNames(t *testing.T) {
	spec := NewSpec()
	_, err := spec.AppendBuffer("a", buftype.KindScalar)
	require.NoError(t, err)
	_, err = spec.AppendBuffer("a", buftype.KindScalar)
	require.Error(t, err)
}
