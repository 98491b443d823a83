package processor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndRelease(t *testing.T) {
	reg := NewRegistry()
	proc, err := reg.Create(KindNull, nil)
	require.NoError(t, err)
	require.Equal(t, 1, reg.RefCount(proc.ID()))

	_, shouldCleanup := reg.Release(proc.ID())
	require.True(t, shouldCleanup)
	require.Equal(t, 0, reg.RefCount(proc.ID()))
}

func TestRegistryAcquireSharesInstance(t *testing.T) {
	reg := NewRegistry()
	proc, err := reg.Create(KindNull, nil)
	require.NoError(t, err)

	shared, err := reg.Acquire(proc.ID())
	require.NoError(t, err)
	require.Same(t, proc, shared)
	require.Equal(t, 2, reg.RefCount(proc.ID()))

	_, shouldCleanup := reg.Release(proc.ID())
	require.False(t, shouldCleanup)
	require.Equal(t, 1, reg.RefCount(proc.ID()))

	_, shouldCleanup = reg.Release(proc.ID())
	require.True(t, shouldCleanup)
}

func TestRegistryUnknownKind(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create(Kind("bogus"), nil)
	require.Error(t, err)
}

func TestRegistryReleaseUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	_, shouldCleanup := reg.Release(999)
	require.False(t, shouldCleanup)
}
