package processor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullLifecycle(t *testing.T) {
	n := NewNull()
	require.Equal(t, StateConstructed, n.State())
	require.NoError(t, n.Setup())
	require.Equal(t, StateSetUp, n.State())
	require.NoError(t, n.ConnectPort(0, nil))
	require.NoError(t, n.ProcessBlock(Context{BlockSize: 64}))
	n.Cleanup()
	require.Equal(t, StateTornDown, n.State())
}

func TestNullParametersDefaultToAbsent(t *testing.T) {
	n := NewNull()
	_, ok := n.GetParameter("gain")
	require.False(t, ok)

	require.NoError(t, n.SetParameter("gain", Parameter{Kind: ParamFloat, Float: 0.5}))
	v, ok := n.GetParameter("gain")
	require.True(t, ok)
	require.Equal(t, float32(0.5), v.Float)
}
