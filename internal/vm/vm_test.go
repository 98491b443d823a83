package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/processor"
)

type fakeBackend struct {
	blockSize uint32
	outputs   map[string][]byte
}

func newFakeBackend() *fakeBackend { return &fakeBackend{outputs: make(map[string][]byte)} }

func (f *fakeBackend) Setup(blockSize uint32) error { f.blockSize = blockSize; return nil }
func (f *fakeBackend) Cleanup()                     {}
func (f *fakeBackend) BeginBlock(ctx *BlockContext) error { return nil }
func (f *fakeBackend) EndBlock(ctx *BlockContext) error   { return nil }
func (f *fakeBackend) Output(ctx *BlockContext, channel string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.outputs[channel] = cp
	return nil
}

func TestVMSetFloatAndOutput(t *testing.T) {
	reg := processor.NewRegistry()
	v := New(reg, 64)
	backend := newFakeBackend()
	require.NoError(t, v.SetBackend(backend))

	spec := NewSpec()
	_, err := spec.AppendBuffer("gain", buftype.KindScalar)
	require.NoError(t, err)
	require.NoError(t, spec.AppendOpcode(OpSetFloat, "gain", float32(0.75)))
	require.NoError(t, spec.AppendOpcode(OpOutput, "gain", "main"))
	require.NoError(t, spec.AppendOpcode(OpEnd))

	require.NoError(t, v.SetSpec(spec))
	require.NoError(t, v.ProcessBlock(&BlockContext{}))

	out, ok := backend.outputs["main"]
	require.True(t, ok)
	require.Equal(t, float32(0.75), buftype.ScalarValue(out))
}

func TestVMIdlesWithoutProgramOrBackend(t *testing.T) {
	reg := processor.NewRegistry()
	v := New(reg, 64)
	require.NoError(t, v.ProcessBlock(&BlockContext{}))
}

func TestVMConnectPortAndCall(t *testing.T) {
	reg := processor.NewRegistry()
	v := New(reg, 32)
	backend := newFakeBackend()
	require.NoError(t, v.SetBackend(backend))

	proc, err := reg.Create(processor.KindNull, nil)
	require.NoError(t, err)

	spec := NewSpec()
	_, err = spec.AppendBuffer("buf", buftype.KindAudioBlock)
	require.NoError(t, err)
	_, err = spec.AppendProcessor(proc)
	require.NoError(t, err)
	require.NoError(t, spec.AppendOpcode(OpConnectPort, proc, 0, "buf"))
	require.NoError(t, spec.AppendOpcode(OpCall, proc))
	require.NoError(t, spec.AppendOpcode(OpEnd))

	require.NoError(t, v.SetSpec(spec))
	require.NoError(t, v.ProcessBlock(&BlockContext{}))
	require.Equal(t, 2, reg.RefCount(proc.ID()))
}

func TestVMBlockSizeChangeReallocatesBuffers(t *testing.T) {
	reg := processor.NewRegistry()
	v := New(reg, 16)
	backend := newFakeBackend()
	require.NoError(t, v.SetBackend(backend))

	spec := NewSpec()
	_, err := spec.AppendBuffer("audio", buftype.KindAudioBlock)
	require.NoError(t, err)
	require.NoError(t, spec.AppendOpcode(OpClear, "audio"))
	require.NoError(t, spec.AppendOpcode(OpEnd))

	require.NoError(t, v.SetSpec(spec))
	require.NoError(t, v.ProcessBlock(&BlockContext{}))

	v.SetBlockSize(32)
	require.NoError(t, v.ProcessBlock(&BlockContext{}))

	buf := v.GetBuffer("audio")
	require.Len(t, buf, 32*4)
}
