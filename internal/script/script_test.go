package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/processor"
)

func ports() []processor.Port {
	return []processor.Port{
		{Index: 0, Name: "out", Direction: processor.DirectionOut, Type: processor.PortAudio},
	}
}

func TestSetCodeAndProcessBlockProducesSound(t *testing.T) {
	host := buftype.HostState{BlockSize: 64}
	p := New(44100, 16, ports())
	require.NoError(t, p.Setup())

	buf := make([]byte, buftype.AudioBlock{}.Size(host))
	require.NoError(t, p.ConnectPort(0, buf))

	require.NoError(t, p.SetCode("decay=0.01", "i 1.60 0 -1 60 100"))
	require.NoError(t, p.ProcessBlock(processor.Context{BlockSize: host.BlockSize}))

	samples := buftype.Samples(buf)
	nonZero := false
	for _, s := range samples {
		if s != 0 {
			nonZero = true
			break
		}
	}
	require.True(t, nonZero)
}

func TestProcessBlockRejectsNonMultipleOfKsmps(t *testing.T) {
	p := New(44100, 16, ports())
	require.NoError(t, p.Setup())
	buf := make([]byte, 64*4)
	require.NoError(t, p.ConnectPort(0, buf))
	err := p.ProcessBlock(processor.Context{BlockSize: 17})
	require.Error(t, err)
}

func TestNoInstanceClearsOutputs(t *testing.T) {
	host := buftype.HostState{BlockSize: 32}
	p := New(44100, 16, ports())
	require.NoError(t, p.Setup())
	buf := make([]byte, buftype.AudioBlock{}.Size(host))
	require.NoError(t, p.ConnectPort(0, buf))

	require.NoError(t, p.ProcessBlock(processor.Context{BlockSize: host.BlockSize}))
	for _, s := range buftype.Samples(buf) {
		require.Equal(t, float32(0), s)
	}
}

func TestQueueMIDINoteOnOff(t *testing.T) {
	inst, err := compile("", "", 44100, ports())
	require.NoError(t, err)

	inst.queueMIDI([]buftype.Event{{Frame: 0, Payload: []byte{0x90, 60, 100}}})
	require.Len(t, inst.voices, 1)

	inst.queueMIDI([]buftype.Event{{Frame: 1, Payload: []byte{0x80, 60, 0}}})
	_, exists := inst.voices[1*1000+60]
	require.True(t, exists)
	v := inst.voices[1*1000+60]
	require.True(t, v.releasing)
}
