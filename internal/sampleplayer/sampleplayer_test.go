package sampleplayer

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

func TestSetupPlaysFixedScore(t *testing.T) {
	host := buftype.HostState{BlockSize: 64}
	score := []Note{{Instrument: 1, Start: 0, Duration: -1, Pitch: 60, Velocity: 100}}
	p := New(44100, 16, ports(), score)
	require.NoError(t, p.Setup())

	buf := make([]byte, buftype.AudioBlock{}.Size(host))
	require.NoError(t, p.ConnectPort(0, buf))
	require.NoError(t, p.ProcessBlock(processor.Context{BlockSize: host.BlockSize}))

	nonZero := false
	for _, s := range buftype.Samples(buf) {
		if s != 0 {
			nonZero = true
			break
		}
	}
	require.True(t, nonZero)
}

func TestSetupRejectsEventsPort(t *testing.T) {
	portsWithEvents := []processor.Port{
		{Index: 0, Name: "in", Direction: processor.DirectionIn, Type: processor.PortEvents},
		{Index: 1, Name: "out", Direction: processor.DirectionOut, Type: processor.PortAudio},
	}
	p := New(44100, 16, portsWithEvents, nil)
	require.Error(t, p.Setup())
}

func TestIDAndPortsForwardToInner(t *testing.T) {
	p := New(44100, 16, ports(), nil)
	require.NotZero(t, p.ID())
	require.Len(t, p.Ports(), 1)
	require.Equal(t, processor.StateConstructed, p.State())
}
